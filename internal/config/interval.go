package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// RunOnce is the interval sentinel for "perform a single poll cycle".
const RunOnce time.Duration = -1

// IntervalSource tells which notation an interval was written in.
type IntervalSource string

const (
	SourceDuration IntervalSource = "duration"
	SourceHHMM     IntervalSource = "hhmm"
	SourceCron     IntervalSource = "cron"
	SourceOnce     IntervalSource = "once"
)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseInterval parses watch.interval.
//
// Supported forms:
//   - Go duration: "90s", "2m30s"
//   - HH:MM: "00:05" (five minutes)
//   - cron descriptor: "@every 45s" (robfig/cron ConstantDelaySchedule)
//   - "once" or any negative duration: RunOnce
//
// Floors are not applied here; the poller clamps the value.
func ParseInterval(raw string) (time.Duration, IntervalSource, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, "", fmt.Errorf("interval required")
	}
	if strings.EqualFold(s, "once") {
		return RunOnce, SourceOnce, nil
	}
	if strings.HasPrefix(s, "@") {
		sched, err := cron.ParseStandard(s)
		if err != nil {
			return 0, "", fmt.Errorf("invalid cron descriptor %q: %w", raw, err)
		}
		every, ok := sched.(cron.ConstantDelaySchedule)
		if !ok {
			return 0, "", fmt.Errorf("unsupported cron descriptor %q (only @every is a fixed interval)", raw)
		}
		return every.Delay, SourceCron, nil
	}
	if reHHMM.MatchString(s) {
		d, err := parseHHMMDuration(s)
		if err != nil {
			return 0, "", err
		}
		return d, SourceHHMM, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, "", fmt.Errorf("invalid interval %q (use a duration like '90s', HH:MM, '@every 2m' or 'once')", raw)
	}
	if d < 0 {
		return RunOnce, SourceOnce, nil
	}
	return d, SourceDuration, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q", v)
	}
	mm, err := strconv.Atoi(m[2])
	if err != nil || mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}
