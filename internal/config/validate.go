package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	logx "gymwatch/pkg/logx"
)

const (
	DefaultTopLoggerURL = "https://api.toplogger.nu"
	DefaultStatusAddr   = "127.0.0.1:8089"
	DefaultHorizon      = 10 * 24 * time.Hour
)

// DurationField parses a Go duration string found at path. Empty means 0.
func DurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// DurationOrDefault is DurationField with def substituted for 0.
func DurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := DurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// Location resolves watch.timezone (empty means time.Local).
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Watch.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("watch.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

// ParseQueueTime reads a queue start/end value in loc.
func ParseQueueTime(loc *time.Location, raw string) (time.Time, error) {
	return time.ParseInLocation(QueueTimeLayout, strings.TrimSpace(raw), loc)
}

// Validate checks everything the app needs before it starts. Hot reloads
// run it too, so a broken edit never replaces a working config.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add("telegram.token is required")
	}
	if c.Telegram.ChatID == 0 {
		add("telegram.chat_id is required")
	}
	if g := strings.TrimSpace(c.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			add("telegram.group_log: want a numeric chat id, got %q", g)
		}
	}
	if c.Logging.Level != "" && !logx.ValidLevel(c.Logging.Level) {
		add("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.Logging.Telegram.MinLevel != "" && !logx.ValidLevel(c.Logging.Telegram.MinLevel) {
		add("logging.telegram.min_level: unknown level %q", c.Logging.Telegram.MinLevel)
	}
	if _, err := DurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}

	if _, _, err := ParseInterval(c.Watch.Interval); err != nil {
		errs = append(errs, fmt.Errorf("watch.interval: %w", err))
	}
	if _, err := DurationField("watch.horizon", c.Watch.Horizon); err != nil {
		errs = append(errs, err)
	}
	loc, err := c.Location()
	if err != nil {
		errs = append(errs, err)
		loc = time.Local
	}

	if _, err := DurationField("toplogger.timeout", c.TopLogger.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := DurationField("toplogger.cache_ttl", c.TopLogger.CacheTTL); err != nil {
		errs = append(errs, err)
	}
	if c.TopLogger.RatePerSec < 0 {
		add("toplogger.rate_per_sec must be >= 0")
	}
	if (c.TopLogger.Email == "") != (c.TopLogger.Password == "") {
		add("toplogger.email and toplogger.password must be set together")
	}

	for key, g := range c.Gyms {
		if g.ID <= 0 {
			add("gyms.%s.id must be > 0", key)
		}
	}
	if len(c.Queue) == 0 {
		add("queue must contain at least one item")
	}
	for i, q := range c.Queue {
		if _, ok := c.Gyms[q.Gym]; !ok {
			add("queue[%d].gym: unknown gym %q", i, q.Gym)
		}
		start, err := ParseQueueTime(loc, q.Start)
		if err != nil {
			add("queue[%d].start: want %q: %w", i, QueueTimeLayout, err)
			continue
		}
		end, err := ParseQueueTime(loc, q.End)
		if err != nil {
			add("queue[%d].end: want %q: %w", i, QueueTimeLayout, err)
			continue
		}
		if !end.After(start) {
			add("queue[%d]: end must be after start", i)
		}
	}

	if c.Status.Enabled {
		addr := c.Status.Addr
		if addr == "" {
			addr = DefaultStatusAddr
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			add("status.addr: %w", err)
		} else if c.Status.Pprof && strings.TrimSpace(c.Status.PprofToken) == "" && !IsLoopbackAddr(addr) {
			add("status.pprof on non-loopback addr %q requires status.pprof_token", addr)
		}
	}

	return errors.Join(errs...)
}

// IsLoopbackAddr reports whether a host:port binds only to loopback. An
// empty host means all interfaces.
func IsLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
