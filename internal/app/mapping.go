package app

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gymwatch/internal/config"
	"gymwatch/internal/notifier"
	"gymwatch/internal/poller"
	"gymwatch/internal/toplogger"
	kit "gymwatch/internal/transport"
	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// groupLogChat returns the chat that receives forwarded log records, or 0.
func groupLogChat(cfg *config.Config) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func mapTopLoggerConfig(cfg *config.Config) (toplogger.Config, error) {
	timeout, err := config.DurationField("toplogger.timeout", cfg.TopLogger.Timeout)
	if err != nil {
		return toplogger.Config{}, err
	}
	ttl, err := config.DurationField("toplogger.cache_ttl", cfg.TopLogger.CacheTTL)
	if err != nil {
		return toplogger.Config{}, err
	}
	return toplogger.Config{
		BaseURL:    cfg.TopLogger.BaseURL,
		Email:      cfg.TopLogger.Email,
		Password:   cfg.TopLogger.Password,
		Timeout:    timeout,
		RatePerSec: cfg.TopLogger.RatePerSec,
		CacheTTL:   ttl,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		Target: kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID},
	}
}

func mapPollerConfig(cfg *config.Config, opts Options) (poller.Config, error) {
	interval, _, err := config.ParseInterval(cfg.Watch.Interval)
	if err != nil {
		return poller.Config{}, fmt.Errorf("watch.interval: %w", err)
	}
	if opts.Once {
		interval = config.RunOnce
	}
	horizon, err := config.DurationOrDefault("watch.horizon", cfg.Watch.Horizon, config.DefaultHorizon)
	if err != nil {
		return poller.Config{}, err
	}
	return poller.Config{
		Interval: interval,
		Horizon:  horizon,
		Debug:    cfg.Watch.Debug || opts.Debug,
	}, nil
}

// buildQueue turns the configured queue into watch items, in file order.
func buildQueue(cfg *config.Config, loc *time.Location) (*watch.Queue, error) {
	items := make([]*watch.WatchItem, 0, len(cfg.Queue))
	for i, q := range cfg.Queue {
		g, ok := cfg.Gyms[q.Gym]
		if !ok {
			return nil, fmt.Errorf("queue[%d].gym: unknown gym %q", i, q.Gym)
		}
		start, err := config.ParseQueueTime(loc, q.Start)
		if err != nil {
			return nil, fmt.Errorf("queue[%d].start: %w", i, err)
		}
		end, err := config.ParseQueueTime(loc, q.End)
		if err != nil {
			return nil, fmt.Errorf("queue[%d].end: %w", i, err)
		}
		items = append(items, watch.NewItem(
			watch.Venue{Key: q.Gym, GymID: g.ID, AreaID: g.AreaID, Name: g.Name},
			watch.Window{Start: start, End: end},
		))
	}
	return watch.NewQueue(items...), nil
}

// restartSections lists the config sections that changed between old and
// next but are only read at start-up. Logging, owners and the log chat are
// applied live and never reported.
func restartSections(old, next *config.Config) []string {
	if old == nil || next == nil {
		return nil
	}
	tgOld, tgNew := old.Telegram, next.Telegram
	tgOld.OwnerUserIDs, tgNew.OwnerUserIDs = nil, nil
	tgOld.GroupLog, tgNew.GroupLog = "", ""

	var out []string
	check := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	check("telegram", tgOld, tgNew)
	check("toplogger", old.TopLogger, next.TopLogger)
	check("watch", old.Watch, next.Watch)
	check("gyms", old.Gyms, next.Gyms)
	check("queue", old.Queue, next.Queue)
	check("status", old.Status, next.Status)
	return out
}
