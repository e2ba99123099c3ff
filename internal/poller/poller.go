package poller

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gymwatch/internal/config"
	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

const (
	MinInterval      = 30 * time.Second
	MinDebugInterval = time.Second
)

// SlotSource is the booking-service side: select a venue, then query it.
type SlotSource interface {
	SetVenue(v watch.Venue)
	AvailableSlots(ctx context.Context, w watch.Window) ([]watch.Slot, error)
}

// Notifier delivers messages and records when the last cycle ran.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
	SetLastRun(t time.Time)
}

type Config struct {
	// Interval between cycles; config.RunOnce (any negative value) runs a
	// single cycle.
	Interval time.Duration
	Horizon  time.Duration
	// Debug logs notifications instead of sending them.
	Debug bool
}

// Report summarises one cycle.
type Report struct {
	ID      string
	Found   int
	Checked int
	Skipped int
	Errors  int
}

type Poller struct {
	src   SlotSource
	notif Notifier
	queue *watch.Queue
	cfg   Config
	log   logx.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
	// OnCycle, if set, is called after every cycle.
	OnCycle func(Report)
}

func New(cfg Config, queue *watch.Queue, src SlotSource, notif Notifier, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = config.DefaultHorizon
	}
	return &Poller{src: src, notif: notif, queue: queue, cfg: cfg, log: log, Now: time.Now}
}

// RunOnce reports whether the configured interval is the single-cycle
// sentinel.
func (p *Poller) RunOnce() bool { return p.cfg.Interval < 0 }

// EffectiveInterval is the configured interval raised to the mode's floor.
func (p *Poller) EffectiveInterval() time.Duration {
	floor := MinInterval
	if p.cfg.Debug {
		floor = MinDebugInterval
	}
	return max(p.cfg.Interval, floor)
}

// Run performs cycles until ctx is done. In run-once mode it returns nil
// after the first cycle; otherwise it returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	if !p.RunOnce() {
		p.log.Info("poller started",
			logx.Duration("interval", p.EffectiveInterval()),
			logx.Duration("horizon", p.cfg.Horizon),
			logx.Bool("debug", p.cfg.Debug),
			logx.Int("queue", p.queue.Len()),
		)
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		p.Cycle(ctx)
		if p.RunOnce() {
			return nil
		}
		if timer == nil {
			timer = time.NewTimer(p.EffectiveInterval())
		} else {
			timer.Reset(p.EffectiveInterval())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Cycle runs one pass over the queue.
func (p *Poller) Cycle(ctx context.Context) Report {
	now := p.Now()
	rep := Report{ID: uuid.NewString()}
	log := p.log.With(logx.String("cycle", rep.ID))
	p.notif.SetLastRun(now)

	for _, it := range p.queue.Items() {
		if ctx.Err() != nil {
			break
		}
		if it.Handled() || !it.Window.InHorizon(now, p.cfg.Horizon) {
			rep.Skipped++
			continue
		}
		rep.Checked++

		p.src.SetVenue(it.Venue)
		slots, err := p.src.AvailableSlots(ctx, it.Window)
		if err != nil {
			rep.Errors++
			log.Warn("slot query failed",
				logx.String("venue", it.Venue.DisplayName()),
				logx.String("window", it.Window.String()),
				logx.Err(err),
			)
			continue
		}
		if len(slots) == 0 {
			continue
		}
		rep.Found += len(slots)
		p.deliver(ctx, log, it, ComposeMessage(it.Venue.DisplayName(), slots))
		it.MarkHandled()
	}

	log.Info("cycle finished",
		logx.Int("found", rep.Found),
		logx.Int("checked", rep.Checked),
		logx.Int("skipped", rep.Skipped),
		logx.Int("errors", rep.Errors),
	)
	if p.OnCycle != nil {
		p.OnCycle(rep)
	}
	return rep
}

// deliver sends text, or logs it in debug mode. Failures are logged only;
// the item counts as handled either way.
func (p *Poller) deliver(ctx context.Context, log logx.Logger, it *watch.WatchItem, text string) {
	if p.cfg.Debug {
		log.Info("debug: notification not sent", logx.String("venue", it.Venue.DisplayName()), logx.String("text", text))
		return
	}
	if err := p.notif.SendMessage(ctx, text); err != nil {
		log.Error("notification failed",
			logx.String("venue", it.Venue.DisplayName()),
			logx.String("window", it.Window.String()),
			logx.Err(err),
		)
		return
	}
	log.Info("notification sent", logx.String("venue", it.Venue.DisplayName()), logx.String("window", it.Window.String()))
}
