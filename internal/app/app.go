package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"gymwatch/internal/config"
	"gymwatch/internal/notifier"
	"gymwatch/internal/poller"
	rtsup "gymwatch/internal/runtime/supervisor"
	"gymwatch/internal/status"
	"gymwatch/internal/toplogger"
	kit "gymwatch/internal/transport"
	telegram "gymwatch/internal/transport/telegram/adapter"
	"gymwatch/internal/transport/telegram/router"
	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
	"gymwatch/pkg/systemd"
)

type StopReason string

const (
	StopSignal  StopReason = "signal"
	StopRunOnce StopReason = "run_once"
	StopFatal   StopReason = "fatal_error"
)

const (
	shutdownText          = "gymwatch is shutting down"
	shutdownNotifyTimeout = 5 * time.Second
	venueLookupTimeout    = 10 * time.Second
	// cycleStallGrace is how long past the poll interval the loop may go
	// without progress before the systemd watchdog stops being fed.
	cycleStallGrace = 10 * time.Minute
)

// Options are command-line overrides on top of the config file.
type Options struct {
	ConfigPath string
	Once       bool
	Debug      bool
}

type App struct {
	cfgm  *config.ConfigManager
	cfg   *config.Config
	sup   *rtsup.Supervisor
	debug bool

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	queue   *watch.Queue
	slots   *toplogger.Client
	notif   *notifier.Service
	poller  *poller.Poller
	router  *router.Router
	status  *status.Server
	sd      systemd.Notifier
	// progress is stamped at start and after every cycle.
	progress watch.RunStamp

	updates chan kit.Update
}

func New(opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.DurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// Telegram logging starts disabled so Apply does not warn before the
	// target chat is set.
	logCfg := mapLogConfig(cfg)
	logCfg.Telegram.Enabled = false
	logSvc, log := logx.New(logCfg, ad)
	logSvc.SetTelegramTarget(groupLogChat(cfg), cfg.Logging.Telegram.ThreadID)
	logSvc.Apply(mapLogConfig(cfg))

	return assemble(cfgm, cfg, opts, ad, logSvc, log)
}

// assemble wires every component around an already loaded config.
func assemble(cfgm *config.ConfigManager, cfg *config.Config, opts Options, ad kit.Adapter, logs *logx.Service, log logx.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	queue, err := buildQueue(cfg, loc)
	if err != nil {
		return nil, err
	}
	tlCfg, err := mapTopLoggerConfig(cfg)
	if err != nil {
		return nil, err
	}
	pCfg, err := mapPollerConfig(cfg, opts)
	if err != nil {
		return nil, err
	}

	stamp := &watch.RunStamp{}
	slots := toplogger.New(tlCfg, log.With(logx.String("comp", "toplogger")))
	notif := notifier.New(mapNotifierConfig(cfg), ad, queue, stamp, log.With(logx.String("comp", "notifier")))
	pl := poller.New(pCfg, queue, slots, notif, log.With(logx.String("comp", "poller")))

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		debug:   pCfg.Debug,
		log:     log.With(logx.String("comp", "app")),
		logs:    logs,
		adapter: ad,
		queue:   queue,
		slots:   slots,
		notif:   notif,
		poller:  pl,
		updates: make(chan kit.Update, 64),
	}
	pl.OnCycle = a.onCycle

	a.router = router.New(log.With(logx.String("comp", "commands")), ad, notif, router.Options{
		Owners: cfg.Telegram.OwnerUserIDs,
		Chat:   cfg.Telegram.ChatID,
		Debug:  pCfg.Debug,
		Loc:    loc,
	})

	if cfg.Status.Enabled {
		if !pCfg.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		addr := cfg.Status.Addr
		if addr == "" {
			addr = config.DefaultStatusAddr
		}
		statusLog := log.With(logx.String("comp", "status"))
		engine := status.NewRouter(notif, pCfg.Debug, statusLog)
		if cfg.Status.Pprof {
			status.MountPprof(engine, cfg.Status.PprofToken)
		}
		a.status = status.NewServer(addr, engine, statusLog)
	}
	return a, nil
}

func (a *App) Queue() *watch.Queue { return a.queue }

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.resolveVenueNames(ctx)

	if a.status != nil {
		if err := a.status.Listen(); err != nil {
			return err
		}
		a.sup.Go("status.http", a.status.Serve)
	}
	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	a.sup.Go("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.progress.Set(time.Now())
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return a.sd.Watchdog(c, func() bool { return a.pollerAlive(time.Now()) })
	})

	if _, err := a.sd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.Int("queue", a.queue.Len()),
		logx.Bool("debug", a.debug),
		logx.Bool("once", a.poller.RunOnce()),
	)
	return nil
}

// Run drives the poll loop on the caller's goroutine. It returns nil after
// a run-once cycle or when ctx is cancelled, and the supervisor's error when
// a background component failed.
func (a *App) Run(ctx context.Context) error {
	if a.sup == nil {
		return errors.New("app not started")
	}
	err := a.poller.Run(a.sup.Context())
	if ferr := a.sup.Err(); ferr != nil {
		return ferr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resolveVenueNames fills empty display names from the booking service.
// It runs before any reader goroutine starts.
func (a *App) resolveVenueNames(ctx context.Context) {
	names := map[int64]string{}
	for _, it := range a.queue.Items() {
		if it.Venue.Name != "" {
			continue
		}
		name, ok := names[it.Venue.GymID]
		if !ok {
			lctx, cancel := context.WithTimeout(ctx, venueLookupTimeout)
			n, err := a.slots.GymName(lctx, it.Venue.GymID)
			cancel()
			if err != nil {
				a.log.Warn("gym name lookup failed", logx.String("gym", it.Venue.Key), logx.Err(err))
			}
			name = n
			names[it.Venue.GymID] = n
		}
		if name != "" {
			it.Venue.Name = name
		}
	}
}

// pollerAlive reports whether the poll loop made progress recently: a cycle
// started or finished within one interval plus cycleStallGrace.
func (a *App) pollerAlive(now time.Time) bool {
	last, _ := a.progress.Get()
	if started, ok := a.notif.LastRun(); ok && started.After(last) {
		last = started
	}
	return now.Sub(last) <= a.poller.EffectiveInterval()+cycleStallGrace
}

func (a *App) onCycle(r poller.Report) {
	a.progress.Set(time.Now())
	line := fmt.Sprintf("last cycle %s: found=%d checked=%d errors=%d pending=%d",
		time.Now().Format("15:04:05"), r.Found, r.Checked, r.Errors, a.queue.Pending())
	if _, err := a.sd.Status(line); err != nil {
		a.log.Debug("sd_notify status failed", logx.Err(err))
	}
}

// notifyShutdown sends the best-effort shutdown message. In debug mode it is
// only logged.
func (a *App) notifyShutdown(ctx context.Context) {
	if a.debug {
		a.log.Info("debug: notification not sent", logx.String("text", shutdownText))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, shutdownNotifyTimeout)
	defer cancel()
	if err := a.notif.SendMessage(sctx, shutdownText); err != nil {
		a.log.Warn("shutdown notification failed", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := a.sd.Stopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}
	if reason == StopSignal {
		a.notifyShutdown(ctx)
	}

	a.sup.Cancel()
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown stage bounded by max and never longer than the
// caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
