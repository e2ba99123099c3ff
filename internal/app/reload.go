package app

import (
	"context"
	"strings"

	"gymwatch/internal/config"
	logx "gymwatch/pkg/logx"
)

// reloadLoop applies hot-reloadable settings: logging, the log chat and the
// command owners. Everything else is logged as needing a restart.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			a.applyReload(last, next)
			last = next
		}
	}
}

func (a *App) applyReload(old, next *config.Config) {
	if a.logs != nil {
		a.logs.SetTelegramTarget(groupLogChat(next), next.Logging.Telegram.ThreadID)
		a.logs.Apply(mapLogConfig(next))
	}
	a.router.SetOwners(next.Telegram.OwnerUserIDs)

	if sections := restartSections(old, next); len(sections) > 0 {
		a.log.Warn("config change requires restart; keeping running values",
			logx.String("sections", strings.Join(sections, ",")))
	}
	a.log.Info("config reloaded")
}
