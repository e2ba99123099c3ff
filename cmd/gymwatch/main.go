package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gymwatch/internal/app"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

func newRootCmd() *cobra.Command {
	var opts app.Options
	cmd := &cobra.Command{
		Use:           "gymwatch",
		Short:         "Watch TopLogger for open climbing slots and notify via Telegram",
		Version:       Version + " (" + CommitSHA + ")",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "./config.yaml", "path to config file (yaml or json)")
	f.BoolVar(&opts.Once, "once", false, "run a single poll cycle and exit")
	f.BoolVar(&opts.Debug, "debug", false, "log notifications instead of sending them")
	return cmd
}

func run(ctx context.Context, opts app.Options) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(opts)
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		stop(a, app.StopFatal)
		return fmt.Errorf("fatal start: %w", err)
	}

	runErr := a.Run(ctx)
	reason, code := outcome(runErr, ctx.Err())
	stop(a, reason)
	if code != 0 {
		return runErr
	}
	return nil
}

// outcome maps how Run ended to the stop reason and the process exit code.
// An interrupt is a clean shutdown.
func outcome(runErr, ctxErr error) (app.StopReason, int) {
	switch {
	case runErr != nil:
		return app.StopFatal, 1
	case ctxErr != nil:
		return app.StopSignal, 0
	default:
		return app.StopRunOnce, 0
	}
}

func stop(a *app.App, reason app.StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(ctx, reason)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
