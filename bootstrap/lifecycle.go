package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"greader-sync/service/scheduler"
)

// SchedulerConfig maps the sync settings onto the scheduler
func SchedulerConfig(deps *Dependencies) scheduler.Config {
	s := deps.Config.Sync
	return scheduler.Config{
		SyncInterval:    s.Interval,
		CleanupInterval: s.CleanupInterval,
		RetentionDays:   s.RetentionDays,
		CycleTimeout:    s.CycleTimeout,
		Parallelism:     s.Parallelism,
		RunOnStart:      s.RunOnStart,
	}
}

// NewScheduler returns a scheduler over every wired account
func NewScheduler(deps *Dependencies) *scheduler.Scheduler {
	runners := make([]scheduler.CycleRunner, 0, len(deps.Accounts))
	for _, a := range deps.Accounts {
		runners = append(runners, a.Sync)
	}
	return scheduler.NewScheduler(runners, deps.Runs, deps.Logger)
}

// Serve runs the scheduler and the HTTP server until ctx is cancelled, then
// shuts both down within the configured timeout.
func Serve(ctx context.Context, deps *Dependencies, tracing bool) error {
	log := deps.Logger
	cfg := deps.Config

	e, stopLimiter, err := NewHTTPServer(deps, tracing)
	if err != nil {
		return fmt.Errorf("failed to build http server: %w", err)
	}
	defer stopLimiter()

	sched := NewScheduler(deps)
	sched.Start(SchedulerConfig(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", cfg.HTTP.ListenAddr)
		if err := e.Start(cfg.HTTP.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down greader-sync")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := e.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		sched.Stop()
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("greader-sync stopped")
	return nil
}
