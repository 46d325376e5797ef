package app

import (
	"context"
	"time"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/state/shutdown"
)

// Shutdown stops the components in dependency order: open streams first so
// the http server can drain, then the sweeper, then the stores the
// notification trigger writes through, and finally the journal.
func (a *App) Shutdown(ctx context.Context) error {
	a.state = "shutting_down"
	var steps []shutdown.Step
	if a.api != nil {
		steps = append(steps, shutdown.Step{Name: "api", Run: func() error { a.api.Close(); return nil }})
	}
	if a.srv != nil {
		steps = append(steps, shutdown.Step{Name: "http", Run: a.srv.Shutdown})
	}
	if a.sweepCancel != nil {
		steps = append(steps, shutdown.Step{Name: "sweep", Run: func() error { a.sweepCancel(); return nil }})
	}
	if a.store != nil {
		steps = append(steps, shutdown.Step{Name: "store", Run: a.store.Close})
	}
	if a.blobs != nil {
		steps = append(steps, shutdown.Step{Name: "blobs", Run: a.blobs.Close})
	}
	if a.journal != nil {
		steps = append(steps, shutdown.Step{Name: "journal", Run: a.journal.Close})
	}

	err := shutdown.ShutdownApp(ctx, steps...)
	if err == nil {
		a.state = "stopped"
		uptime := time.Duration(0)
		if !a.startedAt.IsZero() {
			uptime = time.Since(a.startedAt).Round(time.Second)
		}
		logger.Info("app_stopped", "uptime", uptime.String())
	} else {
		logger.Error("app_shutdown_failed", "error", err)
	}
	return err
}
