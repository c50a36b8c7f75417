// Package app wires the process together: configuration, store, broker
// publisher, outbox sweeper and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"channeld/pkg/banner"
	"channeld/pkg/config"
	"channeld/pkg/logger"
	"channeld/pkg/notify"
	"channeld/pkg/store"
	"channeld/pkg/telemetry"

	"channeld/internal/outbox"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.Effective
	version   string
	commit    string
	buildDate string

	pub         *notify.Publisher
	sweepCancel context.CancelFunc
	srv         *http.Server
}

// New opens the store and builds the app. It does not touch the network;
// call Run to start the publisher and HTTP server and block until
// shutdown.
func New(eff config.Effective, version, commit, buildDate string) (*App, error) {
	if err := store.Open(eff.DBPath, eff.Config.Store.CacheSize.Int64()); err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", eff.DBPath, err)
	}
	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate}, nil
}

// Run starts the broker publisher, the outbox sweeper and the HTTP server,
// and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if d := a.eff.Config.Logging.SlowRequestThreshold.Duration(); d > 0 {
		telemetry.SetSlowThreshold(d)
	}

	if a.eff.Config.Broker.URL != "" {
		a.pub = notify.New(a.eff.Config.Broker)
		notify.SetGlobal(a.pub)
		a.pub.Start()
	} else {
		logger.Warn("broker_disabled", "msg", "no broker url configured, events will be dropped")
	}

	cancel, err := outbox.Start(ctx, a.eff.Config.Outbox)
	if err != nil {
		return err
	}
	a.sweepCancel = cancel

	banner.Print(a.eff, a.version)

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.stop()
		return nil
	case err := <-errCh:
		a.stop()
		return err
	}
}

// stop tears components down in reverse start order.
func (a *App) stop() {
	if a.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	if a.pub != nil {
		a.pub.Close()
		notify.SetGlobal(nil)
	}
	if err := store.Close(); err != nil {
		logger.Warn("store_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
}
