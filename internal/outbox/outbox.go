// Package outbox periodically drains notification events that were
// buffered while the broker was unreachable. The sweep is cron-scheduled
// and best-effort: a failed republish leaves the entry in place for the
// next tick, and entries older than the configured age are dropped.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"channeld/pkg/config"
	"channeld/pkg/logger"
	"channeld/pkg/notify"
	"channeld/pkg/store"
)

// Start launches the sweep scheduler if enabled, returning a cancel func.
func Start(ctx context.Context, cfg config.OutboxConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("outbox_sweeper_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "*/1 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid outbox cron expression: %s", cfg.Cron)
	}
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	logger.Info("outbox_sweeper_started", "cron", cronExpr, "max_age", cfg.MaxAge.Duration().String())
	return cancel, nil
}

// runScheduler sleeps until each next cron tick and runs a sweep.
func runScheduler(ctx context.Context, cfg config.OutboxConfig, cronExpr string) {
	for {
		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		if err != nil {
			logger.Error("outbox_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("outbox_sweeper_stopping")
			return
		}
		if err := RunOnce(cfg); err != nil {
			logger.Error("outbox_sweep_error", "error", err)
		}
	}
}

// RunOnce performs a single sweep: republish pending entries when the
// publisher is connected, then purge anything past the retention age.
func RunOnce(cfg config.OutboxConfig) error {
	entries, err := store.ListOutbox()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	pub := notify.Global()
	cutoff := time.Time{}
	if age := cfg.MaxAge.Duration(); age > 0 {
		cutoff = time.Now().UTC().Add(-age)
	}

	done := []string{}
	published, expired := 0, 0
	for _, e := range entries {
		if !cutoff.IsZero() && !e.Time.IsZero() && e.Time.Before(cutoff) {
			done = append(done, e.Key)
			expired++
			continue
		}
		if pub == nil {
			continue
		}
		if err := pub.PublishRaw(e.Payload); err != nil {
			// broker still unreachable, keep the rest for the next tick
			break
		}
		done = append(done, e.Key)
		published++
	}
	if len(done) == 0 {
		return nil
	}
	if err := store.DeleteOutbox(done); err != nil {
		return err
	}
	logger.Info("outbox_swept", "published", published, "expired", expired, "pending", len(entries)-len(done))
	return nil
}
