package core

// scheduler.go runs periodic maintenance. Currently that is the audit log
// retention purge: entries older than RetentionDays are deleted once at
// start and then every CheckInterval. Failures are logged and retried on
// the next tick; they never stop the server.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig configures the audit retention job.
type RetentionConfig struct {
	RetentionDays int           // entries older than this are purged (default: 365)
	CheckInterval time.Duration // how often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 365
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler blocks until ctx is cancelled, purging old audit
// entries on every tick. Run it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("audit retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval.String(),
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)

	purged, err := s.store.PurgeAuditEntries(ctx, cutoff)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return
	}
	slog.Info("purged old audit entries",
		"entries_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
