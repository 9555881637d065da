package core

// scheduler.go runs background maintenance. Currently it purges audit
// entries past the retention period. A failed run is logged and retried
// on the next tick.

import (
	"context"
	"time"

	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

// RetentionConfig controls the audit retention job.
type RetentionConfig struct {
	Days          int           // Entries older than this are deleted; 0 disables the job
	CheckInterval time.Duration // How often to run (default: 24h)
}

// RunAuditRetention purges expired audit entries immediately and then
// every CheckInterval until ctx is cancelled. It returns nil on
// cancellation so it can run inside an errgroup.
func (s *Service) RunAuditRetention(ctx context.Context, cfg RetentionConfig) error {
	log := logging.FromContext(ctx).With("job", "audit_retention")
	if s.audit == nil || cfg.Days <= 0 {
		log.Info("audit retention disabled")
		return nil
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	log.Info("audit retention started", "retention_days", cfg.Days, "interval", cfg.CheckInterval)
	s.purgeAudit(ctx, cfg.Days)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("audit retention stopped")
			return nil
		case <-ticker.C:
			s.purgeAudit(ctx, cfg.Days)
		}
	}
}

func (s *Service) purgeAudit(ctx context.Context, days int) {
	log := logging.FromContext(ctx)
	start := time.Now()

	purged, err := s.audit.Purge(ctx, days)
	if err != nil {
		log.Error("audit purge failed", "error", err)
		return
	}
	log.Info("purged audit entries",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
