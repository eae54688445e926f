package core

// scheduler.go provides the background scan of the inbound directory.
//
// The scheduler is long-running and context-aware for graceful
// shutdown. It logs progress and errors but does not fail the
// application when individual files fail; those stay in the inbound
// directory for the next tick.

import (
	"context"
	"time"
)

// StartScheduler runs the inbound directory scan immediately, then on
// every interval tick until the context is cancelled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.log.Info("import scheduler started", "interval", interval)

	s.runScan(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("import scheduler stopped")
			return
		case <-ticker.C:
			s.runScan(ctx)
		}
	}
}

// runScan performs one scan cycle.
func (s *Service) runScan(ctx context.Context) {
	start := time.Now()
	summaries, err := s.ImportPending(ctx)
	if err != nil {
		s.log.Error("inbound scan failed", "error", err)
		return
	}
	if len(summaries) > 0 {
		s.log.Info("inbound scan finished",
			"files", len(summaries),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
