package service

import (
	"context"
	"time"

	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// Scheduler drives the periodic background work: the expiry scan and the
// reconciliation audit. Repair is deliberately not on the schedule, it stays
// an explicit operator call.
type Scheduler struct {
	auditor  *Auditor
	scanner  *ExpiryScanner
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(auditor *Auditor, scanner *ExpiryScanner, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		auditor:  auditor,
		scanner:  scanner,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")

		// Run an initial cycle immediately
		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// runCycle runs one expiry scan and one full audit
func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()

	flagged, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry scan failed")
	}

	report, err := s.auditor.Audit(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("reconciliation audit failed")
		return
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("expiring_batches", flagged).
		Int("shelves_checked", report.ShelvesChecked).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("scheduled cycle completed")
}
