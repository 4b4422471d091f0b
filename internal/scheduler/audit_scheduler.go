package scheduler

import (
	"context"
	"time"

	"log/slog"

	"github.com/tradecouncil/tradecouncil/internal/auditor"
	"github.com/tradecouncil/tradecouncil/internal/metrics"
	"github.com/tradecouncil/tradecouncil/internal/models"
)

// AuditScheduler runs the consistency repair pass on a fixed interval.
// Sessions finalized before an extraction-logic change drift from what the
// current cascade would derive; the periodic pass converges them without
// operator intervention.
type AuditScheduler struct {
	aud      *auditor.Auditor
	store    models.ReportRepository
	metrics  *metrics.Collector
	logger   *slog.Logger
	stopChan chan struct{}
	interval time.Duration
}

// NewAuditScheduler creates a new audit scheduler. collector may be nil.
func NewAuditScheduler(aud *auditor.Auditor, store models.ReportRepository, collector *metrics.Collector, interval time.Duration, logger *slog.Logger) *AuditScheduler {
	return &AuditScheduler{
		aud:      aud,
		store:    store,
		metrics:  collector,
		logger:   logger,
		stopChan: make(chan struct{}),
		interval: interval,
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or the
// context is cancelled.
func (s *AuditScheduler) Start(ctx context.Context) {
	s.logger.Info("starting audit scheduler", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on start
	s.runRepair(ctx)

	for {
		select {
		case <-ticker.C:
			s.runRepair(ctx)
		case <-s.stopChan:
			s.logger.Info("audit scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("audit scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler.
func (s *AuditScheduler) Stop() {
	close(s.stopChan)
}

func (s *AuditScheduler) runRepair(ctx context.Context) {
	result, err := s.aud.RepairAll(ctx, s.store)
	if err != nil {
		s.logger.Error("scheduled consistency repair failed", "error", err)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveAuditRun(result.Divergent, result.Repaired, len(result.Failures))
	}

	if result.Divergent == 0 {
		s.logger.Debug("scheduled consistency repair found no drift", "checked", result.Checked)
		return
	}

	s.logger.Info("scheduled consistency repair completed",
		"checked", result.Checked,
		"divergent", result.Divergent,
		"repaired", result.Repaired,
		"failures", len(result.Failures),
	)
}
