// Package auditor detects and repairs drift between a session's stored
// recommendation and the value the current extraction logic derives from its
// final analysis. Drift is real: extraction logic has changed over time and
// each change silently reclassified history. Policy here is recompute-with-
// current-logic; the stored value is never treated as authoritative.
package auditor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tradecouncil/tradecouncil/internal/extraction"
	"github.com/tradecouncil/tradecouncil/internal/models"
)

// Finding is one divergent session: what the store says versus what the
// current extractor derives.
type Finding struct {
	SessionID  string                `json:"session_id"`
	Ticker     string                `json:"ticker"`
	Stored     models.Recommendation `json:"stored"`
	Recomputed models.Recommendation `json:"recomputed"`
	Tier       string                `json:"tier"`
}

// RepairFailure records one session whose repair failed. The batch keeps
// going; a single corrupt session never blocks the rest.
type RepairFailure struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// Result summarizes a repair-all pass.
type Result struct {
	Checked   int             `json:"checked"`
	Divergent int             `json:"divergent"`
	Repaired  int             `json:"repaired"`
	Failures  []RepairFailure `json:"failures,omitempty"`
}

// Auditor runs consistency passes over an explicit store handle. It holds no
// state of its own; every pass is an independent batch.
type Auditor struct {
	logger *slog.Logger
}

// New creates an auditor.
func New(logger *slog.Logger) *Auditor {
	return &Auditor{logger: logger}
}

// Audit lists every finalized session whose stored recommendation disagrees
// with the recomputed one.
func (a *Auditor) Audit(ctx context.Context, store models.ReportRepository) ([]Finding, error) {
	records, err := store.ListFinalized(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list finalized sessions: %w", err)
	}

	var findings []Finding
	for _, rec := range records {
		recomputed, tier := extraction.ClassifyWithTier(rec.FinalAnalysis)
		if rec.Recommendation == recomputed {
			continue
		}
		findings = append(findings, Finding{
			SessionID:  rec.SessionID,
			Ticker:     rec.Ticker,
			Stored:     rec.Recommendation,
			Recomputed: recomputed,
			Tier:       tier,
		})
	}

	a.logger.Info("consistency audit complete", "checked", len(records), "divergent", len(findings))
	return findings, nil
}

// Repair recomputes one session's recommendation and overwrites the stored
// value when they differ. Returns whether a write happened; an already
// consistent session is a no-op, not an error.
func (a *Auditor) Repair(ctx context.Context, store models.ReportRepository, sessionID string) (bool, error) {
	rec, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("repair %s: %w", sessionID, err)
	}
	if !rec.Finalized() {
		return false, nil
	}

	recomputed := extraction.Classify(rec.FinalAnalysis)
	if rec.Recommendation == recomputed {
		return false, nil
	}

	if err := store.UpdateRecommendation(ctx, sessionID, recomputed); err != nil {
		return false, fmt.Errorf("repair %s: %w", sessionID, err)
	}

	a.logger.Info("repaired recommendation",
		"session_id", sessionID, "stored", rec.Recommendation, "recomputed", recomputed)
	return true, nil
}

// RepairAll audits the whole store and repairs every divergent session.
// Sessions are processed independently: a failed repair lands in
// Result.Failures and the scan continues. Running it twice in a row yields
// zero further changes.
func (a *Auditor) RepairAll(ctx context.Context, store models.ReportRepository) (Result, error) {
	records, err := store.ListFinalized(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("repair all: failed to list finalized sessions: %w", err)
	}

	result := Result{Checked: len(records)}
	for _, rec := range records {
		recomputed := extraction.Classify(rec.FinalAnalysis)
		if rec.Recommendation == recomputed {
			continue
		}
		result.Divergent++

		if err := store.UpdateRecommendation(ctx, rec.SessionID, recomputed); err != nil {
			a.logger.Error("failed to repair session", "session_id", rec.SessionID, "error", err)
			result.Failures = append(result.Failures, RepairFailure{
				SessionID: rec.SessionID,
				Error:     err.Error(),
			})
			continue
		}
		result.Repaired++
	}

	a.logger.Info("repair pass complete",
		"checked", result.Checked, "divergent", result.Divergent,
		"repaired", result.Repaired, "failed", len(result.Failures))
	return result, nil
}
