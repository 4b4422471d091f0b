package auditor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/tradecouncil/tradecouncil/internal/database"
	"github.com/tradecouncil/tradecouncil/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedStore(t *testing.T) (*database.MemoryReportRepository, string, string) {
	t.Helper()
	ctx := context.Background()
	store := database.NewMemoryReportRepository()

	consistent, err := store.CreateSession(ctx, "AAPL", "2025-09-13", 1)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.SetFinalAnalysis(ctx, consistent, "In summary: **BUY**. The services flywheel keeps compounding."); err != nil {
		t.Fatalf("seed: %v", err)
	}

	drifted, err := store.CreateSession(ctx, "SNAP", "2025-09-13", 2)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.SetFinalAnalysis(ctx, drifted, "Not rushing into a buy or full sell; my recommendation is to **Hold**."); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Simulate a classification left behind by an older extraction version.
	store.ForceRecommendation(drifted, models.RecommendationSell)

	// Pending session: no final analysis, never audited.
	if _, err := store.CreateSession(ctx, "TSLA", "2025-09-13", 3); err != nil {
		t.Fatalf("seed: %v", err)
	}

	return store, consistent, drifted
}

func TestAuditFindsDrift(t *testing.T) {
	store, _, drifted := seedStore(t)
	a := New(quietLogger())

	findings, err := a.Audit(context.Background(), store)
	if err != nil {
		t.Fatalf("Audit returned error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1: %+v", len(findings), findings)
	}

	f := findings[0]
	if f.SessionID != drifted {
		t.Errorf("finding session = %q, want %q", f.SessionID, drifted)
	}
	if f.Stored != models.RecommendationSell || f.Recomputed != models.RecommendationHold {
		t.Errorf("finding = stored %q / recomputed %q, want SELL / HOLD", f.Stored, f.Recomputed)
	}
}

func TestRepairSingleSession(t *testing.T) {
	store, consistent, drifted := seedStore(t)
	a := New(quietLogger())
	ctx := context.Background()

	changed, err := a.Repair(ctx, store, drifted)
	if err != nil {
		t.Fatalf("Repair returned error: %v", err)
	}
	if !changed {
		t.Error("Repair reported no change for a drifted session")
	}

	rec, _ := store.GetSession(ctx, drifted)
	if rec.Recommendation != models.RecommendationHold {
		t.Errorf("recommendation after repair = %q, want HOLD", rec.Recommendation)
	}

	// Consistent session: no-op, not an error.
	changed, err = a.Repair(ctx, store, consistent)
	if err != nil {
		t.Fatalf("Repair of consistent session returned error: %v", err)
	}
	if changed {
		t.Error("Repair wrote to an already consistent session")
	}

	if _, err := a.Repair(ctx, store, "MSFT_2025-09-13_99"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("missing session error = %v, want ErrSessionNotFound", err)
	}
}

func TestRepairAllIsIdempotent(t *testing.T) {
	store, _, _ := seedStore(t)
	a := New(quietLogger())
	ctx := context.Background()

	result, err := a.RepairAll(ctx, store)
	if err != nil {
		t.Fatalf("RepairAll returned error: %v", err)
	}
	if result.Checked != 2 || result.Divergent != 1 || result.Repaired != 1 {
		t.Errorf("result = %+v, want checked=2 divergent=1 repaired=1", result)
	}
	if len(result.Failures) != 0 {
		t.Errorf("unexpected failures: %+v", result.Failures)
	}

	// Immediately afterwards the audit is clean and a second pass changes
	// nothing.
	findings, err := a.Audit(ctx, store)
	if err != nil {
		t.Fatalf("Audit after repair returned error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("audit after repair found %d divergent sessions", len(findings))
	}

	again, err := a.RepairAll(ctx, store)
	if err != nil {
		t.Fatalf("second RepairAll returned error: %v", err)
	}
	if again.Divergent != 0 || again.Repaired != 0 {
		t.Errorf("second pass = %+v, want no further changes", again)
	}
}

// failingStore wraps the memory repository and fails recommendation updates
// for one session, to prove a bad session does not abort the batch.
type failingStore struct {
	*database.MemoryReportRepository
	failID string
}

func (s *failingStore) UpdateRecommendation(ctx context.Context, sessionID string, rec models.Recommendation) error {
	if sessionID == s.failID {
		return errors.New("simulated transient store error")
	}
	return s.MemoryReportRepository.UpdateRecommendation(ctx, sessionID, rec)
}

func TestRepairAllAccumulatesFailures(t *testing.T) {
	ctx := context.Background()
	mem := database.NewMemoryReportRepository()

	bad, _ := mem.CreateSession(ctx, "BAD", "2025-09-13", 1)
	mem.SetFinalAnalysis(ctx, bad, "Conclusion: hold through the lockup expiry.")
	mem.ForceRecommendation(bad, models.RecommendationBuy)

	good, _ := mem.CreateSession(ctx, "GOOD", "2025-09-13", 2)
	mem.SetFinalAnalysis(ctx, good, "Final recommendation: SELL ahead of the downgrade cycle.")
	mem.ForceRecommendation(good, models.RecommendationBuy)

	store := &failingStore{MemoryReportRepository: mem, failID: bad}
	a := New(quietLogger())

	result, err := a.RepairAll(ctx, store)
	if err != nil {
		t.Fatalf("RepairAll returned error: %v", err)
	}
	if result.Checked != 2 || result.Divergent != 2 {
		t.Errorf("result = %+v, want checked=2 divergent=2", result)
	}
	if result.Repaired != 1 {
		t.Errorf("repaired = %d, want 1 (the healthy session)", result.Repaired)
	}
	if len(result.Failures) != 1 || result.Failures[0].SessionID != bad {
		t.Errorf("failures = %+v, want exactly the failing session", result.Failures)
	}

	rec, _ := mem.GetSession(ctx, good)
	if rec.Recommendation != models.RecommendationSell {
		t.Errorf("healthy session not repaired: %q", rec.Recommendation)
	}
}
