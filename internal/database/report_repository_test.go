package database

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/tradecouncil/tradecouncil/internal/models"
)

// Integration tests for the PostgreSQL repository. They need a live database
// with migrations applied; set TEST_DATABASE_URL to run them.
func testDB(t *testing.T) *PostgresReportRepository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set - skipping database integration test")
	}

	cfg := DefaultConfig()
	cfg.URL = url
	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewPostgresReportRepository(db)
}

func TestPostgresSessionLifecycle(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	salt := int64(os.Getpid())*1000 + int64(len(t.Name()))
	id, err := repo.CreateSession(ctx, "AAPL", "2025-09-13", salt)
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	if _, err := repo.CreateSession(ctx, "AAPL", "2025-09-13", salt); !errors.Is(err, models.ErrDuplicateSession) {
		t.Errorf("duplicate create error = %v, want ErrDuplicateSession", err)
	}

	exists, err := repo.Exists(ctx, id)
	if err != nil || !exists {
		t.Errorf("Exists(%s) = (%v, %v), want (true, nil)", id, exists, err)
	}

	content := "Institutional flows turned net positive over the last five sessions."
	if err := repo.UpsertAgentReport(ctx, id, models.RoleMarket, content); err != nil {
		t.Fatalf("UpsertAgentReport returned error: %v", err)
	}
	if err := repo.UpsertAgentReport(ctx, id, "not_a_real_agent", content); !errors.Is(err, models.ErrUnknownAgentRole) {
		t.Errorf("unknown role error = %v, want ErrUnknownAgentRole", err)
	}

	// No final analysis yet, so no recommendation may be written.
	if err := repo.UpdateRecommendation(ctx, id, models.RecommendationBuy); err == nil {
		t.Error("expected error updating recommendation before finalization")
	}

	text := "Valuation is stretched but momentum persists. My recommendation is to **Hold**."
	if err := repo.SetFinalAnalysis(ctx, id, text); err != nil {
		t.Fatalf("SetFinalAnalysis returned error: %v", err)
	}

	if err := repo.UpdateRecommendation(ctx, id, models.RecommendationHold); err != nil {
		t.Errorf("UpdateRecommendation on finalized session returned error: %v", err)
	}

	rec, err := repo.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if rec.Recommendation != models.RecommendationHold {
		t.Errorf("recommendation = %q, want HOLD", rec.Recommendation)
	}
	if rec.AgentReports[models.RoleMarket] == "" {
		t.Error("market report missing after upsert")
	}

	if _, err := repo.GetSession(ctx, "ZZZZ_1999-01-01_1"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("missing session error = %v, want ErrSessionNotFound", err)
	}

	summaries, err := repo.ListSessions(ctx, models.SessionQuery{Ticker: "AAPL", AnalysisDate: "2025-09-13"})
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	found := false
	for _, s := range summaries {
		if s.SessionID == id {
			found = true
			if !s.HasFinalAnalysis || s.Recommendation != models.RecommendationHold {
				t.Errorf("summary for %s = %+v", id, s)
			}
		}
	}
	if !found {
		t.Errorf("session %s missing from listing", id)
	}
}
