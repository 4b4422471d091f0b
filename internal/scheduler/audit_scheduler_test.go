package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/tradecouncil/tradecouncil/internal/auditor"
	"github.com/tradecouncil/tradecouncil/internal/database"
	"github.com/tradecouncil/tradecouncil/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRepairsDriftOnStart(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryReportRepository()

	id, err := store.CreateSession(ctx, "NVDA", "2026-08-27", 1000)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.SetFinalAnalysis(ctx, id, "In summary, SELL into the rally while liquidity lasts."); err != nil {
		t.Fatalf("SetFinalAnalysis: %v", err)
	}
	store.ForceRecommendation(id, models.RecommendationBuy)

	s := NewAuditScheduler(auditor.New(testLogger()), store, nil, 50*time.Millisecond, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		record, err := store.GetSession(ctx, id)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if record.Recommendation == models.RecommendationSell {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("drift not repaired, recommendation still %s", record.Recommendation)
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := database.NewMemoryReportRepository()
	s := NewAuditScheduler(auditor.New(testLogger()), store, nil, time.Hour, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}
