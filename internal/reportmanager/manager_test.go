package reportmanager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tradecouncil/tradecouncil/internal/database"
	"github.com/tradecouncil/tradecouncil/internal/models"
)

type recordingHub struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHub) Broadcast(sessionID, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *recordingHub) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func newManager(t *testing.T) (*Manager, *database.MemoryReportRepository, *recordingHub) {
	t.Helper()
	store := database.NewMemoryReportRepository()
	hub := &recordingHub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, hub, logger), store, hub
}

func TestStartSessionRetriesOnSaltCollision(t *testing.T) {
	m, store, _ := newManager(t)
	ctx := context.Background()

	// Freeze the clock so both runs land on the same second.
	fixed := time.Date(2025, 9, 13, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })

	first, err := m.StartSession(ctx, "AAPL", "2025-09-13")
	if err != nil {
		t.Fatalf("first StartSession returned error: %v", err)
	}
	second, err := m.StartSession(ctx, "AAPL", "2025-09-13")
	if err != nil {
		t.Fatalf("second StartSession returned error: %v", err)
	}
	if first == second {
		t.Errorf("both runs got session %q; retry did not bump the salt", first)
	}

	for _, id := range []string{first, second} {
		if ok, _ := store.Exists(ctx, id); !ok {
			t.Errorf("session %s missing from store", id)
		}
	}
}

func TestStartSessionRejectsBadInput(t *testing.T) {
	m, _, _ := newManager(t)
	if _, err := m.StartSession(context.Background(), "AA_PL", "2025-09-13"); !errors.Is(err, models.ErrInvalidTicker) {
		t.Errorf("error = %v, want ErrInvalidTicker", err)
	}
}

func TestLifecycleBroadcastsStatus(t *testing.T) {
	m, store, hub := newManager(t)
	ctx := context.Background()

	id, err := m.StartSession(ctx, "NVDA", "2025-09-13")
	if err != nil {
		t.Fatalf("StartSession returned error: %v", err)
	}
	if err := m.SaveAgentReport(ctx, id, models.RoleMarket, "Breadth is improving across the semiconductor complex."); err != nil {
		t.Fatalf("SaveAgentReport returned error: %v", err)
	}

	rec, err := m.FinalizeSession(ctx, id, "In summary: **BUY**. Earnings power remains underestimated.")
	if err != nil {
		t.Fatalf("FinalizeSession returned error: %v", err)
	}
	if rec != models.RecommendationBuy {
		t.Errorf("recommendation = %q, want BUY", rec)
	}

	stored, _ := store.GetSession(ctx, id)
	if stored.Recommendation != rec {
		t.Errorf("reported %q but store holds %q", rec, stored.Recommendation)
	}

	messages := hub.all()
	if len(messages) != 3 {
		t.Fatalf("got %d status messages, want 3: %v", len(messages), messages)
	}
	if messages[1] != "market report stored" {
		t.Errorf("second status = %q", messages[1])
	}
	if messages[2] != "final analysis complete: BUY" {
		t.Errorf("third status = %q", messages[2])
	}
}

func TestSaveAgentReportPropagatesStoreErrors(t *testing.T) {
	m, _, hub := newManager(t)
	ctx := context.Background()

	err := m.SaveAgentReport(ctx, "GONE_2025-09-13_1", models.RoleNews, "A report for a session that does not exist.")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
	if len(hub.all()) != 0 {
		t.Error("status broadcast on a failed write")
	}
}

func TestManagerWorksWithoutHub(t *testing.T) {
	store := database.NewMemoryReportRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(store, nil, logger)

	id, err := m.StartSession(context.Background(), "TSLA", "2025-09-13")
	if err != nil {
		t.Fatalf("StartSession without hub returned error: %v", err)
	}
	if id == "" {
		t.Error("empty session id")
	}
}
