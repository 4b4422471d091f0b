// Package reportmanager coordinates the report lifecycle:
// session created → one report per agent role → final analysis with its
// derived recommendation, with a status broadcast at each step. The agent
// pipeline itself lives elsewhere; this manager is the write path it calls
// into.
package reportmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradecouncil/tradecouncil/internal/extraction"
	"github.com/tradecouncil/tradecouncil/internal/models"
)

// StatusBroadcaster pushes progress strings to connected clients. A nil
// broadcaster disables status relay.
type StatusBroadcaster interface {
	Broadcast(sessionID, message string)
}

// Manager owns the write path over the report store.
type Manager struct {
	store  models.ReportRepository
	hub    StatusBroadcaster
	logger *slog.Logger
	now    func() time.Time
}

// New creates a manager. hub may be nil.
func New(store models.ReportRepository, hub StatusBroadcaster, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		hub:    hub,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the salt clock. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// StartSession creates a session for the ticker/date using the clock as
// salt. When a run lands on the same second as a previous one, the create
// collides; one retry with a bumped salt preserves the invariant that
// repeated runs always get their own session.
func (m *Manager) StartSession(ctx context.Context, ticker, analysisDate string) (string, error) {
	salt := m.now().Unix()

	sessionID, err := m.store.CreateSession(ctx, ticker, analysisDate, salt)
	if errors.Is(err, models.ErrDuplicateSession) {
		sessionID, err = m.store.CreateSession(ctx, ticker, analysisDate, salt+1)
	}
	if err != nil {
		return "", fmt.Errorf("start session for %s on %s: %w", ticker, analysisDate, err)
	}

	m.logger.Info("analysis session created", "session_id", sessionID)
	m.broadcast(sessionID, fmt.Sprintf("analysis started for %s", sessionID))
	return sessionID, nil
}

// SaveAgentReport stores one role's report and relays progress.
func (m *Manager) SaveAgentReport(ctx context.Context, sessionID string, role models.AgentRole, content string) error {
	if err := m.store.UpsertAgentReport(ctx, sessionID, role, content); err != nil {
		return err
	}

	m.logger.Info("agent report stored", "session_id", sessionID, "role", role)
	m.broadcast(sessionID, fmt.Sprintf("%s report stored", role))
	return nil
}

// FinalizeSession stores the terminal synthesis and returns the derived
// recommendation. The store performs the joint write; the manager reads the
// result back so the value it reports is the value a reader would see.
func (m *Manager) FinalizeSession(ctx context.Context, sessionID, text string) (models.Recommendation, error) {
	if err := m.store.SetFinalAnalysis(ctx, sessionID, text); err != nil {
		return "", err
	}

	rec, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("finalize %s: read back: %w", sessionID, err)
	}

	_, tier := extraction.ClassifyWithTier(rec.FinalAnalysis)
	m.logger.Info("session finalized",
		"session_id", sessionID, "recommendation", rec.Recommendation, "tier", tier)
	m.broadcast(sessionID, fmt.Sprintf("final analysis complete: %s", rec.Recommendation))

	return rec.Recommendation, nil
}

func (m *Manager) broadcast(sessionID, message string) {
	if m.hub != nil {
		m.hub.Broadcast(sessionID, message)
	}
}
