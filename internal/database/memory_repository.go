package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tradecouncil/tradecouncil/internal/extraction"
	"github.com/tradecouncil/tradecouncil/internal/models"
	"github.com/tradecouncil/tradecouncil/internal/session"
)

// MemoryReportRepository is an in-memory models.ReportRepository. It backs
// tests and lets the gateway run degraded when no database is configured.
// All operations are safe for concurrent use.
type MemoryReportRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionRecord
	order    []string // creation order for stable listings
	now      func() time.Time
}

// NewMemoryReportRepository creates an empty in-memory repository.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{
		sessions: make(map[string]*models.SessionRecord),
		now:      time.Now,
	}
}

// SetClock overrides the repository clock. Test hook.
func (r *MemoryReportRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// CreateSession inserts a new pending session.
func (r *MemoryReportRepository) CreateSession(_ context.Context, ticker, analysisDate string, salt int64) (string, error) {
	sessionID, err := session.GenerateWithSalt(ticker, analysisDate, salt)
	if err != nil {
		return "", err
	}
	cleanTicker, _, _, err := session.Parse(sessionID)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return "", fmt.Errorf("session %s: %w", sessionID, models.ErrDuplicateSession)
	}

	now := r.now()
	r.sessions[sessionID] = &models.SessionRecord{
		SessionID:    sessionID,
		Ticker:       cleanTicker,
		AnalysisDate: analysisDate,
		CreatedAt:    now,
		UpdatedAt:    now,
		AgentReports: make(map[models.AgentRole]string),
	}
	r.order = append(r.order, sessionID)
	return sessionID, nil
}

// UpsertAgentReport writes or overwrites one role's report.
func (r *MemoryReportRepository) UpsertAgentReport(_ context.Context, sessionID string, role models.AgentRole, content string) error {
	if !role.Valid() {
		return fmt.Errorf("agent key %q: %w", role, models.ErrUnknownAgentRole)
	}

	sanitized, err := models.SanitizeReportContent(content)
	if err != nil {
		return fmt.Errorf("report for %s: %w", role, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	rec.AgentReports[role] = sanitized
	rec.UpdatedAt = r.now()
	return nil
}

// SetFinalAnalysis stores the synthesis and its derived recommendation under
// one lock acquisition, so readers always see the pair together.
func (r *MemoryReportRepository) SetFinalAnalysis(_ context.Context, sessionID, text string) error {
	sanitized, err := models.SanitizeReportContent(text)
	if err != nil {
		return fmt.Errorf("final analysis: %w", err)
	}

	recommendation := extraction.Classify(sanitized)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	rec.FinalAnalysis = sanitized
	rec.Recommendation = recommendation
	rec.UpdatedAt = r.now()
	return nil
}

// UpdateRecommendation overwrites only the stored recommendation. Sessions
// without a final analysis are refused.
func (r *MemoryReportRepository) UpdateRecommendation(_ context.Context, sessionID string, recommendation models.Recommendation) error {
	if !recommendation.Valid() {
		return fmt.Errorf("recommendation %q is not one of BUY/SELL/HOLD", recommendation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	if rec.FinalAnalysis == "" {
		return fmt.Errorf("session %s has no final analysis", sessionID)
	}
	rec.Recommendation = recommendation
	rec.UpdatedAt = r.now()
	return nil
}

// GetSession returns a copy of the stored record.
func (r *MemoryReportRepository) GetSession(_ context.Context, sessionID string) (*models.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	return copyRecord(rec), nil
}

// GetLatestSession returns the most recently created session for the pair.
func (r *MemoryReportRepository) GetLatestSession(_ context.Context, ticker, analysisDate string) (*models.SessionRecord, error) {
	cleanTicker, err := models.ValidateTicker(ticker)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateAnalysisDate(analysisDate); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		rec := r.sessions[r.order[i]]
		if rec.Ticker == cleanTicker && rec.AnalysisDate == analysisDate {
			return copyRecord(rec), nil
		}
	}
	return nil, fmt.Errorf("no session for %s on %s: %w", cleanTicker, analysisDate, models.ErrSessionNotFound)
}

// Exists checks membership.
func (r *MemoryReportRepository) Exists(_ context.Context, sessionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok, nil
}

// ListSessions returns summaries matching the query, newest first.
func (r *MemoryReportRepository) ListSessions(_ context.Context, q models.SessionQuery) ([]models.SessionSummary, error) {
	cleanTicker, err := models.ValidateTicker(q.Ticker)
	if err != nil {
		return nil, err
	}
	if q.AnalysisDate != "" {
		if err := models.ValidateAnalysisDate(q.AnalysisDate); err != nil {
			return nil, err
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var summaries []models.SessionSummary
	for _, id := range r.order {
		rec := r.sessions[id]
		if rec.Ticker != cleanTicker {
			continue
		}
		if q.AnalysisDate != "" && rec.AnalysisDate != q.AnalysisDate {
			continue
		}
		summaries = append(summaries, models.SessionSummary{
			SessionID:        rec.SessionID,
			Ticker:           rec.Ticker,
			AnalysisDate:     rec.AnalysisDate,
			CreatedAt:        rec.CreatedAt,
			UpdatedAt:        rec.UpdatedAt,
			Recommendation:   rec.Recommendation,
			HasFinalAnalysis: rec.Finalized(),
			AvailableReports: rec.AvailableReports(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// ListFinalized returns copies of every session with a final analysis.
func (r *MemoryReportRepository) ListFinalized(_ context.Context) ([]models.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []models.SessionRecord
	for _, id := range r.order {
		rec := r.sessions[id]
		if rec.Finalized() {
			records = append(records, *copyRecord(rec))
		}
	}
	return records, nil
}

// ForceRecommendation rewrites the stored recommendation without touching
// final_analysis, bypassing derivation. Test hook for simulating drift left
// behind by older extraction logic.
func (r *MemoryReportRepository) ForceRecommendation(sessionID string, recommendation models.Recommendation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[sessionID]; ok {
		rec.Recommendation = recommendation
	}
}

func copyRecord(rec *models.SessionRecord) *models.SessionRecord {
	out := *rec
	out.AgentReports = make(map[models.AgentRole]string, len(rec.AgentReports))
	for role, content := range rec.AgentReports {
		out.AgentReports[role] = content
	}
	return &out
}
