package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradecouncil/tradecouncil/internal/extraction"
	"github.com/tradecouncil/tradecouncil/internal/models"
	"github.com/tradecouncil/tradecouncil/internal/session"
)

const analysisDateLayout = "2006-01-02"

// PostgresReportRepository implements models.ReportRepository over the
// agent_reports table: one row per session, one column per agent role.
type PostgresReportRepository struct {
	db *sql.DB
}

// NewPostgresReportRepository creates a new PostgreSQL report repository.
func NewPostgresReportRepository(db *sql.DB) *PostgresReportRepository {
	return &PostgresReportRepository{db: db}
}

// CreateSession inserts a new session row keyed by the id derived from
// (ticker, date, salt). A pre-existing row for the identical triple fails
// with ErrDuplicateSession; the caller decides whether to retry with a
// fresh salt.
func (r *PostgresReportRepository) CreateSession(ctx context.Context, ticker, analysisDate string, salt int64) (string, error) {
	sessionID, err := session.GenerateWithSalt(ticker, analysisDate, salt)
	if err != nil {
		return "", err
	}
	cleanTicker, _, _, err := session.Parse(sessionID)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO agent_reports (id, session_id, ticker, analysis_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id
	`

	var rowID string
	err = r.db.QueryRowContext(ctx, query, uuid.New().String(), sessionID, cleanTicker, analysisDate).Scan(&rowID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("session %s: %w", sessionID, models.ErrDuplicateSession)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}

	return sessionID, nil
}

// UpsertAgentReport writes or overwrites one role's report column and bumps
// updated_at. The write is idempotent: repeating it never creates a second
// row for the session.
func (r *PostgresReportRepository) UpsertAgentReport(ctx context.Context, sessionID string, role models.AgentRole, content string) error {
	if !role.Valid() {
		return fmt.Errorf("agent key %q: %w", role, models.ErrUnknownAgentRole)
	}
	if !session.Valid(sessionID) {
		return fmt.Errorf("upsert agent report: %w: %q", models.ErrMalformedSessionID, sessionID)
	}

	sanitized, err := models.SanitizeReportContent(content)
	if err != nil {
		return fmt.Errorf("report for %s: %w", role, err)
	}

	// The column name comes from the closed role map, never from input.
	query := fmt.Sprintf(`
		UPDATE agent_reports
		SET %s = $1, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = $2
		RETURNING id
	`, role.Column())

	var rowID string
	err = r.db.QueryRowContext(ctx, query, sanitized, sessionID).Scan(&rowID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s report for %s: %w", role, sessionID, err)
	}
	return nil
}

// SetFinalAnalysis persists the terminal synthesis together with the
// recommendation derived from it. A single UPDATE carries both columns, so
// no reader can observe one without the other.
func (r *PostgresReportRepository) SetFinalAnalysis(ctx context.Context, sessionID, text string) error {
	if !session.Valid(sessionID) {
		return fmt.Errorf("set final analysis: %w: %q", models.ErrMalformedSessionID, sessionID)
	}

	sanitized, err := models.SanitizeReportContent(text)
	if err != nil {
		return fmt.Errorf("final analysis: %w", err)
	}

	recommendation := extraction.Classify(sanitized)

	query := `
		UPDATE agent_reports
		SET final_analysis = $1, recommendation = $2, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = $3
		RETURNING id
	`

	var rowID string
	err = r.db.QueryRowContext(ctx, query, sanitized, string(recommendation), sessionID).Scan(&rowID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to save final analysis for %s: %w", sessionID, err)
	}
	return nil
}

// UpdateRecommendation overwrites only the stored recommendation, leaving
// final_analysis untouched. Used by the consistency auditor. Sessions
// without a final analysis are refused: recommendation is present iff
// final_analysis is present.
func (r *PostgresReportRepository) UpdateRecommendation(ctx context.Context, sessionID string, rec models.Recommendation) error {
	if !rec.Valid() {
		return fmt.Errorf("recommendation %q is not one of BUY/SELL/HOLD", rec)
	}

	query := `
		UPDATE agent_reports
		SET recommendation = $1, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = $2 AND final_analysis IS NOT NULL AND final_analysis <> ''
		RETURNING id
	`

	var rowID string
	err := r.db.QueryRowContext(ctx, query, string(rec), sessionID).Scan(&rowID)
	if err == sql.ErrNoRows {
		exists, existsErr := r.Exists(ctx, sessionID)
		if existsErr != nil {
			return fmt.Errorf("failed to update recommendation for %s: %w", sessionID, existsErr)
		}
		if exists {
			return fmt.Errorf("session %s has no final analysis", sessionID)
		}
		return fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update recommendation for %s: %w", sessionID, err)
	}
	return nil
}

// sessionColumns lists the scan order shared by GetSession and
// GetLatestSession: metadata first, then one report column per role in
// pipeline order, then the final results.
func sessionColumns() string {
	var b strings.Builder
	b.WriteString("session_id, ticker, analysis_date, created_at, updated_at")
	for _, role := range models.AllAgentRoles() {
		b.WriteString(", ")
		b.WriteString(role.Column())
	}
	b.WriteString(", final_analysis, recommendation")
	return b.String()
}

func scanSessionRecord(row *sql.Row) (*models.SessionRecord, error) {
	roles := models.AllAgentRoles()

	var rec models.SessionRecord
	var analysisDate time.Time
	reports := make([]sql.NullString, len(roles))
	var finalAnalysis, recommendation sql.NullString

	dest := []interface{}{&rec.SessionID, &rec.Ticker, &analysisDate, &rec.CreatedAt, &rec.UpdatedAt}
	for i := range reports {
		dest = append(dest, &reports[i])
	}
	dest = append(dest, &finalAnalysis, &recommendation)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.AnalysisDate = analysisDate.Format(analysisDateLayout)
	rec.AgentReports = make(map[models.AgentRole]string)
	for i, role := range roles {
		if reports[i].Valid && reports[i].String != "" {
			rec.AgentReports[role] = reports[i].String
		}
	}
	rec.FinalAnalysis = finalAnalysis.String
	rec.Recommendation = models.Recommendation(recommendation.String)

	return &rec, nil
}

// GetSession loads the full session record.
func (r *PostgresReportRepository) GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM agent_reports WHERE session_id = $1", sessionColumns())

	rec, err := scanSessionRecord(r.db.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}
	return rec, nil
}

// GetLatestSession loads the most recently created session for the
// ticker/date pair.
func (r *PostgresReportRepository) GetLatestSession(ctx context.Context, ticker, analysisDate string) (*models.SessionRecord, error) {
	cleanTicker, err := models.ValidateTicker(ticker)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateAnalysisDate(analysisDate); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM agent_reports
		WHERE ticker = $1 AND analysis_date = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionColumns())

	rec, err := scanSessionRecord(r.db.QueryRowContext(ctx, query, cleanTicker, analysisDate))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no session for %s on %s: %w", cleanTicker, analysisDate, models.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest session for %s: %w", cleanTicker, err)
	}
	return rec, nil
}

// Exists checks whether a session id has a row.
func (r *PostgresReportRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM agent_reports WHERE session_id = $1)", sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return exists, nil
}

// ListSessions returns session summaries matching the query, newest first.
// Report bodies are left out; presence flags are computed in SQL.
func (r *PostgresReportRepository) ListSessions(ctx context.Context, q models.SessionQuery) ([]models.SessionSummary, error) {
	cleanTicker, err := models.ValidateTicker(q.Ticker)
	if err != nil {
		return nil, err
	}

	roles := models.AllAgentRoles()

	var b strings.Builder
	b.WriteString("SELECT session_id, ticker, analysis_date, created_at, updated_at, recommendation")
	b.WriteString(", (final_analysis IS NOT NULL AND final_analysis <> '') AS has_final")
	for _, role := range roles {
		fmt.Fprintf(&b, ", (%s IS NOT NULL AND %s <> '')", role.Column(), role.Column())
	}
	b.WriteString(" FROM agent_reports WHERE ticker = $1")

	args := []interface{}{cleanTicker}
	if q.AnalysisDate != "" {
		if err := models.ValidateAnalysisDate(q.AnalysisDate); err != nil {
			return nil, err
		}
		b.WriteString(" AND analysis_date = $2")
		args = append(args, q.AnalysisDate)
	}
	b.WriteString(" ORDER BY created_at DESC")

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	fmt.Fprintf(&b, " LIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for %s: %w", cleanTicker, err)
	}
	defer rows.Close()

	var summaries []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		var analysisDate time.Time
		var recommendation sql.NullString
		present := make([]bool, len(roles))

		dest := []interface{}{&s.SessionID, &s.Ticker, &analysisDate, &s.CreatedAt, &s.UpdatedAt, &recommendation, &s.HasFinalAnalysis}
		for i := range present {
			dest = append(dest, &present[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}

		s.AnalysisDate = analysisDate.Format(analysisDateLayout)
		s.Recommendation = models.Recommendation(recommendation.String)
		for i, role := range roles {
			if present[i] {
				s.AvailableReports = append(s.AvailableReports, role)
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session summaries: %w", err)
	}
	return summaries, nil
}

// ListFinalized returns every session carrying a final analysis, with the
// analysis text and stored recommendation populated for the auditor.
func (r *PostgresReportRepository) ListFinalized(ctx context.Context) ([]models.SessionRecord, error) {
	query := `
		SELECT session_id, ticker, analysis_date, created_at, updated_at, final_analysis, recommendation
		FROM agent_reports
		WHERE final_analysis IS NOT NULL AND final_analysis <> ''
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list finalized sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		var analysisDate time.Time
		var recommendation sql.NullString

		if err := rows.Scan(&rec.SessionID, &rec.Ticker, &analysisDate, &rec.CreatedAt, &rec.UpdatedAt, &rec.FinalAnalysis, &recommendation); err != nil {
			return nil, fmt.Errorf("failed to scan finalized session: %w", err)
		}

		rec.AnalysisDate = analysisDate.Format(analysisDateLayout)
		rec.Recommendation = models.Recommendation(recommendation.String)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read finalized sessions: %w", err)
	}
	return records, nil
}
