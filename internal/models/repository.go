package models

import "context"

// ReportRepository is the store contract the core depends on. Implementations
// must guarantee that SetFinalAnalysis persists the analysis text and its
// derived recommendation as a single observable write, and that per-role
// upserts are idempotent and never create duplicate sessions.
type ReportRepository interface {
	// CreateSession inserts a new session row for the given triple. It
	// returns ErrDuplicateSession when a row for the identical
	// (ticker, date, salt) already exists.
	CreateSession(ctx context.Context, ticker, analysisDate string, salt int64) (string, error)

	// UpsertAgentReport writes or overwrites one role's report and bumps
	// updated_at. Unknown roles fail with ErrUnknownAgentRole, missing
	// sessions with ErrSessionNotFound.
	UpsertAgentReport(ctx context.Context, sessionID string, role AgentRole, content string) error

	// SetFinalAnalysis stores the terminal synthesis together with the
	// recommendation derived from it.
	SetFinalAnalysis(ctx context.Context, sessionID, text string) error

	// UpdateRecommendation overwrites only the stored recommendation. Used
	// by the consistency auditor to repair drift. Fails on sessions without
	// a final analysis; recommendation is present iff final_analysis is.
	UpdateRecommendation(ctx context.Context, sessionID string, rec Recommendation) error

	// GetSession loads the full record or fails with ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)

	// GetLatestSession loads the most recently created session for a
	// ticker/date pair, or fails with ErrSessionNotFound.
	GetLatestSession(ctx context.Context, ticker, analysisDate string) (*SessionRecord, error)

	// Exists reports whether a session id has a row.
	Exists(ctx context.Context, sessionID string) (bool, error)

	// ListSessions returns summaries matching the query, newest first.
	ListSessions(ctx context.Context, query SessionQuery) ([]SessionSummary, error)

	// ListFinalized returns every session that has a final analysis, with
	// the analysis text and stored recommendation populated. The auditor
	// scans this set.
	ListFinalized(ctx context.Context) ([]SessionRecord, error)
}
