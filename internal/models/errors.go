package models

import "errors"

// Sentinel errors surfaced by the session key functions and the report store
// contract. Callers match them with errors.Is; repositories wrap them with
// operation context.
var (
	// ErrInvalidTicker marks a ticker that cannot be embedded in a session
	// id (empty, non-alphanumeric, or containing the field separator).
	ErrInvalidTicker = errors.New("invalid ticker")

	// ErrInvalidAnalysisDate marks a date that is not a valid YYYY-MM-DD
	// calendar day.
	ErrInvalidAnalysisDate = errors.New("invalid analysis date")

	// ErrMalformedSessionID marks a session id that does not parse back to
	// (ticker, analysis date, salt).
	ErrMalformedSessionID = errors.New("malformed session id")

	// ErrUnknownAgentRole marks an agent key outside the closed role set.
	ErrUnknownAgentRole = errors.New("unknown agent role")

	// ErrSessionNotFound marks an operation against a session id that does
	// not exist in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession marks a create for a (ticker, date, salt) triple
	// that already has a row.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrInvalidReportContent marks report or final-analysis content that
	// fails size validation.
	ErrInvalidReportContent = errors.New("invalid report content")
)
