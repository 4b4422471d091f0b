package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SessionRecord is one analysis run for a ticker on a date: one row in the
// store, one optional report per agent role, and the final synthesis with its
// derived recommendation.
type SessionRecord struct {
	SessionID      string               `json:"session_id"`
	Ticker         string               `json:"ticker"`
	AnalysisDate   string               `json:"analysis_date"` // YYYY-MM-DD
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	AgentReports   map[AgentRole]string `json:"agent_reports"`
	FinalAnalysis  string               `json:"final_analysis,omitempty"`
	Recommendation Recommendation       `json:"recommendation,omitempty"`
}

// Finalized reports whether the terminal synthesis has been written.
func (s *SessionRecord) Finalized() bool {
	return s.FinalAnalysis != ""
}

// AvailableReports lists the roles that have stored content, in pipeline order.
func (s *SessionRecord) AvailableReports() []AgentRole {
	var roles []AgentRole
	for _, role := range AllAgentRoles() {
		if s.AgentReports[role] != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// SessionSummary is the listing shape returned by ticker queries: metadata
// without the report bodies.
type SessionSummary struct {
	SessionID        string         `json:"session_id"`
	Ticker           string         `json:"ticker"`
	AnalysisDate     string         `json:"analysis_date"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Recommendation   Recommendation `json:"recommendation,omitempty"`
	HasFinalAnalysis bool           `json:"has_final_analysis"`
	AvailableReports []AgentRole    `json:"available_reports"`
}

// SessionQuery filters session listings.
type SessionQuery struct {
	Ticker       string
	AnalysisDate string // optional, YYYY-MM-DD
	Limit        int
}

const (
	// MinReportSize is the minimum accepted report content length in bytes.
	MinReportSize = 10
	// MaxReportSize is the maximum accepted report content size in bytes.
	MaxReportSize = 1 << 20
)

const analysisDateLayout = "2006-01-02"

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// ValidateTicker normalizes a ticker symbol to uppercase and rejects values
// that cannot be embedded in a session id. The session-id field separator
// ("_") is never silently stripped.
func ValidateTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTicker)
	}
	if strings.Contains(ticker, "_") {
		return "", fmt.Errorf("%w: contains session id separator: %q", ErrInvalidTicker, raw)
	}
	if !tickerPattern.MatchString(ticker) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, raw)
	}
	return ticker, nil
}

// ValidateAnalysisDate checks YYYY-MM-DD format and calendar validity.
func ValidateAnalysisDate(raw string) error {
	if _, err := time.Parse(analysisDateLayout, raw); err != nil {
		return fmt.Errorf("%w: must be YYYY-MM-DD, got %q", ErrInvalidAnalysisDate, raw)
	}
	return nil
}

var (
	excessNewlines = regexp.MustCompile(`\n\s*\n\s*\n+`)
	runSpaces      = regexp.MustCompile(`[ \t]+`)
)

// SanitizeReportContent validates and normalizes agent report content:
// null bytes are stripped, whitespace is collapsed, and size bounds are
// enforced.
func SanitizeReportContent(content string) (string, error) {
	cleaned := strings.ReplaceAll(content, "\x00", "")
	cleaned = excessNewlines.ReplaceAllString(cleaned, "\n\n")
	cleaned = runSpaces.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) < MinReportSize {
		return "", fmt.Errorf("%w: shorter than %d bytes", ErrInvalidReportContent, MinReportSize)
	}
	if len(cleaned) > MaxReportSize {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrInvalidReportContent, MaxReportSize)
	}
	return cleaned, nil
}
