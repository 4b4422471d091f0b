// Package session generates and parses the identifiers that key analysis
// sessions: {TICKER}_{YYYY-MM-DD}_{unix-seconds}. The salt component keeps
// repeated runs of the same ticker/date from colliding.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tradecouncil/tradecouncil/internal/models"
)

// Separator delimits the three id fields. Tickers containing it are rejected
// at generation time rather than mangled.
const Separator = "_"

// Generate builds a session id for the ticker and date using the current
// clock as salt.
func Generate(ticker, analysisDate string) (string, error) {
	return GenerateWithSalt(ticker, analysisDate, time.Now().Unix())
}

// GenerateWithSalt builds a session id with an explicit salt. Parse inverts
// it exactly: Parse(GenerateWithSalt(t, d, s)) yields (T, d, s) with T the
// normalized ticker.
func GenerateWithSalt(ticker, analysisDate string, salt int64) (string, error) {
	clean, err := models.ValidateTicker(ticker)
	if err != nil {
		return "", err
	}
	if err := models.ValidateAnalysisDate(analysisDate); err != nil {
		return "", err
	}
	if salt < 0 {
		return "", fmt.Errorf("session salt must be non-negative: %d", salt)
	}
	return clean + Separator + analysisDate + Separator + strconv.FormatInt(salt, 10), nil
}

// Parse splits a session id back into (ticker, analysis date, salt). Ids
// with the wrong field count, an invalid ticker or date, or a non-numeric
// salt fail with ErrMalformedSessionID.
func Parse(id string) (ticker, analysisDate string, salt int64, err error) {
	parts := strings.Split(id, Separator)
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("%w: expected ticker_date_salt, got %q", models.ErrMalformedSessionID, id)
	}

	ticker, analysisDate = parts[0], parts[1]
	if clean, tickerErr := models.ValidateTicker(ticker); tickerErr != nil || clean != ticker {
		return "", "", 0, fmt.Errorf("%w: bad ticker field in %q", models.ErrMalformedSessionID, id)
	}
	if dateErr := models.ValidateAnalysisDate(analysisDate); dateErr != nil {
		return "", "", 0, fmt.Errorf("%w: bad date field in %q", models.ErrMalformedSessionID, id)
	}

	salt, convErr := strconv.ParseInt(parts[2], 10, 64)
	if convErr != nil || salt < 0 {
		return "", "", 0, fmt.Errorf("%w: bad salt field in %q", models.ErrMalformedSessionID, id)
	}

	return ticker, analysisDate, salt, nil
}

// Valid reports whether the id parses, without surfacing the reason.
func Valid(id string) bool {
	_, _, _, err := Parse(id)
	return err == nil
}
