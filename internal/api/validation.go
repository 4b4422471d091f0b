package api

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// parseLimit parses an optional ?limit= query value. Zero means
// "use the store default".
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, ValidationError{Field: "limit", Message: "must be a positive integer"}
	}
	if limit > 500 {
		return 0, ValidationError{Field: "limit", Message: "must not exceed 500"}
	}
	return limit, nil
}

// pathSegments splits a URL path after the given prefix into its
// non-empty segments.
func pathSegments(path, prefix string) []string {
	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
