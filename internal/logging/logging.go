// Package logging builds the structured logger shared by the gateway and
// the audit CLI. JSON output is the deployment default; text is for local
// runs.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tradecouncil/tradecouncil/internal/config"
)

// New constructs a slog.Logger for the configured level and format.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	handler, err := buildHandler(cfg)
	if err != nil {
		return nil, err
	}

	return slog.New(handler), nil
}

func buildHandler(cfg config.LoggingConfig) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(os.Stdout, opts), nil
	case "text":
		return slog.NewTextHandler(os.Stdout, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
}
