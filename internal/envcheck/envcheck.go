// Package envcheck validates the deployment environment: database
// reachability and OpenAI credentials used by the analysis pipeline.
package envcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tradecouncil/tradecouncil/internal/config"
)

// CheckResult describes one validated component.
type CheckResult struct {
	Component string `json:"component"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

// Report aggregates all environment checks.
type Report struct {
	Valid   bool          `json:"valid"`
	Checks  []CheckResult `json:"checks"`
	Checked time.Time     `json:"checked_at"`
}

// modelLister is the slice of the OpenAI client the checker needs.
type modelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// Checker validates environment configuration at request time.
type Checker struct {
	cfg    config.OpenAIConfig
	dbPing func(ctx context.Context) error
	client modelLister
	logger *slog.Logger
}

// New constructs a Checker. dbPing may be nil when no database is
// configured; the report then marks the database check as degraded
// rather than failed.
func New(cfg config.OpenAIConfig, dbPing func(ctx context.Context) error, logger *slog.Logger) *Checker {
	c := &Checker{
		cfg:    cfg,
		dbPing: dbPing,
		logger: logger,
	}
	if cfg.APIKey != "" {
		c.client = openai.NewClient(cfg.APIKey)
	}
	return c
}

const checkTimeout = 10 * time.Second

// Run executes all environment checks and returns the aggregate report.
func (c *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	report := Report{Valid: true, Checked: time.Now().UTC()}

	report.Checks = append(report.Checks, c.checkDatabase(ctx))
	report.Checks = append(report.Checks, c.checkOpenAI(ctx))

	for _, check := range report.Checks {
		if !check.OK {
			report.Valid = false
		}
	}
	return report
}

func (c *Checker) checkDatabase(ctx context.Context) CheckResult {
	if c.dbPing == nil {
		return CheckResult{
			Component: "database",
			OK:        false,
			Detail:    "no database configured, running on in-memory store",
		}
	}
	if err := c.dbPing(ctx); err != nil {
		c.logger.Warn("database check failed", "error", err)
		return CheckResult{Component: "database", OK: false, Detail: err.Error()}
	}
	return CheckResult{Component: "database", OK: true}
}

func (c *Checker) checkOpenAI(ctx context.Context) CheckResult {
	if c.cfg.APIKey == "" {
		return CheckResult{
			Component: "openai",
			OK:        false,
			Detail:    "OPENAI_API_KEY is not set",
		}
	}
	if !strings.HasPrefix(c.cfg.APIKey, "sk-") {
		return CheckResult{
			Component: "openai",
			OK:        false,
			Detail:    "API key must start with 'sk-'",
		}
	}

	models, err := c.client.ListModels(ctx)
	if err != nil {
		c.logger.Warn("openai check failed", "error", err)
		return CheckResult{Component: "openai", OK: false, Detail: err.Error()}
	}

	for _, m := range models.Models {
		if m.ID == c.cfg.Model {
			return CheckResult{Component: "openai", OK: true}
		}
	}
	return CheckResult{
		Component: "openai",
		OK:        false,
		Detail:    fmt.Sprintf("configured model %q not available to this key", c.cfg.Model),
	}
}
