package envcheck

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tradecouncil/tradecouncil/internal/config"
)

type fakeLister struct {
	models []string
	err    error
}

func (f *fakeLister) ListModels(ctx context.Context) (openai.ModelsList, error) {
	if f.err != nil {
		return openai.ModelsList{}, f.err
	}
	list := openai.ModelsList{}
	for _, id := range f.models {
		list.Models = append(list.Models, openai.Model{ID: id})
	}
	return list, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func findCheck(t *testing.T, report Report, component string) CheckResult {
	t.Helper()
	for _, check := range report.Checks {
		if check.Component == component {
			return check
		}
	}
	t.Fatalf("no %q check in report", component)
	return CheckResult{}
}

func TestRunWithoutDatabaseOrKey(t *testing.T) {
	checker := New(config.OpenAIConfig{Model: "gpt-4o-mini"}, nil, testLogger())

	report := checker.Run(context.Background())

	if report.Valid {
		t.Fatal("expected invalid report")
	}
	db := findCheck(t, report, "database")
	if db.OK {
		t.Error("expected database check to fail without configuration")
	}
	ai := findCheck(t, report, "openai")
	if ai.OK {
		t.Error("expected openai check to fail without key")
	}
}

func TestRunAllHealthy(t *testing.T) {
	checker := New(config.OpenAIConfig{APIKey: "sk-test-key-0123456789", Model: "gpt-4o-mini"},
		func(ctx context.Context) error { return nil }, testLogger())
	checker.client = &fakeLister{models: []string{"gpt-4o", "gpt-4o-mini"}}

	report := checker.Run(context.Background())

	if !report.Valid {
		t.Fatalf("expected valid report, got checks %+v", report.Checks)
	}
}

func TestRunModelNotAvailable(t *testing.T) {
	checker := New(config.OpenAIConfig{APIKey: "sk-test-key-0123456789", Model: "gpt-5"},
		func(ctx context.Context) error { return nil }, testLogger())
	checker.client = &fakeLister{models: []string{"gpt-4o-mini"}}

	report := checker.Run(context.Background())

	if report.Valid {
		t.Fatal("expected invalid report")
	}
	ai := findCheck(t, report, "openai")
	if ai.OK || ai.Detail == "" {
		t.Errorf("expected failed openai check with detail, got %+v", ai)
	}
}

func TestRunKeyWithoutPrefix(t *testing.T) {
	checker := New(config.OpenAIConfig{APIKey: "bogus", Model: "gpt-4o-mini"},
		func(ctx context.Context) error { return nil }, testLogger())

	report := checker.Run(context.Background())

	ai := findCheck(t, report, "openai")
	if ai.OK {
		t.Error("expected openai check to reject key without sk- prefix")
	}
}

func TestRunDatabasePingFails(t *testing.T) {
	pingErr := errors.New("connection refused")
	checker := New(config.OpenAIConfig{APIKey: "sk-test-key-0123456789", Model: "gpt-4o-mini"},
		func(ctx context.Context) error { return pingErr }, testLogger())
	checker.client = &fakeLister{models: []string{"gpt-4o-mini"}}

	report := checker.Run(context.Background())

	if report.Valid {
		t.Fatal("expected invalid report")
	}
	db := findCheck(t, report, "database")
	if db.OK || db.Detail != "connection refused" {
		t.Errorf("unexpected database check %+v", db)
	}
}
