package models

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTicker(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "AAPL", want: "AAPL"},
		{name: "lowercase normalized", input: "nvda", want: "NVDA"},
		{name: "whitespace trimmed", input: " TSLA ", want: "TSLA"},
		{name: "class share dot", input: "BRK.B", want: "BRK.B"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "separator rejected", input: "AA_PL", wantErr: true},
		{name: "spaces inside", input: "AA PL", wantErr: true},
		{name: "unicode", input: "ÅÄPL", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTicker(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ValidateTicker(%q) expected error, got %q", tt.input, got)
				}
				if !errors.Is(err, ErrInvalidTicker) {
					t.Errorf("error = %v, want ErrInvalidTicker", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateTicker(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateTicker(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateAnalysisDate(t *testing.T) {
	if err := ValidateAnalysisDate("2025-09-13"); err != nil {
		t.Errorf("valid date rejected: %v", err)
	}
	for _, bad := range []string{"", "2025-9-13", "09-13-2025", "2025-13-40", "not-a-date"} {
		if err := ValidateAnalysisDate(bad); err == nil {
			t.Errorf("ValidateAnalysisDate(%q) expected error", bad)
		}
	}
}

func TestParseAgentRole(t *testing.T) {
	for _, role := range AllAgentRoles() {
		got, err := ParseAgentRole(string(role))
		if err != nil {
			t.Errorf("ParseAgentRole(%q) returned error: %v", role, err)
		}
		if got != role {
			t.Errorf("ParseAgentRole(%q) = %q", role, got)
		}
		if role.Column() == "" {
			t.Errorf("role %q has no column mapping", role)
		}
	}

	if _, err := ParseAgentRole("not_a_real_agent"); !errors.Is(err, ErrUnknownAgentRole) {
		t.Errorf("ParseAgentRole(unknown) error = %v, want ErrUnknownAgentRole", err)
	}
}

func TestAgentRoleColumnsAreDistinct(t *testing.T) {
	seen := make(map[string]AgentRole)
	for _, role := range AllAgentRoles() {
		col := role.Column()
		if prev, dup := seen[col]; dup {
			t.Errorf("roles %q and %q share column %q", prev, role, col)
		}
		seen[col] = role
	}
}

func TestSanitizeReportContent(t *testing.T) {
	t.Run("normalizes whitespace and null bytes", func(t *testing.T) {
		got, err := SanitizeReportContent("market\x00 looks   strong\n\n\n\nvolume rising")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(got, "\x00") {
			t.Error("null byte survived sanitization")
		}
		if strings.Contains(got, "\n\n\n") {
			t.Error("excess newlines survived sanitization")
		}
		if strings.Contains(got, "  ") {
			t.Error("run of spaces survived sanitization")
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := SanitizeReportContent("short"); !errors.Is(err, ErrInvalidReportContent) {
			t.Errorf("error = %v, want ErrInvalidReportContent", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		huge := strings.Repeat("a", MaxReportSize+1)
		if _, err := SanitizeReportContent(huge); !errors.Is(err, ErrInvalidReportContent) {
			t.Errorf("error = %v, want ErrInvalidReportContent", err)
		}
	})
}

func TestSessionRecordAvailableReports(t *testing.T) {
	rec := &SessionRecord{
		AgentReports: map[AgentRole]string{
			RoleTrader: "enter on pullback to the 50-day moving average",
			RoleMarket: "uptrend intact across major indices this week",
		},
	}

	got := rec.AvailableReports()
	if len(got) != 2 {
		t.Fatalf("AvailableReports() = %v, want 2 roles", got)
	}
	// Pipeline order: market precedes trader.
	if got[0] != RoleMarket || got[1] != RoleTrader {
		t.Errorf("AvailableReports() = %v, want [market trader]", got)
	}
}
