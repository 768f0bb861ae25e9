package models

import (
	"strings"
	"testing"
	"time"
)

func TestDisplayValue(t *testing.T) {
	tests := []struct {
		name string
		kind LimitKind
		raw  int64
		want string
	}{
		{"TokensScaled", LimitTokens, 125000, "12.5"},
		{"TokensZero", LimitTokens, 0, "0.0"},
		{"TokensLarge", LimitTokens, 40000000, "4000.0"},
		{"TimeRaw", LimitTime, 1000, "1000"},
		{"UnknownRaw", LimitUnknown, 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayValue(tt.kind, tt.raw); got != tt.want {
				t.Errorf("DisplayValue(%v, %d) = %q, want %q", tt.kind, tt.raw, got, tt.want)
			}
		})
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want Severity
	}{
		{0, SeverityNormal},
		{69.9, SeverityNormal},
		{70, SeverityWarn},
		{89.99, SeverityWarn},
		{90, SeverityCritical},
		{100, SeverityCritical},
	}

	for _, tt := range tests {
		if got := SeverityFor(tt.pct); got != tt.want {
			t.Errorf("SeverityFor(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

func TestResetDescription(t *testing.T) {
	reset := time.Date(2026, 10, 18, 17, 30, 0, 0, time.Local)

	if got := ResetDescription(Limit{Kind: LimitTime}); !strings.Contains(got, "1st of each month") {
		t.Errorf("TIME reset description = %q", got)
	}
	if got := ResetDescription(Limit{Kind: LimitTokens, NextResetTime: &reset}); got != "resets at 17:30:00" {
		t.Errorf("TOKENS reset description = %q", got)
	}
	if got := ResetDescription(Limit{Kind: LimitTokens}); got != "reset time unknown" {
		t.Errorf("TOKENS without reset time = %q", got)
	}
}

func TestNextMonthlyReset(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		if got := NextMonthlyReset(tt.now); !got.Equal(tt.want) {
			t.Errorf("NextMonthlyReset(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{999, "999"},
		{1500, "1.5K"},
		{2_500_000, "2.5M"},
	}
	for _, tt := range tests {
		if got := FormatTokens(tt.in); got != tt.want {
			t.Errorf("FormatTokens(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrayTitle(t *testing.T) {
	withTokens := NewOkSnapshot([]Limit{
		{Kind: LimitTime, CurrentValue: 3},
		{Kind: LimitTokens, CurrentValue: 1_200_000, UsageTotal: 40_000_000, Percentage: 3.7},
	})
	timeOnly := NewOkSnapshot([]Limit{{Kind: LimitTime}})
	empty := NewOkSnapshot(nil)

	tests := []struct {
		name string
		snap *OkSnapshot
		want string
	}{
		{"Nil", nil, "GLM: --"},
		{"Empty", &empty, "GLM: --"},
		{"Tokens", &withTokens, "GLM: 1.2M/40.0M (3%)"},
		{"NoTokens", &timeOnly, "GLM: 1 limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrayTitle(tt.snap); got != tt.want {
				t.Errorf("TrayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
