package models

import (
	"fmt"
	"strconv"
	"time"
)

// tokenDisplayUnit is the divisor for TOKENS values (the service counts in units of 10k).
const tokenDisplayUnit = 10_000

// Severity classifies how close a limit is to exhaustion.
type Severity int

const (
	// SeverityNormal is below 70%.
	SeverityNormal Severity = iota
	// SeverityWarn is 70% up to but not including 90%.
	SeverityWarn
	// SeverityCritical is 90% and above.
	SeverityCritical
)

// Severity thresholds in percent.
const (
	WarnThreshold     = 70.0
	CriticalThreshold = 90.0
)

// String returns the string representation of a Severity.
func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityWarn:
		return "warn"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SeverityFor maps a usage percentage to a Severity.
func SeverityFor(percentage float64) Severity {
	switch {
	case percentage >= CriticalThreshold:
		return SeverityCritical
	case percentage >= WarnThreshold:
		return SeverityWarn
	default:
		return SeverityNormal
	}
}

// DisplayValue scales a raw value for display. TOKENS values are shown in
// units of 10k with one decimal place; other kinds are shown as-is.
func DisplayValue(kind LimitKind, raw int64) string {
	if kind == LimitTokens {
		return strconv.FormatFloat(float64(raw)/tokenDisplayUnit, 'f', 1, 64)
	}
	return strconv.FormatInt(raw, 10)
}

// UnitLabel returns the unit suffix shown next to DisplayValue output.
func UnitLabel(kind LimitKind) string {
	switch kind {
	case LimitTokens:
		return "x10k tokens"
	case LimitTime:
		return "calls"
	default:
		return ""
	}
}

// Title returns the heading shown for a limit.
func Title(kind LimitKind) string {
	switch kind {
	case LimitTime:
		return "Monthly MCP quota"
	case LimitTokens:
		return "5-hour token quota"
	default:
		return kind.String()
	}
}

// NextMonthlyReset returns 00:00 local time on the first day of the month after now.
func NextMonthlyReset(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, now.Location())
}

// ResetDescription describes when a limit resets.
func ResetDescription(l Limit) string {
	switch l.Kind {
	case LimitTime:
		return "resets on the 1st of each month at 00:00"
	case LimitTokens:
		if l.NextResetTime != nil {
			return "resets at " + l.NextResetTime.Local().Format(time.TimeOnly)
		}
	}
	return "reset time unknown"
}

// FormatTokens formats a token count in human-readable form (1.2K, 3.4M).
func FormatTokens(tokens int64) string {
	switch {
	case tokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	case tokens >= 1_000:
		return fmt.Sprintf("%.1fK", float64(tokens)/1_000)
	default:
		return strconv.FormatInt(tokens, 10)
	}
}

// TrayTitle returns the compact one-line summary used as the window title.
func TrayTitle(s *OkSnapshot) string {
	if s == nil || s.Empty() {
		return "GLM: --"
	}
	if l, ok := s.Find(LimitTokens); ok {
		return fmt.Sprintf("GLM: %s/%s (%d%%)", FormatTokens(l.CurrentValue), FormatTokens(l.UsageTotal), int(l.Percentage))
	}
	return fmt.Sprintf("GLM: %d limits", s.Len())
}
