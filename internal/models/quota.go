// Package models defines data structures and domain types.
package models

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
)

// LimitKind identifies which quota a Limit describes.
type LimitKind int

const (
	// LimitUnknown is never stored in a snapshot; Normalize drops such limits.
	LimitUnknown LimitKind = iota
	// LimitTime is the monthly call quota (wire type TIME_LIMIT).
	LimitTime
	// LimitTokens is the rolling token quota (wire type TOKENS_LIMIT).
	LimitTokens
)

// Wire discriminators used by the remote service.
const (
	WireTimeLimit   = "TIME_LIMIT"
	WireTokensLimit = "TOKENS_LIMIT"
)

// String returns the string representation of a LimitKind.
func (k LimitKind) String() string {
	switch k {
	case LimitTime:
		return "TIME"
	case LimitTokens:
		return "TOKENS"
	default:
		return "UNKNOWN"
	}
}

// ParseLimitKind maps a wire discriminator to a LimitKind.
func ParseLimitKind(s string) (LimitKind, bool) {
	switch s {
	case WireTimeLimit, "TIME":
		return LimitTime, true
	case WireTokensLimit, "TOKENS":
		return LimitTokens, true
	default:
		return LimitUnknown, false
	}
}

// UsageDetail is the per-model breakdown of a limit.
type UsageDetail struct {
	ModelCode string
	Usage     int64
}

// Limit is one normalized quota record.
type Limit struct {
	NextResetTime *time.Time
	UsageDetails  []UsageDetail
	Percentage    float64
	CurrentValue  int64
	UsageTotal    int64
	Remaining     int64
	Kind          LimitKind
}

// clone returns a deep copy of the limit.
func (l Limit) clone() Limit {
	c := l
	c.UsageDetails = slices.Clone(l.UsageDetails)
	if l.NextResetTime != nil {
		t := *l.NextResetTime
		c.NextResetTime = &t
	}
	return c
}

// QuotaSnapshot is the normalized result of a usage response: OkSnapshot or ErrSnapshot.
type QuotaSnapshot interface {
	isQuotaSnapshot()
}

// OkSnapshot is a successful usage observation. A zero-length snapshot means
// the service has no data yet.
type OkSnapshot struct {
	limits []Limit
}

// ErrSnapshot is a structured error envelope returned by the service.
type ErrSnapshot struct {
	Code    string
	Message string
}

func (OkSnapshot) isQuotaSnapshot()  {}
func (ErrSnapshot) isQuotaSnapshot() {}

// NewOkSnapshot builds a snapshot from limits. The slice is copied.
func NewOkSnapshot(limits []Limit) OkSnapshot {
	return OkSnapshot{limits: lo.Map(limits, func(l Limit, _ int) Limit { return l.clone() })}
}

// Limits returns a copy of the limits in service order.
func (s OkSnapshot) Limits() []Limit {
	return lo.Map(s.limits, func(l Limit, _ int) Limit { return l.clone() })
}

// Len returns the number of limits.
func (s OkSnapshot) Len() int {
	return len(s.limits)
}

// Empty reports whether the snapshot carries no limits ("no data yet").
func (s OkSnapshot) Empty() bool {
	return len(s.limits) == 0
}

// Find returns the first limit of the given kind.
func (s OkSnapshot) Find(kind LimitKind) (Limit, bool) {
	l, ok := lo.Find(s.limits, func(l Limit) bool { return l.Kind == kind })
	if !ok {
		return Limit{}, false
	}
	return l.clone(), true
}

// Error returns the envelope as an error.
func (e ErrSnapshot) Error() error {
	return &ServiceError{Code: e.Code, Message: e.Message}
}

// Normalize converts a raw service response into a QuotaSnapshot. A nil
// response or a success envelope without limits yields an empty OkSnapshot.
func Normalize(raw *RawUsageResponse) QuotaSnapshot {
	if raw == nil {
		return OkSnapshot{}
	}
	if !raw.succeeded() {
		msg := raw.Message
		if msg == "" {
			msg = raw.Msg
		}
		if msg == "" {
			msg = "unknown error"
		}
		return ErrSnapshot{Code: string(raw.Code), Message: msg}
	}
	if raw.Data == nil || len(raw.Data.Limits) == 0 {
		return OkSnapshot{}
	}

	limits := make([]Limit, 0, len(raw.Data.Limits))
	for _, rl := range raw.Data.Limits {
		kind, ok := ParseLimitKind(rl.Type)
		if !ok {
			logger.Warn("dropping limit with unrecognized type", "type", rl.Type)
			continue
		}
		limits = append(limits, Limit{
			Kind:          kind,
			Percentage:    clampPercentage(rl.Percentage),
			CurrentValue:  rl.CurrentValue,
			UsageTotal:    rl.Usage,
			Remaining:     rl.Remaining,
			UsageDetails:  lo.Map(rl.UsageDetails, func(d RawUsageDetail, _ int) UsageDetail { return UsageDetail(d) }),
			NextResetTime: parseTimeField(rl.NextResetTime),
		})
	}
	return OkSnapshot{limits: limits}
}

func clampPercentage(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Min(100, math.Max(0, p))
}
