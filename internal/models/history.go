package models

import "time"

// TimeRange represents the selected history window.
type TimeRange int

const (
	// TimeRange5Hours matches the rolling token quota window.
	TimeRange5Hours TimeRange = iota
	// TimeRange24Hours shows data from the last 24 hours.
	TimeRange24Hours
	// TimeRange7Days shows data from the last 7 days.
	TimeRange7Days
	// TimeRangeAllTime shows all recorded data.
	TimeRangeAllTime
)

// String returns the display name for a time range.
func (t TimeRange) String() string {
	switch t {
	case TimeRange5Hours:
		return "5 Hours"
	case TimeRange24Hours:
		return "24 Hours"
	case TimeRange7Days:
		return "7 Days"
	case TimeRangeAllTime:
		return "All Time"
	default:
		return "Unknown"
	}
}

// Window returns the length of the range (0 = unlimited).
func (t TimeRange) Window() time.Duration {
	switch t {
	case TimeRange5Hours:
		return 5 * time.Hour
	case TimeRange24Hours:
		return 24 * time.Hour
	case TimeRange7Days:
		return 7 * 24 * time.Hour
	case TimeRangeAllTime:
		return 0
	default:
		return 24 * time.Hour
	}
}

// Since returns the start of the range relative to now, or the zero time
// for an unlimited range.
func (t TimeRange) Since(now time.Time) time.Time {
	w := t.Window()
	if w == 0 {
		return time.Time{}
	}
	return now.Add(-w)
}

// Next cycles to the next time range.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % 4
}

// RefreshSource tells what triggered a fetch.
type RefreshSource string

// Refresh sources.
const (
	SourcePoll   RefreshSource = "poll"
	SourceManual RefreshSource = "manual"
)

// UsageRecord is one recorded limit observation.
type UsageRecord struct {
	Timestamp    time.Time
	Kind         LimitKind
	Percentage   float64
	CurrentValue int64
	UsageTotal   int64
	Remaining    int64
}

// RefreshEvent is one recorded fetch attempt.
type RefreshEvent struct {
	Timestamp time.Time
	Source    RefreshSource
	Error     string
	ID        int64
	Success   bool
}

// HistoryStats summarizes recorded history for a time range.
type HistoryStats struct {
	FirstDataPoint time.Time
	LastDataPoint  time.Time
	// TokenPercentages is the TOKENS percentage series, oldest first.
	TokenPercentages []float64
	TimeRange        TimeRange
	Refreshes        int
	Failures         int
	PeakPercentage   float64
}

// HasData returns true if any observation was recorded in the range.
func (h *HistoryStats) HasData() bool {
	return len(h.TokenPercentages) > 0
}

// SuccessRate returns the percentage of successful refreshes, or 100 with none.
func (h *HistoryStats) SuccessRate() float64 {
	if h.Refreshes == 0 {
		return 100
	}
	return float64(h.Refreshes-h.Failures) / float64(h.Refreshes) * 100
}

// RecordsFromSnapshot flattens a snapshot into records stamped with at.
func RecordsFromSnapshot(s OkSnapshot, at time.Time) []UsageRecord {
	records := make([]UsageRecord, 0, s.Len())
	for _, l := range s.limits {
		records = append(records, UsageRecord{
			Timestamp:    at,
			Kind:         l.Kind,
			Percentage:   l.Percentage,
			CurrentValue: l.CurrentValue,
			UsageTotal:   l.UsageTotal,
			Remaining:    l.Remaining,
		})
	}
	return records
}
