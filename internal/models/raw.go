package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// RawUsageResponse is the usage envelope as returned by the remote service.
// Success responses carry data.limits; error responses carry code and message.
type RawUsageResponse struct {
	Success *bool         `json:"success,omitempty"`
	Data    *RawUsageData `json:"data,omitempty"`
	Code    FlexString    `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
	Msg     string        `json:"msg,omitempty"`
}

// RawUsageData holds the limits list of a success envelope.
type RawUsageData struct {
	Limits []RawLimit `json:"limits"`
}

// RawLimit is one entry of the limits list before normalization.
type RawLimit struct {
	Type          string           `json:"type"`
	NextResetTime json.RawMessage  `json:"nextResetTime,omitempty"`
	UsageDetails  []RawUsageDetail `json:"usageDetails,omitempty"`
	Percentage    float64          `json:"percentage"`
	CurrentValue  int64            `json:"currentValue"`
	Usage         int64            `json:"usage"`
	Remaining     int64            `json:"remaining"`
}

// RawUsageDetail is the per-model breakdown as sent on the wire.
type RawUsageDetail struct {
	ModelCode string `json:"modelCode"`
	Usage     int64  `json:"usage"`
}

// succeeded reports whether the envelope is a success envelope. When the
// success flag is missing, a data object marks success.
func (r *RawUsageResponse) succeeded() bool {
	if r.Success != nil {
		return *r.Success
	}
	return r.Data != nil
}

// Clone returns a deep copy of the response.
func (r *RawUsageResponse) Clone() *RawUsageResponse {
	if r == nil {
		return nil
	}
	c := *r
	if r.Success != nil {
		ok := *r.Success
		c.Success = &ok
	}
	if r.Data != nil {
		d := RawUsageData{Limits: make([]RawLimit, len(r.Data.Limits))}
		for i, l := range r.Data.Limits {
			l.NextResetTime = append(json.RawMessage(nil), l.NextResetTime...)
			l.UsageDetails = append([]RawUsageDetail(nil), l.UsageDetails...)
			d.Limits[i] = l
		}
		c.Data = &d
	}
	return &c
}

// FlexString decodes a JSON string or number into a string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// parseTimeField attempts to parse a JSON time value as either ISO string or Unix timestamp.
func parseTimeField(data json.RawMessage) *time.Time {
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	// Try as string first (ISO 8601)
	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05.000Z", time.DateTime} {
			if t, err := time.Parse(layout, strVal); err == nil {
				return &t
			}
		}
		// Numeric timestamps are sometimes quoted.
		if n, err := strconv.ParseFloat(strVal, 64); err == nil {
			return unixTime(n)
		}
		return nil
	}

	// Try as number (Unix timestamp in milliseconds or seconds)
	var numVal float64
	if err := json.Unmarshal(data, &numVal); err == nil {
		return unixTime(numVal)
	}

	return nil
}

func unixTime(v float64) *time.Time {
	if v <= 0 {
		return nil
	}
	var t time.Time
	if v > 1e12 {
		// Milliseconds
		t = time.UnixMilli(int64(v))
	} else {
		t = time.Unix(int64(v), 0)
	}
	return &t
}
