package models

import (
	"encoding/json"
	"testing"
	"time"
)

func decodeRaw(t *testing.T, body string) *RawUsageResponse {
	t.Helper()
	var raw RawUsageResponse
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("failed to decode %q: %v", body, err)
	}
	return &raw
}

func TestNormalize_PopulatedPreservesLength(t *testing.T) {
	raw := decodeRaw(t, `{
		"code": 200,
		"msg": "ok",
		"success": true,
		"data": {"limits": [
			{"type": "TIME_LIMIT", "usage": 1000, "currentValue": 12, "remaining": 988, "percentage": 1.2,
			 "usageDetails": [{"modelCode": "search-prime", "usage": 10}, {"modelCode": "web-reader", "usage": 2}]},
			{"type": "TOKENS_LIMIT", "usage": 40000000, "currentValue": 125000, "remaining": 39875000,
			 "percentage": 0.3, "nextResetTime": 1767225600000}
		]}
	}`)

	snap, ok := Normalize(raw).(OkSnapshot)
	if !ok {
		t.Fatalf("Normalize() returned %T, want OkSnapshot", Normalize(raw))
	}
	if snap.Len() != len(raw.Data.Limits) {
		t.Fatalf("Len() = %d, want %d", snap.Len(), len(raw.Data.Limits))
	}

	limits := snap.Limits()
	if limits[0].Kind != LimitTime || limits[1].Kind != LimitTokens {
		t.Errorf("kinds = %v, %v; want TIME, TOKENS", limits[0].Kind, limits[1].Kind)
	}
	if limits[0].UsageTotal != 1000 || limits[0].CurrentValue != 12 || limits[0].Remaining != 988 {
		t.Errorf("unexpected TIME values: %+v", limits[0])
	}
	if len(limits[0].UsageDetails) != 2 || limits[0].UsageDetails[0].ModelCode != "search-prime" {
		t.Errorf("usage details not preserved in order: %+v", limits[0].UsageDetails)
	}
	if limits[1].NextResetTime == nil || !limits[1].NextResetTime.Equal(time.UnixMilli(1767225600000)) {
		t.Errorf("NextResetTime = %v, want epoch millis", limits[1].NextResetTime)
	}
}

func TestNormalize_EmptyLimitsIsNotError(t *testing.T) {
	bodies := map[string]string{
		"EmptyList":   `{"success": true, "data": {"limits": []}}`,
		"MissingList": `{"success": true, "data": {}}`,
		"MissingData": `{"success": true}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			snap, ok := Normalize(decodeRaw(t, body)).(OkSnapshot)
			if !ok {
				t.Fatalf("expected OkSnapshot for %s", name)
			}
			if !snap.Empty() {
				t.Errorf("expected empty snapshot, got %d limits", snap.Len())
			}
		})
	}

	if snap, ok := Normalize(nil).(OkSnapshot); !ok || !snap.Empty() {
		t.Error("Normalize(nil) should be an empty OkSnapshot")
	}
}

func TestNormalize_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantMsg  string
	}{
		{"StringCode", `{"success": false, "code": "1001", "message": "token invalid"}`, "1001", "token invalid"},
		{"NumericCodeMsg", `{"success": false, "code": 500, "msg": "server busy"}`, "500", "server busy"},
		{"NoMessage", `{"success": false}`, "", "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es, ok := Normalize(decodeRaw(t, tt.body)).(ErrSnapshot)
			if !ok {
				t.Fatal("expected ErrSnapshot")
			}
			if es.Code != tt.wantCode || es.Message != tt.wantMsg {
				t.Errorf("got {%q %q}, want {%q %q}", es.Code, es.Message, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestNormalize_DropsUnknownKinds(t *testing.T) {
	raw := decodeRaw(t, `{"success": true, "data": {"limits": [
		{"type": "REQUESTS_LIMIT", "percentage": 10},
		{"type": "TOKENS_LIMIT", "percentage": 150}
	]}}`)

	snap := Normalize(raw).(OkSnapshot)
	if snap.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", snap.Len())
	}
	l, _ := snap.Find(LimitTokens)
	if l.Percentage != 100 {
		t.Errorf("percentage should be clamped to 100, got %v", l.Percentage)
	}
}

func TestOkSnapshot_Immutable(t *testing.T) {
	reset := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := []Limit{{
		Kind:          LimitTokens,
		CurrentValue:  10,
		UsageDetails:  []UsageDetail{{ModelCode: "glm-4.6", Usage: 10}},
		NextResetTime: &reset,
	}}
	snap := NewOkSnapshot(input)

	input[0].CurrentValue = 99
	input[0].UsageDetails[0].Usage = 99

	got := snap.Limits()
	got[0].UsageDetails[0].ModelCode = "mutated"
	*got[0].NextResetTime = time.Time{}

	again := snap.Limits()
	if again[0].CurrentValue != 10 || again[0].UsageDetails[0].Usage != 10 {
		t.Errorf("snapshot changed through constructor input: %+v", again[0])
	}
	if again[0].UsageDetails[0].ModelCode != "glm-4.6" || !again[0].NextResetTime.Equal(reset) {
		t.Errorf("snapshot changed through Limits() result: %+v", again[0])
	}
}

func TestOkSnapshot_Find(t *testing.T) {
	snap := NewOkSnapshot([]Limit{{Kind: LimitTime, CurrentValue: 1}})
	if _, ok := snap.Find(LimitTokens); ok {
		t.Error("Find(LimitTokens) should fail")
	}
	if l, ok := snap.Find(LimitTime); !ok || l.CurrentValue != 1 {
		t.Errorf("Find(LimitTime) = %+v, %v", l, ok)
	}
}

func TestParseTimeField(t *testing.T) {
	want := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{"RFC3339", `"2026-10-18T12:00:00Z"`, &want},
		{"Millis", `1792324800000`, &want},
		{"Seconds", `1792324800`, &want},
		{"QuotedMillis", `"1792324800000"`, &want},
		{"Null", `null`, nil},
		{"Garbage", `"soon"`, nil},
		{"Zero", `0`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTimeField(json.RawMessage(tt.raw))
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseTimeField(%s) = %v, want nil", tt.raw, got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("parseTimeField(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRawUsageResponse_Clone(t *testing.T) {
	raw := decodeRaw(t, `{"success": true, "data": {"limits": [{"type": "TOKENS_LIMIT", "usageDetails": [{"modelCode": "a", "usage": 1}]}]}}`)
	c := raw.Clone()
	c.Data.Limits[0].UsageDetails[0].Usage = 42
	*c.Success = false

	if raw.Data.Limits[0].UsageDetails[0].Usage != 1 || !*raw.Success {
		t.Error("Clone() shares memory with the original")
	}
	if (*RawUsageResponse)(nil).Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}
