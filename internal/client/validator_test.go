package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/j-veylop/glm-usage-tui/internal/models"
)

func TestValidator_TestConnection(t *testing.T) {
	complete := models.Credentials{Token: "tok", Organization: "org", Project: "proj"}
	noTokens := &models.RawUsageResponse{Data: &models.RawUsageData{Limits: []models.RawLimit{
		{Type: models.WireTimeLimit, Percentage: 5},
	}}}

	tests := []struct {
		name         string
		candidate    models.Credentials
		probe        *models.RawUsageResponse
		probeErr     error
		wantOK       bool
		wantDegraded bool
		wantCalls    int32
		wantText     string
	}{
		{
			name:      "missing project makes no call",
			candidate: models.Credentials{Token: "tok", Organization: "org"},
			wantText:  "incomplete configuration",
		},
		{
			name:      "empty token makes no call",
			candidate: models.Credentials{Token: "", Organization: "o", Project: "p"},
			wantText:  "incomplete configuration",
		},
		{
			name:      "token limit summary",
			candidate: complete,
			probe: &models.RawUsageResponse{Data: &models.RawUsageData{Limits: []models.RawLimit{
				{Type: models.WireTokensLimit, Percentage: 12.5, CurrentValue: 125000, Usage: 1000000},
			}}},
			wantOK:    true,
			wantCalls: 1,
			wantText:  "Tokens: 12.5 / 100.0",
		},
		{
			name:         "no token limit",
			candidate:    complete,
			probe:        noTokens,
			wantOK:       true,
			wantDegraded: true,
			wantCalls:    1,
			wantText:     "no token quota",
		},
		{
			name:      "service error",
			candidate: complete,
			probe:     errorResponse("invalid organization"),
			wantCalls: 1,
			wantText:  "invalid organization",
		},
		{
			name:      "transport error",
			candidate: complete,
			probeErr:  &models.TransportError{Op: "probe", StatusCode: 401, Body: "token expired or invalid"},
			wantCalls: 1,
			wantText:  "token expired or invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeBackend()
			f.probe = tt.probe
			f.probeErr = tt.probeErr

			r := NewValidator(f, nil).TestConnection(context.Background(), tt.candidate)

			if r.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v (%s)", r.OK, tt.wantOK, r)
			}
			if r.Degraded != tt.wantDegraded {
				t.Errorf("Degraded = %v, want %v", r.Degraded, tt.wantDegraded)
			}
			if n := f.probeCalls.Load(); n != tt.wantCalls {
				t.Errorf("probe calls = %d, want %d", n, tt.wantCalls)
			}
			if !strings.Contains(r.String(), tt.wantText) {
				t.Errorf("String() = %q, want it to contain %q", r.String(), tt.wantText)
			}
		})
	}
}

func TestValidator_IncompleteIsValidationError(t *testing.T) {
	r := NewValidator(newFakeBackend(), nil).TestConnection(context.Background(), models.Credentials{})
	if !errors.Is(r.Err, models.ErrIncompleteConfig) {
		t.Errorf("Err = %v, want ErrIncompleteConfig", r.Err)
	}
}

func TestValidator_Save(t *testing.T) {
	t.Run("success activates", func(t *testing.T) {
		f := newFakeBackend()
		var activated []models.Credentials
		v := NewValidator(f, func(c models.Credentials) { activated = append(activated, c) })

		r := v.Save(context.Background(), models.Credentials{Token: "t", Organization: "o", Project: "p"})
		if !r.OK {
			t.Fatalf("Save() = %s, want success", r)
		}
		if len(f.saved) != 1 || f.saved[0].RefreshIntervalSeconds != models.DefaultRefreshInterval {
			t.Errorf("saved = %+v, want one entry with default interval", f.saved)
		}
		if len(activated) != 1 {
			t.Errorf("activate called %d times, want 1", len(activated))
		}
	})

	t.Run("invalid is not persisted", func(t *testing.T) {
		f := newFakeBackend()
		called := false
		v := NewValidator(f, func(models.Credentials) { called = true })

		r := v.Save(context.Background(), models.Credentials{Token: "t", Organization: "o", Project: "p", RefreshIntervalSeconds: 45})
		if r.OK {
			t.Fatal("Save() succeeded with invalid interval")
		}
		if len(f.saved) != 0 || called {
			t.Error("invalid credentials were persisted or activated")
		}
	})

	t.Run("persistence failure", func(t *testing.T) {
		f := newFakeBackend()
		f.saveErr = errors.New("read-only file system")
		called := false
		v := NewValidator(f, func(models.Credentials) { called = true })

		r := v.Save(context.Background(), models.Credentials{Token: "t", Organization: "o", Project: "p"})
		if r.OK || called {
			t.Fatalf("Save() = %s, activate = %v; want failure without activation", r, called)
		}
		var pe *models.PersistenceError
		if !errors.As(r.Err, &pe) {
			t.Errorf("Err = %T, want *PersistenceError", r.Err)
		}
		if !strings.Contains(r.Reason, "read-only file system") {
			t.Errorf("Reason = %q", r.Reason)
		}
	})
}
