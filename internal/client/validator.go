package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// ValidationResult is the outcome of a connection test or save. Failures
// carry a human-readable Reason; errors never escape the Validator.
type ValidationResult struct {
	Err     error
	Summary string
	Reason  string
	OK      bool
	// Degraded marks a successful connection that returned no token data.
	Degraded bool
}

// Success builds a successful result.
func Success(summary string) ValidationResult {
	return ValidationResult{OK: true, Summary: summary}
}

// Failure builds a failed result from err.
func Failure(err error) ValidationResult {
	return ValidationResult{Err: err, Reason: err.Error()}
}

// String returns the message shown to the user.
func (r ValidationResult) String() string {
	if r.OK {
		return r.Summary
	}
	return r.Reason
}

// Validator tests candidate credentials against the service and persists them.
type Validator struct {
	backend  ConfigBackend
	activate func(models.Credentials)
}

// NewValidator creates a validator. activate is called with the saved
// credentials after a successful Save and may be nil.
func NewValidator(backend ConfigBackend, activate func(models.Credentials)) *Validator {
	return &Validator{backend: backend, activate: activate}
}

// TestConnection probes the service with candidate. Incomplete candidates
// fail without a network call.
func (v *Validator) TestConnection(ctx context.Context, candidate models.Credentials) ValidationResult {
	if !candidate.Complete() {
		return Failure(&models.ValidationError{Reason: models.ErrIncompleteConfig.Error()})
	}

	raw, err := v.backend.TestConnection(ctx, candidate)
	if err != nil {
		logger.Debug("connection test failed", "token", candidate.MaskedToken(), "error", err)
		return Failure(err)
	}

	switch s := models.Normalize(raw).(type) {
	case models.ErrSnapshot:
		return Failure(s.Error())
	case models.OkSnapshot:
		l, ok := s.Find(models.LimitTokens)
		if !ok {
			return ValidationResult{
				OK:       true,
				Degraded: true,
				Summary:  "Connected, but the service returned no token quota",
			}
		}
		return Success(fmt.Sprintf("Connected. Tokens: %s / %s %s (%.1f%%)",
			models.DisplayValue(l.Kind, l.CurrentValue),
			models.DisplayValue(l.Kind, l.UsageTotal),
			models.UnitLabel(l.Kind),
			l.Percentage))
	}
	return Failure(errors.New("unexpected response"))
}

// Save validates candidate and persists it. The activate callback runs only
// when both steps succeed.
func (v *Validator) Save(ctx context.Context, candidate models.Credentials) ValidationResult {
	candidate = candidate.WithDefaults()
	if err := candidate.Validate(); err != nil {
		return Failure(err)
	}

	if err := v.backend.SaveConfig(ctx, candidate); err != nil {
		var pe *models.PersistenceError
		if !errors.As(err, &pe) {
			err = &models.PersistenceError{Err: err}
		}
		logger.Error("failed to save config", "error", err)
		return Failure(err)
	}

	logger.Info("config saved", "token", candidate.MaskedToken(), "refresh_interval", candidate.RefreshIntervalSeconds)
	if v.activate != nil {
		v.activate(candidate)
	}
	return Success("Configuration saved")
}
