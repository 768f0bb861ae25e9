package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteConfig is returned when token, organization or project is empty.
	ErrIncompleteConfig = errors.New("incomplete configuration")
	// ErrNotConfigured is returned when no credentials have been saved.
	ErrNotConfigured = errors.New("API credentials not configured")
	// ErrSessionInactive is returned when a session operation runs outside a session.
	ErrSessionInactive = errors.New("session is not active")
	// ErrChannelUnavailable is returned when a push channel cannot be subscribed.
	ErrChannelUnavailable = errors.New("push channel unavailable")
)

// ValidationError is a local validation failure. It never reaches the network.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is lets errors.Is(err, ErrIncompleteConfig) match incomplete-configuration failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrIncompleteConfig && e.Reason == ErrIncompleteConfig.Error()
}

// TransportError is a failed probe or refresh call: network, timeout,
// non-2xx status or malformed payload.
type TransportError struct {
	Err        error
	Op         string
	Body       string
	StatusCode int
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: API error (%d): %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: API error (%d): %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API error (%d)", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError is a structured error envelope returned by the remote service.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}

// PersistenceError is a failed credential save.
type PersistenceError struct {
	Err  error
	Path string
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to save configuration: %v", e.Err)
	}
	return fmt.Sprintf("failed to save configuration to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
