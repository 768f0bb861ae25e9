package client

import (
	"time"

	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// Phase is the display phase derived from ClientState.
type Phase int

const (
	// PhaseUninitialized means nothing has been received yet.
	PhaseUninitialized Phase = iota
	// PhaseEmpty means the service answered but has no data yet.
	PhaseEmpty
	// PhasePopulated means at least one limit is known.
	PhasePopulated
	// PhaseError means the last update failed. Snapshot still holds the last good data.
	PhaseError
)

// String returns the string representation of a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseEmpty:
		return "empty"
	case PhasePopulated:
		return "populated"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// ViewMode selects between the usage display and the configuration form.
type ViewMode int

const (
	// ViewConfig shows the configuration form.
	ViewConfig ViewMode = iota
	// ViewUsage shows the usage display.
	ViewUsage
)

// String returns the string representation of a ViewMode.
func (v ViewMode) String() string {
	if v == ViewUsage {
		return "usage"
	}
	return "config"
}

// Toggle returns the other view mode.
func (v ViewMode) Toggle() ViewMode {
	if v == ViewUsage {
		return ViewConfig
	}
	return ViewUsage
}

// ClientState is an immutable view of the reconciled client state.
type ClientState struct {
	LastSuccessfulUpdate time.Time
	Credentials          *models.Credentials
	// Snapshot is the last good observation. It survives errors.
	Snapshot *models.OkSnapshot
	Error    string
	Session  uint64
	ViewMode ViewMode
	// Degraded is set when one or more push channels could not be attached.
	Degraded bool
}

// Phase derives the display phase.
func (s ClientState) Phase() Phase {
	switch {
	case s.Error != "":
		return PhaseError
	case s.Snapshot == nil:
		return PhaseUninitialized
	case s.Snapshot.Empty():
		return PhaseEmpty
	default:
		return PhasePopulated
	}
}

// Configured reports whether complete credentials are loaded.
func (s ClientState) Configured() bool {
	return s.Credentials != nil && s.Credentials.Complete()
}

func (s ClientState) clone() ClientState {
	c := s
	if s.Credentials != nil {
		creds := *s.Credentials
		c.Credentials = &creds
	}
	return c
}
