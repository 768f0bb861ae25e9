// Package client keeps the client-side view of quota usage consistent across
// the bootstrap fetch, push events and manual refreshes, and validates
// credentials before they are trusted.
package client

import (
	"context"

	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// Channel names a push channel of the backend.
type Channel string

// Push channels.
const (
	ChannelUsageUpdate      Channel = "usage-update"
	ChannelUsageError       Channel = "usage-error"
	ChannelVisibilityToggle Channel = "visibility-toggle"
)

// Event is a single push notification. Usage is set on usage-update,
// Error on usage-error; visibility-toggle carries no payload.
type Event struct {
	Usage   *models.RawUsageResponse
	Channel Channel
	Error   string
}

// Handler receives push events. It may be called from any goroutine.
type Handler func(Event)

// Disposer removes a listener.
type Disposer func()

// Listener registers push-channel handlers.
type Listener interface {
	// Listen attaches handler to channel. It may block until the
	// registration is confirmed and fails if the channel is unavailable.
	Listen(ctx context.Context, channel Channel, handler Handler) (Disposer, error)
}

// ConfigBackend is the part of the backend used to validate and persist credentials.
type ConfigBackend interface {
	// SaveConfig persists credentials; it fails when storage is unavailable.
	SaveConfig(ctx context.Context, creds models.Credentials) error
	// TestConnection probes the remote service with the given credentials.
	TestConnection(ctx context.Context, creds models.Credentials) (*models.RawUsageResponse, error)
}

// Backend is the service the client consumes.
type Backend interface {
	Listener
	ConfigBackend

	// GetConfig returns the persisted credentials, or nil when none are saved.
	GetConfig(ctx context.Context) (*models.Credentials, error)
	// GetCurrentUsage returns the last known usage without a network call.
	GetCurrentUsage(ctx context.Context) (*models.RawUsageResponse, error)
	// GetCurrentError returns the last error, or "" when there is none.
	GetCurrentError(ctx context.Context) (string, error)
	// ManualRefresh performs a live remote call.
	ManualRefresh(ctx context.Context) (*models.RawUsageResponse, error)
}
