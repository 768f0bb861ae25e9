package app

import (
	"time"

	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// TickMsg is sent periodically to expire notifications and age timestamps.
type TickMsg struct {
	Time time.Time
}

// SessionStartedMsg reports the end of the client session bootstrap.
type SessionStartedMsg struct {
	Err error
}

// ClientStateMsg carries a state published by the controller.
type ClientStateMsg struct {
	State client.ClientState
}

// changesClosedMsg signals that the controller stopped publishing.
type changesClosedMsg struct{}

// RefreshResultMsg contains the outcome of a manual refresh.
type RefreshResultMsg struct {
	Err      error
	Snapshot models.OkSnapshot
}

// HistoryLoadedMsg contains loaded usage history.
type HistoryLoadedMsg struct {
	Stats *models.HistoryStats
	Err   error
}

// ValidationResultMsg contains the result of a connection test or save.
type ValidationResultMsg struct {
	Result client.ValidationResult
	Saved  bool
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Duration time.Duration
	Type     NotificationType
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
