package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	// commandTimeout bounds calls made on behalf of a key press.
	commandTimeout = time.Minute

	// historyPoints is the number of samples requested for the chart.
	historyPoints = 120
)

// Session is the client controller surface driven by the UI.
type Session interface {
	Start(ctx context.Context) error
	Refresh(ctx context.Context) (models.OkSnapshot, error)
	ToggleView()
	SetViewMode(mode client.ViewMode)
	Changes() <-chan client.ClientState
	State() client.ClientState
}

// HistorySource loads recorded usage history.
type HistorySource interface {
	GetHistoryStats(tr models.TimeRange, maxPoints int) (*models.HistoryStats, error)
}

var _ Session = (*client.Controller)(nil)

// Commands builds the tea.Cmds the model and tabs issue.
type Commands struct {
	session   Session
	validator *client.Validator
	history   HistorySource
}

// NewCommands creates a new Commands instance. Any collaborator may be nil;
// commands needing it then do nothing.
func NewCommands(session Session, validator *client.Validator, history HistorySource) *Commands {
	return &Commands{session: session, validator: validator, history: history}
}

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// Tick returns a tick command with the default interval.
func (c *Commands) Tick() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// StartSession starts the client session and reports when bootstrap is done.
func (c *Commands) StartSession() tea.Cmd {
	if c.session == nil {
		return nil
	}
	return func() tea.Msg {
		return SessionStartedMsg{Err: c.session.Start(context.Background())}
	}
}

// WaitForChange waits for the next published client state.
func (c *Commands) WaitForChange() tea.Cmd {
	if c.session == nil {
		return nil
	}
	ch := c.session.Changes()
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return changesClosedMsg{}
		}
		return ClientStateMsg{State: s}
	}
}

// Refresh requests a manual refresh.
func (c *Commands) Refresh() tea.Cmd {
	if c.session == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		snap, err := c.session.Refresh(ctx)
		return RefreshResultMsg{Snapshot: snap, Err: err}
	}
}

// ToggleView flips between the usage and configuration views.
func (c *Commands) ToggleView() tea.Cmd {
	if c.session == nil {
		return nil
	}
	return func() tea.Msg {
		c.session.ToggleView()
		return nil
	}
}

// SetViewMode switches to the given view.
func (c *Commands) SetViewMode(mode client.ViewMode) tea.Cmd {
	if c.session == nil {
		return nil
	}
	return func() tea.Msg {
		c.session.SetViewMode(mode)
		return nil
	}
}

// TestConnection probes the service with candidate credentials.
func (c *Commands) TestConnection(candidate models.Credentials) tea.Cmd {
	if c.validator == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return ValidationResultMsg{Result: c.validator.TestConnection(ctx, candidate)}
	}
}

// Save validates and persists candidate credentials.
func (c *Commands) Save(candidate models.Credentials) tea.Cmd {
	if c.validator == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return ValidationResultMsg{Result: c.validator.Save(ctx, candidate), Saved: true}
	}
}

// LoadHistory loads usage history for a time range.
func (c *Commands) LoadHistory(tr models.TimeRange) tea.Cmd {
	if c.history == nil {
		return nil
	}
	return func() tea.Msg {
		stats, err := c.history.GetHistoryStats(tr, historyPoints)
		return HistoryLoadedMsg{Stats: stats, Err: err}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// NotifySuccess returns a command that adds a success notification.
func (c *Commands) NotifySuccess(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}
