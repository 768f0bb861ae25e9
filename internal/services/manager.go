// Package services wires the credentials store, usage poller and history
// database into the backend consumed by the client.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/config"
	"github.com/j-veylop/glm-usage-tui/internal/db"
	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
	"github.com/j-veylop/glm-usage-tui/internal/services/credentials"
	"github.com/j-veylop/glm-usage-tui/internal/services/usage"
)

// historyRetention is how long usage history is kept.
const historyRetention = 90 * 24 * time.Hour

// Notification thresholds in percent.
const (
	notifyCriticalPercent = models.CriticalThreshold
	notifyResetDrop       = 20.0
)

// Manager orchestrates services and push channel routing. It implements
// client.Backend.
type Manager struct {
	credentials  *credentials.Service
	usage        *usage.Service
	api          *usage.Client
	database     *db.DB
	listeners    map[client.Channel]map[int]client.Handler
	stopChan     chan struct{}
	routeDone    chan struct{}
	notify       func(title, body string) error
	previous     *models.OkSnapshot
	nextID       int
	mu           sync.RWMutex
	notifyMu     sync.Mutex
	closeOnce    sync.Once
	closed       bool
	notifyEnable bool
}

var _ client.Backend = (*Manager)(nil)

// NewManager creates a new service manager.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		listeners: map[client.Channel]map[int]client.Handler{
			client.ChannelUsageUpdate:      {},
			client.ChannelUsageError:       {},
			client.ChannelVisibilityToggle: {},
		},
		stopChan:     make(chan struct{}),
		routeDone:    make(chan struct{}),
		notifyEnable: cfg.Notifications,
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}

	var err error
	m.credentials, err = credentials.New(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		_ = m.credentials.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if n, err := m.database.PruneBefore(time.Now().Add(-historyRetention)); err != nil {
		logger.Warn("failed to prune history", "error", err)
	} else if n > 0 {
		logger.Debug("pruned history", "rows", n)
	}

	m.api = usage.NewClient(cfg.APIURL, cfg.RequestTimeout, nil)

	usageConfig := usage.DefaultConfig()
	usageConfig.FetchTimeout = cfg.RequestTimeout
	if creds := m.credentials.Get(); creds != nil {
		usageConfig.PollInterval = time.Duration(creds.RefreshIntervalSeconds) * time.Second
	}
	m.usage = usage.New(m.api, m.credentials, usageConfig)

	go m.routeEvents()

	return m, nil
}

// routeEvents routes events from individual services to listeners.
func (m *Manager) routeEvents() {
	defer close(m.routeDone)
	for {
		select {
		case event := <-m.usage.Events():
			m.handleUsageEvent(event)

		case event := <-m.credentials.Events():
			m.handleCredentialsEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleUsageEvent(event usage.Event) {
	source := models.SourcePoll
	if event.Manual {
		source = models.SourceManual
	}

	switch event.Type {
	case usage.EventUsageUpdated:
		m.recordRefresh(event.At, source, nil)
		if s, ok := models.Normalize(event.Usage).(models.OkSnapshot); ok {
			m.recordUsage(s, event.At)
			m.checkNotifications(s)
		}
		m.dispatch(client.Event{Channel: client.ChannelUsageUpdate, Usage: event.Usage})

	case usage.EventUsageError:
		m.recordRefresh(event.At, source, event.Error)
		m.dispatch(client.Event{Channel: client.ChannelUsageError, Error: event.Error.Error()})
	}
}

func (m *Manager) handleCredentialsEvent(event credentials.Event) {
	switch event.Type {
	case credentials.EventSaved, credentials.EventChanged:
		if event.Credentials != nil {
			m.usage.SetInterval(time.Duration(event.Credentials.RefreshIntervalSeconds) * time.Second)
		}
	case credentials.EventError:
		logger.Warn("credentials watcher error", "error", event.Error)
	}
}

func (m *Manager) recordUsage(s models.OkSnapshot, at time.Time) {
	if err := m.database.InsertUsageRecords(models.RecordsFromSnapshot(s, at)); err != nil {
		logger.Error("failed to record usage", "error", err)
	}
}

func (m *Manager) recordRefresh(at time.Time, source models.RefreshSource, err error) {
	ev := &models.RefreshEvent{Timestamp: at, Source: source, Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	if err := m.database.InsertRefreshEvent(ev); err != nil {
		logger.Error("failed to record refresh", "error", err)
	}
}

// checkNotifications sends a desktop notification when the token quota
// crosses the critical threshold or resets.
func (m *Manager) checkNotifications(next models.OkSnapshot) {
	m.notifyMu.Lock()
	prev := m.previous
	m.previous = &next
	m.notifyMu.Unlock()

	if prev == nil || !m.notifyEnable {
		return
	}

	oldLimit, okOld := prev.Find(models.LimitTokens)
	newLimit, okNew := next.Find(models.LimitTokens)
	if !okOld || !okNew {
		return
	}

	var title, body string
	switch {
	case newLimit.Percentage >= notifyCriticalPercent && oldLimit.Percentage < notifyCriticalPercent:
		title = "GLM token quota critical"
		body = fmt.Sprintf("%.1f%% of the token quota used (%s / %s)",
			newLimit.Percentage, models.FormatTokens(newLimit.CurrentValue), models.FormatTokens(newLimit.UsageTotal))
	case oldLimit.Percentage-newLimit.Percentage > notifyResetDrop:
		title = "GLM token quota reset"
		body = fmt.Sprintf("Usage dropped to %.1f%%.", newLimit.Percentage)
	default:
		return
	}

	if err := m.notify(title, body); err != nil {
		logger.Warn("failed to send notification", "error", err)
	}
}

// dispatch calls every handler registered on ev.Channel.
func (m *Manager) dispatch(ev client.Event) {
	m.mu.RLock()
	handlers := make([]client.Handler, 0, len(m.listeners[ev.Channel]))
	for _, h := range m.listeners[ev.Channel] {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Listen implements client.Listener.
func (m *Manager) Listen(_ context.Context, channel client.Channel, handler client.Handler) (client.Disposer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: manager closed", models.ErrChannelUnavailable)
	}
	set, ok := m.listeners[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrChannelUnavailable, channel)
	}

	id := m.nextID
	m.nextID++
	set[id] = handler

	return func() {
		m.mu.Lock()
		delete(m.listeners[channel], id)
		m.mu.Unlock()
	}, nil
}

// ListenerCount returns the number of handlers attached to channel.
func (m *Manager) ListenerCount(channel client.Channel) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[channel])
}

// ToggleVisibility asks every client to flip between usage and config views.
func (m *Manager) ToggleVisibility() {
	m.dispatch(client.Event{Channel: client.ChannelVisibilityToggle})
}

// GetConfig implements client.Backend.
func (m *Manager) GetConfig(context.Context) (*models.Credentials, error) {
	return m.credentials.Get(), nil
}

// SaveConfig implements client.ConfigBackend.
func (m *Manager) SaveConfig(_ context.Context, creds models.Credentials) error {
	if err := m.credentials.Save(creds); err != nil {
		return err
	}
	m.usage.SetInterval(time.Duration(creds.WithDefaults().RefreshIntervalSeconds) * time.Second)
	return nil
}

// TestConnection implements client.ConfigBackend.
func (m *Manager) TestConnection(ctx context.Context, creds models.Credentials) (*models.RawUsageResponse, error) {
	return m.api.FetchUsage(ctx, creds)
}

// GetCurrentUsage implements client.Backend.
func (m *Manager) GetCurrentUsage(context.Context) (*models.RawUsageResponse, error) {
	return m.usage.Current(), nil
}

// GetCurrentError implements client.Backend.
func (m *Manager) GetCurrentError(context.Context) (string, error) {
	if err := m.usage.LastError(); err != nil {
		return err.Error(), nil
	}
	return "", nil
}

// ManualRefresh implements client.Backend.
func (m *Manager) ManualRefresh(ctx context.Context) (*models.RawUsageResponse, error) {
	return m.usage.Refresh(ctx)
}

// GetHistoryStats returns recorded history for the time range.
func (m *Manager) GetHistoryStats(tr models.TimeRange, maxPoints int) (*models.HistoryStats, error) {
	return m.database.GetHistoryStats(tr, time.Now(), maxPoints)
}

// ConfigPath returns the credentials file path.
func (m *Manager) ConfigPath() string {
	return m.credentials.Path()
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		for ch := range m.listeners {
			m.listeners[ch] = map[int]client.Handler{}
		}
		m.mu.Unlock()

		close(m.stopChan)
		<-m.routeDone

		if err := m.usage.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.credentials.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	})

	return errors.Join(errs...)
}
