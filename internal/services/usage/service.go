package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// Fetcher retrieves raw usage for a set of credentials.
type Fetcher interface {
	FetchUsage(ctx context.Context, creds models.Credentials) (*models.RawUsageResponse, error)
}

// CredentialsProvider returns the current credentials, or nil if none are saved.
type CredentialsProvider interface {
	Get() *models.Credentials
}

// Event represents a usage service event.
type Event struct {
	At    time.Time
	Error error
	Usage *models.RawUsageResponse
	Type  EventType
	// Manual is set for results of Refresh rather than the poller.
	Manual bool
}

// EventType defines the type of usage event.
type EventType int

const (
	// EventUsageUpdated indicates a successful fetch.
	EventUsageUpdated EventType = iota
	// EventUsageError indicates a failed fetch or a service error envelope.
	EventUsageError
)

// Config holds configuration for the usage service.
type Config struct {
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: models.DefaultRefreshInterval * time.Second,
		FetchTimeout: 30 * time.Second,
	}
}

// Service caches the last usage result and polls for new ones.
type Service struct {
	fetcher   Fetcher
	creds     CredentialsProvider
	current   *models.RawUsageResponse
	lastErr   error
	eventChan chan Event
	stopChan  chan struct{}
	resetChan chan time.Duration
	config    Config
	mu        sync.RWMutex
	closeOnce sync.Once
}

// New creates a usage service and starts polling. The first poll happens one
// interval after start.
func New(fetcher Fetcher, creds CredentialsProvider, config Config) *Service {
	def := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = def.FetchTimeout
	}

	s := &Service{
		fetcher:   fetcher,
		creds:     creds,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
		resetChan: make(chan time.Duration, 1),
		config:    config,
	}

	go s.poll()

	return s
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Current returns a copy of the last successful response, or nil.
func (s *Service) Current() *models.RawUsageResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// LastError returns the error of the most recent attempt, or nil after a success.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Refresh fetches usage now. The result updates the cache and is emitted as
// an event like a poll result.
func (s *Service) Refresh(ctx context.Context) (*models.RawUsageResponse, error) {
	return s.fetch(ctx, true)
}

// SetInterval changes the poll interval. The next poll is one interval from now.
func (s *Service) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-s.resetChan:
	default:
	}
	select {
	case s.resetChan <- d:
	default:
	}
}

func (s *Service) fetch(ctx context.Context, manual bool) (*models.RawUsageResponse, error) {
	creds := s.creds.Get()
	if creds == nil {
		s.setError(models.ErrNotConfigured)
		return nil, models.ErrNotConfigured
	}
	if !creds.Complete() {
		s.setError(models.ErrIncompleteConfig)
		return nil, models.ErrIncompleteConfig
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	raw, err := s.fetcher.FetchUsage(ctx, *creds)
	if err == nil {
		if es, ok := models.Normalize(raw).(models.ErrSnapshot); ok {
			err = es.Error()
		}
	}
	if err != nil {
		s.setError(err)
		s.sendEvent(Event{Type: EventUsageError, Error: err, Manual: manual, At: time.Now()})
		return nil, err
	}

	s.mu.Lock()
	s.current = raw.Clone()
	s.lastErr = nil
	s.mu.Unlock()

	s.sendEvent(Event{Type: EventUsageUpdated, Usage: raw.Clone(), Manual: manual, At: time.Now()})
	return raw, nil
}

func (s *Service) setError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// poll runs the background polling goroutine.
func (s *Service) poll() {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopChan
		cancel()
	}()

	for {
		select {
		case <-ticker.C:
			if _, err := s.fetch(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("scheduled usage fetch failed", "error", err)
			}
		case d := <-s.resetChan:
			logger.Debug("poll interval changed", "interval", d)
			ticker.Reset(d)
		case <-s.stopChan:
			return
		}
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops polling.
func (s *Service) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	return nil
}
