// Package credentials persists API credentials and watches the config file
// for external edits.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// Event represents a credentials service event.
type Event struct {
	Error       error
	Credentials *models.Credentials
	Type        EventType
}

// EventType defines the type of credentials event.
type EventType int

const (
	// EventLoaded is sent once the initial file has been read.
	EventLoaded EventType = iota
	// EventSaved is sent after Save succeeds.
	EventSaved
	// EventChanged is sent when the file was modified by another process.
	EventChanged
	// EventError is sent when the file cannot be read or watched.
	EventError
)

const debounceInterval = 100 * time.Millisecond

// Service holds the current credentials, backed by a JSON file.
type Service struct {
	creds         *models.Credentials
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	filePath      string
	mu            sync.RWMutex
	closeOnce     sync.Once
}

// New loads credentials from filePath and starts watching it. A missing file
// is not an error; Get returns nil until credentials are saved.
func New(filePath string) (*Service, error) {
	s := &Service{
		filePath:  filePath,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	creds, err := readFile(filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("no saved credentials", "path", filePath)
	case err != nil:
		// A corrupt file behaves like a missing one; the user can re-save.
		logger.Warn("failed to read credentials", "path", filePath, "error", err)
	default:
		s.creds = creds
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded, Credentials: s.Get()})

	return s, nil
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Path returns the config file path.
func (s *Service) Path() string {
	return s.filePath
}

// Get returns a copy of the current credentials, or nil if none are saved.
func (s *Service) Get() *models.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	c := *s.creds
	return &c
}

// Save writes creds to disk and makes them current. Failures are returned
// as *models.PersistenceError.
func (s *Service) Save(creds models.Credentials) error {
	creds = creds.WithDefaults()

	s.mu.Lock()
	err := s.saveLocked(creds)
	if err == nil {
		s.creds = &creds
	}
	s.mu.Unlock()

	if err != nil {
		return &models.PersistenceError{Path: s.filePath, Err: err}
	}

	saved := creds
	s.sendEvent(Event{Type: EventSaved, Credentials: &saved})
	return nil
}

// saveLocked writes the file via a temp file and rename (must hold lock).
func (s *Service) saveLocked(creds models.Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func readFile(path string) (*models.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	creds = creds.WithDefaults()
	if !models.IsAllowedRefreshInterval(creds.RefreshIntervalSeconds) {
		logger.Warn("unsupported refresh interval, using default",
			"refresh_interval", creds.RefreshIntervalSeconds)
		creds.RefreshIntervalSeconds = models.DefaultRefreshInterval
	}
	return &creds, nil
}

// startWatcher watches the directory so that atomic replaces are seen.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			s.mu.Lock()
			if s.debounceTimer != nil {
				s.debounceTimer.Stop()
			}
			s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
			s.mu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads the file after an external change. Our own
// saves produce identical content and are not reported again.
func (s *Service) handleFileChange() {
	creds, err := readFile(s.filePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.sendEvent(Event{Type: EventError, Error: err})
		}
		return
	}

	s.mu.Lock()
	unchanged := s.creds != nil && *s.creds == *creds
	s.creds = creds
	s.mu.Unlock()

	if unchanged {
		return
	}

	logger.Info("credentials file changed", "token", creds.MaskedToken())
	c := *creds
	s.sendEvent(Event{Type: EventChanged, Credentials: &c})
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
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

// Close stops the file watcher.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
