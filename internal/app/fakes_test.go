package app

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// fakeSession records the calls the UI makes on the controller.
type fakeSession struct {
	startErr   error
	refreshErr error
	changes    chan client.ClientState
	refresh    models.OkSnapshot
	state      client.ClientState
	mode       client.ViewMode
	mu         sync.Mutex
	starts     int
	refreshes  int
	toggles    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{changes: make(chan client.ClientState, 4)}
}

func (f *fakeSession) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeSession) Refresh(context.Context) (models.OkSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refresh, f.refreshErr
}

func (f *fakeSession) ToggleView() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
}

func (f *fakeSession) SetViewMode(mode client.ViewMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
}

func (f *fakeSession) Changes() <-chan client.ClientState {
	return f.changes
}

func (f *fakeSession) State() client.ClientState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// fakeConfigBackend answers connection tests with a fixed response.
type fakeConfigBackend struct {
	probe    *models.RawUsageResponse
	probeErr error
	saveErr  error
	saved    []models.Credentials
}

func (f *fakeConfigBackend) SaveConfig(_ context.Context, c models.Credentials) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, c)
	return nil
}

func (f *fakeConfigBackend) TestConnection(context.Context, models.Credentials) (*models.RawUsageResponse, error) {
	return f.probe, f.probeErr
}

// fakeHistory returns fixed stats.
type fakeHistory struct {
	stats *models.HistoryStats
	err   error
	asked []models.TimeRange
}

func (f *fakeHistory) GetHistoryStats(tr models.TimeRange, _ int) (*models.HistoryStats, error) {
	f.asked = append(f.asked, tr)
	return f.stats, f.err
}

// stubTab records the messages it receives.
type stubTab struct {
	view     string
	received []tea.Msg
	width    int
	height   int
	capture  bool
}

func (s *stubTab) Init() tea.Cmd { return nil }

func (s *stubTab) Update(msg tea.Msg) (Tab, tea.Cmd) {
	s.received = append(s.received, msg)
	return s, nil
}

func (s *stubTab) View() string { return s.view }

func (s *stubTab) SetSize(width, height int) {
	s.width = width
	s.height = height
}

func (s *stubTab) ShortHelp() []key.Binding { return nil }

func (s *stubTab) CapturesInput() bool { return s.capture }

func tokensSnapshot(pct float64) *models.OkSnapshot {
	s := models.NewOkSnapshot([]models.Limit{{
		Kind:         models.LimitTokens,
		Percentage:   pct,
		CurrentValue: int64(pct * 10_000),
		UsageTotal:   1_000_000,
		Remaining:    1_000_000 - int64(pct*10_000),
	}})
	return &s
}

func successResponse(limits ...models.RawLimit) *models.RawUsageResponse {
	ok := true
	return &models.RawUsageResponse{Success: &ok, Data: &models.RawUsageData{Limits: limits}}
}
