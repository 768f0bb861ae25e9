package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// fakeBackend is an in-memory Backend with hooks for blocking and counting calls.
type fakeBackend struct {
	config    *models.Credentials
	usage     *models.RawUsageResponse
	usageErr  error
	probe     *models.RawUsageResponse
	probeErr  error
	saveErr   error
	listenErr map[Channel]error
	refreshFn func(ctx context.Context) (*models.RawUsageResponse, error)
	// onUsage runs inside GetCurrentUsage, before it returns.
	onUsage    func()
	listenGate chan struct{}
	listening  chan Channel
	handlers   map[int]Subscription
	every      map[int]Subscription
	saved      []models.Credentials
	currentErr string
	nextID     int
	mu         sync.Mutex

	refreshCalls atomic.Int32
	usageCalls   atomic.Int32
	probeCalls   atomic.Int32
	disposed     atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		config:    &models.Credentials{Token: "tok-123456", Organization: "org", Project: "proj", RefreshIntervalSeconds: 60},
		listenErr: make(map[Channel]error),
		handlers:  make(map[int]Subscription),
		every:     make(map[int]Subscription),
		listening: make(chan Channel, 16),
	}
}

func (f *fakeBackend) Listen(_ context.Context, ch Channel, h Handler) (Disposer, error) {
	f.listening <- ch
	if f.listenGate != nil {
		<-f.listenGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listenErr[ch]; err != nil {
		return nil, err
	}
	id := f.nextID
	f.nextID++
	f.handlers[id] = Subscription{Channel: ch, Handler: h}
	f.every[id] = Subscription{Channel: ch, Handler: h}

	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
		f.disposed.Add(1)
	}, nil
}

func (f *fakeBackend) emit(ev Event) {
	f.mu.Lock()
	var hs []Handler
	for _, s := range f.handlers {
		if s.Channel == ev.Channel {
			hs = append(hs, s.Handler)
		}
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

// emitStale calls handlers that have already been disposed.
func (f *fakeBackend) emitStale(ev Event) {
	f.mu.Lock()
	var hs []Handler
	for id, s := range f.every {
		if _, live := f.handlers[id]; !live && s.Channel == ev.Channel {
			hs = append(hs, s.Handler)
		}
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (f *fakeBackend) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeBackend) SaveConfig(_ context.Context, creds models.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, creds)
	return nil
}

func (f *fakeBackend) TestConnection(context.Context, models.Credentials) (*models.RawUsageResponse, error) {
	f.probeCalls.Add(1)
	return f.probe, f.probeErr
}

func (f *fakeBackend) GetConfig(context.Context) (*models.Credentials, error) {
	return f.config, nil
}

func (f *fakeBackend) GetCurrentUsage(context.Context) (*models.RawUsageResponse, error) {
	f.usageCalls.Add(1)
	if f.onUsage != nil {
		f.onUsage()
	}
	return f.usage, f.usageErr
}

func (f *fakeBackend) GetCurrentError(context.Context) (string, error) {
	return f.currentErr, nil
}

func (f *fakeBackend) ManualRefresh(ctx context.Context) (*models.RawUsageResponse, error) {
	f.refreshCalls.Add(1)
	if f.refreshFn != nil {
		return f.refreshFn(ctx)
	}
	return f.usage, f.usageErr
}

// usageResponse builds a success envelope with a TOKENS limit at pct percent.
func usageResponse(pct float64) *models.RawUsageResponse {
	ok := true
	return &models.RawUsageResponse{
		Success: &ok,
		Data: &models.RawUsageData{Limits: []models.RawLimit{
			{Type: models.WireTokensLimit, Percentage: pct, CurrentValue: int64(pct) * 1000, Usage: 100_000, Remaining: 100_000 - int64(pct)*1000},
			{Type: models.WireTimeLimit, Percentage: 10, CurrentValue: 100, Usage: 1000, Remaining: 900},
		}},
	}
}

func errorResponse(msg string) *models.RawUsageResponse {
	ok := false
	return &models.RawUsageResponse{Success: &ok, Code: "1001", Message: msg}
}

// blockingRefresh returns a refresh hook that signals entry and waits for a result.
func blockingRefresh() (fn func(context.Context) (*models.RawUsageResponse, error), entered chan struct{}, release chan *models.RawUsageResponse) {
	entered = make(chan struct{}, 8)
	release = make(chan *models.RawUsageResponse)
	fn = func(context.Context) (*models.RawUsageResponse, error) {
		entered <- struct{}{}
		return <-release, nil
	}
	return fn, entered, release
}

func tokensPercent(s ClientState) float64 {
	if s.Snapshot == nil {
		return -1
	}
	l, ok := s.Snapshot.Find(models.LimitTokens)
	if !ok {
		return -1
	}
	return l.Percentage
}

func waitFor(t *testing.T, c *Controller, what string, cond func(ClientState) bool) ClientState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.State(); cond(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; state = %+v", what, c.State())
	return ClientState{}
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
