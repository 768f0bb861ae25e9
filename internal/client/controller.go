package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// ErrClosed is returned by operations on a closed Controller.
var ErrClosed = errors.New("controller closed")

// Config holds configuration for the controller.
type Config struct {
	Now        func() time.Time
	QueueSize  int
	ChangeSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Now:        time.Now,
		QueueSize:  64,
		ChangeSize: 16,
	}
}

type updateKind int

const (
	updateReset updateKind = iota
	updateDegraded
	updateBootstrap
	updateSnapshot
	updateError
	updateToggle
	updateViewMode
	updateCredentials
)

// update is a single state transition. Updates are applied by one goroutine
// in the order they reach the queue.
type update struct {
	at       time.Time
	snapshot models.OkSnapshot
	boot     *bootstrap
	creds    *models.Credentials
	applied  chan struct{}
	err      string
	session  uint64
	kind     updateKind
	view     ViewMode
}

// bootstrap is the result of the initial pull after subscribing.
type bootstrap struct {
	creds *models.Credentials
	usage models.QuotaSnapshot
	err   string
}

// Controller reconciles bootstrap, push and manual refresh results into a
// single ClientState.
type Controller struct {
	backend Backend
	baseCtx context.Context
	cancel  context.CancelFunc
	updates chan update
	changes chan ClientState
	done    chan struct{}
	stopped chan struct{}
	subs    *Subscriptions
	now     func() time.Time
	flight  singleflight.Group
	state   ClientState
	// session is bumped at every Start and Teardown so results carrying an
	// older value are discarded.
	session   atomic.Uint64
	stateMu   sync.RWMutex
	lifecycle sync.Mutex
	closeOnce sync.Once
	closed    bool

	// Owned by the run loop. They record which fields a push or manual
	// result wrote before the bootstrap pull landed.
	snapshotTouched bool
	errorTouched    bool
	autoRefreshed   bool
}

// New creates a controller and starts its update loop.
func New(backend Backend, config Config) *Controller {
	def := DefaultConfig()
	if config.Now == nil {
		config.Now = def.Now
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.ChangeSize <= 0 {
		config.ChangeSize = def.ChangeSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend: backend,
		baseCtx: ctx,
		cancel:  cancel,
		updates: make(chan update, config.QueueSize),
		changes: make(chan ClientState, config.ChangeSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		now:     config.Now,
	}

	go c.run()

	return c
}

// Start begins a session: it attaches the push listeners, waits for them to
// register and only then pulls the current config, usage and error. Failing
// registrations put the session in degraded mode but do not fail Start.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	if c.closed {
		c.lifecycle.Unlock()
		return ErrClosed
	}
	if c.subs != nil {
		c.lifecycle.Unlock()
		return errors.New("session already started")
	}
	token := c.session.Add(1)
	subs := NewSubscriptions(c.backend)
	c.subs = subs
	c.lifecycle.Unlock()

	logger.Debug("starting session", "session", token)
	c.deliver(update{kind: updateReset, session: token})

	if err := subs.Attach(ctx, c.subscriptions(token)...); err != nil {
		logger.Warn("running without some push channels", "session", token, "error", err)
		c.post(update{kind: updateDegraded, session: token})
	}

	boot := c.pull(ctx)
	c.deliver(update{kind: updateBootstrap, session: token, boot: boot, at: c.now()})

	return ctx.Err()
}

// subscriptions returns the push handlers bound to a session token.
func (c *Controller) subscriptions(token uint64) []Subscription {
	return []Subscription{
		{Channel: ChannelUsageUpdate, Handler: func(ev Event) {
			u, _ := c.resultUpdate(token, ev.Usage, nil)
			c.post(u)
		}},
		{Channel: ChannelUsageError, Handler: func(ev Event) {
			c.post(update{kind: updateError, session: token, err: ev.Error})
		}},
		{Channel: ChannelVisibilityToggle, Handler: func(Event) {
			c.post(update{kind: updateToggle, session: token})
		}},
	}
}

// pull reads the backend's current view. Missing values are left unset.
func (c *Controller) pull(ctx context.Context) *bootstrap {
	b := &bootstrap{}

	creds, err := c.backend.GetConfig(ctx)
	if err != nil {
		logger.Warn("failed to load config", "error", err)
	} else {
		b.creds = creds
	}

	raw, err := c.backend.GetCurrentUsage(ctx)
	switch {
	case err != nil:
		b.err = err.Error()
	case raw != nil:
		b.usage = models.Normalize(raw)
	}

	current, err := c.backend.GetCurrentError(ctx)
	if err != nil {
		logger.Warn("failed to load current error", "error", err)
	} else if current != "" {
		b.err = current
	}

	return b
}

// Teardown ends the current session. Listeners are disposed exactly once,
// including those whose registration is still pending, and results still in
// flight are discarded. It is safe to call more than once.
func (c *Controller) Teardown() {
	c.lifecycle.Lock()
	subs := c.subs
	c.subs = nil
	if subs != nil {
		c.session.Add(1)
	}
	c.lifecycle.Unlock()

	if subs != nil {
		logger.Debug("tearing down session")
		subs.Teardown()
	}
}

// Refresh performs a manual refresh and returns once its result has been
// applied. Concurrent calls share one backend request. The request is not
// cancelled when ctx is; ctx only bounds how long the caller waits.
func (c *Controller) Refresh(ctx context.Context) (models.OkSnapshot, error) {
	token, ok := c.activeSession()
	if !ok {
		return models.OkSnapshot{}, models.ErrSessionInactive
	}

	select {
	case res := <-c.sharedRefresh(token):
		if res.Err != nil {
			return models.OkSnapshot{}, res.Err
		}
		return res.Val.(models.OkSnapshot), nil
	case <-ctx.Done():
		return models.OkSnapshot{}, ctx.Err()
	}
}

// sharedRefresh joins the refresh in flight for the session or starts one.
func (c *Controller) sharedRefresh(token uint64) <-chan singleflight.Result {
	return c.flight.DoChan("refresh-"+strconv.FormatUint(token, 10), func() (any, error) {
		return c.refresh(token)
	})
}

func (c *Controller) refresh(token uint64) (models.OkSnapshot, error) {
	raw, err := c.backend.ManualRefresh(c.baseCtx)
	u, err := c.resultUpdate(token, raw, err)
	c.deliver(u)
	if err != nil {
		return models.OkSnapshot{}, err
	}
	return u.snapshot, nil
}

// resultUpdate turns a backend result into an update and the error it carries.
func (c *Controller) resultUpdate(token uint64, raw *models.RawUsageResponse, err error) (update, error) {
	u := update{session: token, at: c.now()}
	if err == nil {
		switch s := models.Normalize(raw).(type) {
		case models.OkSnapshot:
			u.kind = updateSnapshot
			u.snapshot = s
			return u, nil
		case models.ErrSnapshot:
			err = s.Error()
		}
	}
	u.kind = updateError
	u.err = err.Error()
	return u, err
}

// SetCredentials replaces the loaded credentials and switches to the usage
// view when they are complete.
func (c *Controller) SetCredentials(creds models.Credentials) {
	c.deliver(update{kind: updateCredentials, session: c.session.Load(), creds: &creds})
}

// ToggleView flips between the usage display and the configuration form.
func (c *Controller) ToggleView() {
	c.deliver(update{kind: updateToggle, session: c.session.Load()})
}

// SetViewMode selects a view.
func (c *Controller) SetViewMode(mode ViewMode) {
	c.deliver(update{kind: updateViewMode, session: c.session.Load(), view: mode})
}

// State returns the current state.
func (c *Controller) State() ClientState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state.clone()
}

// Changes returns a channel receiving each new state. Slow readers miss
// intermediate states, never the latest one.
func (c *Controller) Changes() <-chan ClientState {
	return c.changes
}

// Close tears down the session and stops the update loop.
func (c *Controller) Close() error {
	c.lifecycle.Lock()
	c.closed = true
	c.lifecycle.Unlock()

	c.Teardown()

	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
	<-c.stopped
	return nil
}

func (c *Controller) activeSession() (uint64, bool) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.subs == nil {
		return 0, false
	}
	return c.session.Load(), true
}

// post enqueues an update. It reports false if the controller is closed.
func (c *Controller) post(u update) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.updates <- u:
		return true
	case <-c.done:
		return false
	}
}

// deliver enqueues an update and waits until it has been applied or discarded.
func (c *Controller) deliver(u update) {
	u.applied = make(chan struct{})
	if !c.post(u) {
		return
	}
	select {
	case <-u.applied:
	case <-c.done:
	}
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case u := <-c.updates:
			c.apply(u)
		case <-c.done:
			return
		}
	}
}

func (c *Controller) apply(u update) {
	if u.applied != nil {
		defer close(u.applied)
	}

	if u.session != c.session.Load() {
		logger.Debug("discarding update from stale session", "session", u.session)
		return
	}

	c.stateMu.Lock()
	next := c.state.clone()
	c.stateMu.Unlock()

	switch u.kind {
	case updateReset:
		next = ClientState{Session: u.session, ViewMode: next.ViewMode}
		c.snapshotTouched = false
		c.errorTouched = false
		c.autoRefreshed = false

	case updateDegraded:
		next.Degraded = true

	case updateBootstrap:
		c.applyBootstrap(&next, u)

	case updateSnapshot:
		s := u.snapshot
		next.Snapshot = &s
		next.Error = ""
		next.LastSuccessfulUpdate = u.at
		c.snapshotTouched = true
		c.errorTouched = true

	case updateError:
		next.Error = u.err
		c.errorTouched = true

	case updateToggle:
		next.ViewMode = next.ViewMode.Toggle()

	case updateViewMode:
		next.ViewMode = u.view

	case updateCredentials:
		next.Credentials = u.creds
		if u.creds.Complete() {
			next.ViewMode = ViewUsage
		}
	}

	c.publish(next)
}

// applyBootstrap applies the initial pull. It is a baseline only: a snapshot
// or error written by a push or manual result that arrived first takes
// precedence over the pulled value, and an absent value never clears
// anything. A pushed error does not hide the cached snapshot.
func (c *Controller) applyBootstrap(next *ClientState, u update) {
	b := u.boot

	if b.creds != nil {
		next.Credentials = b.creds
		if b.creds.Complete() {
			next.ViewMode = ViewUsage
		} else {
			next.ViewMode = ViewConfig
		}
	} else if next.Credentials == nil {
		next.ViewMode = ViewConfig
	}

	if ok, isOk := b.usage.(models.OkSnapshot); isOk && (!c.snapshotTouched || next.Snapshot == nil) {
		if !ok.Empty() || next.Snapshot == nil {
			next.Snapshot = &ok
			if !ok.Empty() {
				next.LastSuccessfulUpdate = u.at
			}
		}
	}
	if b.usage == nil && b.err == "" && next.Snapshot == nil && !c.errorTouched {
		empty := models.OkSnapshot{}
		next.Snapshot = &empty
	}

	if !c.errorTouched {
		if es, isErr := b.usage.(models.ErrSnapshot); isErr {
			next.Error = es.Error().Error()
		}
		if b.err != "" {
			next.Error = b.err
		}
	}

	if next.Phase() == PhaseEmpty && !c.autoRefreshed {
		c.autoRefreshed = true
		token := u.session
		logger.Debug("no usage data yet, refreshing once", "session", token)
		go func() {
			if res := <-c.sharedRefresh(token); res.Err != nil {
				logger.Warn("initial refresh failed", "error", res.Err)
			}
		}()
	}
}

func (c *Controller) publish(next ClientState) {
	c.stateMu.Lock()
	c.state = next
	c.stateMu.Unlock()

	select {
	case c.changes <- next.clone():
	default:
		select {
		case <-c.changes:
		default:
		}
		select {
		case c.changes <- next.clone():
		default:
		}
	}
}
