package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
)

// Subscription pairs a channel with its handler.
type Subscription struct {
	Handler Handler
	Channel Channel
}

// Subscriptions owns the push listeners of one session.
type Subscriptions struct {
	listener  Listener
	disposers []Disposer
	failed    []error
	mu        sync.Mutex
	tornDown  bool
}

// NewSubscriptions creates an empty subscription set.
func NewSubscriptions(listener Listener) *Subscriptions {
	return &Subscriptions{listener: listener}
}

// Attach registers all subscriptions concurrently and returns once every
// registration has resolved. Failed registrations are returned joined; they
// are not fatal and leave the client relying on bootstrap and manual refresh.
func (s *Subscriptions) Attach(ctx context.Context, subs ...Subscription) error {
	var (
		wg   sync.WaitGroup
		emu  sync.Mutex
		errs []error
	)

	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			dispose, err := s.listener.Listen(ctx, sub.Channel, sub.Handler)
			if err != nil {
				err = fmt.Errorf("subscribe %s: %w", sub.Channel, err)
				logger.Warn("push channel unavailable", "channel", sub.Channel, "error", err)
				emu.Lock()
				errs = append(errs, err)
				emu.Unlock()
				return
			}
			s.adopt(dispose)
		}()
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		s.mu.Lock()
		s.failed = append(s.failed, errs...)
		s.mu.Unlock()
	}
	return err
}

// adopt stores a disposer, or runs it right away if teardown already happened.
func (s *Subscriptions) adopt(d Disposer) {
	if d == nil {
		return
	}
	d = disposeOnce(d)

	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		d()
		return
	}
	s.disposers = append(s.disposers, d)
	s.mu.Unlock()
}

// Teardown disposes every listener exactly once. It is safe to call
// repeatedly and concurrently with Attach.
func (s *Subscriptions) Teardown() {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.tornDown = true
	disposers := s.disposers
	s.disposers = nil
	s.mu.Unlock()

	for _, d := range disposers {
		d()
	}
}

// Degraded reports whether any registration failed.
func (s *Subscriptions) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed) > 0
}

// Active returns the number of listeners still attached.
func (s *Subscriptions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.disposers)
}

func disposeOnce(d Disposer) Disposer {
	var once sync.Once
	return func() { once.Do(d) }
}
