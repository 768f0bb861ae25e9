package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/j-veylop/glm-usage-tui/internal/models"
)

func allChannels() []Subscription {
	noop := func(Event) {}
	return []Subscription{
		{Channel: ChannelUsageUpdate, Handler: noop},
		{Channel: ChannelUsageError, Handler: noop},
		{Channel: ChannelVisibilityToggle, Handler: noop},
	}
}

func TestSubscriptions_AttachAndTeardown(t *testing.T) {
	f := newFakeBackend()
	s := NewSubscriptions(f)

	if err := s.Attach(context.Background(), allChannels()...); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if s.Active() != 3 || f.active() != 3 {
		t.Fatalf("Active() = %d, backend = %d; want 3", s.Active(), f.active())
	}
	if s.Degraded() {
		t.Error("Degraded() = true with all channels attached")
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Teardown()
		}()
	}
	wg.Wait()

	if n := f.disposed.Load(); n != 3 {
		t.Errorf("disposed = %d, want 3", n)
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after teardown", s.Active())
	}
}

func TestSubscriptions_PartialFailure(t *testing.T) {
	f := newFakeBackend()
	f.listenErr[ChannelUsageError] = models.ErrChannelUnavailable
	s := NewSubscriptions(f)

	err := s.Attach(context.Background(), allChannels()...)
	if !errors.Is(err, models.ErrChannelUnavailable) {
		t.Fatalf("Attach() error = %v, want ErrChannelUnavailable", err)
	}
	if !strings.Contains(err.Error(), string(ChannelUsageError)) {
		t.Errorf("error %q does not name the channel", err)
	}
	if !s.Degraded() {
		t.Error("Degraded() = false")
	}
	if s.Active() != 2 {
		t.Errorf("Active() = %d, want 2", s.Active())
	}

	s.Teardown()
	if n := f.disposed.Load(); n != 2 {
		t.Errorf("disposed = %d, want 2", n)
	}
}

func TestSubscriptions_AttachAfterTeardown(t *testing.T) {
	f := newFakeBackend()
	s := NewSubscriptions(f)
	s.Teardown()

	if err := s.Attach(context.Background(), allChannels()...); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if n := f.disposed.Load(); n != 3 {
		t.Errorf("disposed = %d, want 3", n)
	}
	if f.active() != 0 {
		t.Errorf("backend listeners = %d, want 0", f.active())
	}
}
