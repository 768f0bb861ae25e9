//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// watchToggleSignal calls toggle on every SIGUSR1, the external stand-in for
// a tray click. The returned func stops watching.
func watchToggleSignal(toggle func()) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				toggle()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
