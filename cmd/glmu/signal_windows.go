//go:build windows

package main

// watchToggleSignal is a no-op: Windows has no SIGUSR1.
func watchToggleSignal(func()) func() {
	return func() {}
}
