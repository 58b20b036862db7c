//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

// notifySignals registers the channel for interrupt signals.
// On Windows, only os.Interrupt is available (SIGTERM is not supported).
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

// reraise exits with the conventional status for Ctrl+C, since Windows has
// no way to die by a signal.
func reraise(sig os.Signal) {
	os.Exit(ExitCode(sig))
}

// ExitCode is the status used for a process stopped by sig.
func ExitCode(sig os.Signal) int {
	if sig == os.Interrupt {
		return 130
	}
	return 1
}
