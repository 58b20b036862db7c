//go:build !windows

package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// reraiseTimeout is how long to wait for the default action of a re-raised
// signal before falling back to a plain exit.
const reraiseTimeout = 2 * time.Second

// notifySignals registers the channel for SIGINT (Ctrl+C) and SIGTERM, the
// polite stop request sent by kill(1), systemd and container runtimes.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}

// reraise restores the default disposition and sends sig to ourselves, so
// the parent sees a death by signal instead of an exit status.
func reraise(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		os.Exit(1)
	}

	signal.Reset(s)
	if err := unix.Kill(unix.Getpid(), s); err == nil {
		time.Sleep(reraiseTimeout)
	}

	// Still alive: the signal was ignored when we started (nohup and friends).
	os.Exit(ExitCode(s))
}

// ExitCode is the shell convention for a process killed by sig.
func ExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
