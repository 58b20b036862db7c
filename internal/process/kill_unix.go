//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Terminate sends SIGTERM so the target can run its own cleanup.
func Terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

// Interrupt sends SIGINT, the same signal a terminal sends on Ctrl+C.
func Interrupt(pid int) error {
	return unix.Kill(pid, unix.SIGINT)
}

// ForceKill sends SIGKILL to immediately terminate a process without allowing cleanup.
func ForceKill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// IsRunning checks whether a process exists using signal 0.
// EPERM means the process exists but belongs to someone else.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
