//go:build windows

package process

import (
	"os"

	"golang.org/x/sys/windows"
)

// Terminate terminates a process on Windows.
// There is no graceful termination signal, so this is the same as ForceKill.
func Terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// Interrupt is Terminate on Windows.
func Interrupt(pid int) error {
	return Terminate(pid)
}

// ForceKill immediately terminates a process on Windows.
func ForceKill(pid int) error {
	return Terminate(pid)
}

// IsRunning reports whether a process with the given PID is alive.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	const stillActive = 259
	return code == stillActive
}
