//go:build !windows

package detach

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDetached re-executes the current binary with args in a new session,
// so terminal signals aimed at the caller do not reach it.
// Returns the PID of the detached process.
func StartDetached(args []string, logFile string, workingDir string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create log file: %w", err)
	}
	// The child has its own copy of the descriptor once started.
	defer f.Close()

	cmd := exec.Command(executable, args...)
	cmd.Dir = workingDir
	cmd.Stdout = f
	cmd.Stderr = f
	cmd.Stdin = nil

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create a new session
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start detached process: %w", err)
	}

	pid := cmd.Process.Pid
	// Don't wait for the process - it's detached
	_ = cmd.Process.Release()

	return pid, nil
}
