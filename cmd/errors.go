package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/matt/alivelock/pkg/alivelock"
)

// Exit codes shared by all commands.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitTimeout = 2
	ExitBusy    = 3
)

// exitError ends the command with a specific exit code. A nil err exits
// quietly, which is how run passes on the child's exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func timeoutError(format string, args ...any) error {
	return &exitError{code: ExitTimeout, err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, alivelock.ErrAlreadyLocked) {
		return ExitBusy
	}
	return ExitError
}

// PrintError reports err the way every command does. Quiet exit errors
// print nothing.
func PrintError(w io.Writer, err error) {
	var ee *exitError
	if errors.As(err, &ee) && ee.err == nil {
		return
	}
	red := color.New(color.FgRed)
	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}
