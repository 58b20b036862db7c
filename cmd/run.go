package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/logger"
	"github.com/matt/alivelock/internal/output"
	"github.com/matt/alivelock/internal/process"
	"github.com/matt/alivelock/pkg/alivelock"
)

var (
	runWait    bool
	runTimeout time.Duration
	runPrefix  bool
)

var runCmd = &cobra.Command{
	Use:   "run NAME -- COMMAND [ARGS...]",
	Short: "Run a command while holding a lock",
	Long: `Run a command while holding the named lock.

If the lock is already held the command is not started and alivelock exits
with status 3, or waits for the lock with --wait. Otherwise the command runs
and alivelock exits with its exit status once the lock is released.

SIGINT and SIGTERM are passed on to the command as SIGTERM. The lock is
released after the command has exited, or after the grace period if it does
not.`,
	Example: `  # Run a backup unless one is already running
  alivelock run backup -- restic backup /home

  # Wait up to 30 minutes for the lock
  alivelock run backup --wait --timeout 30m -- restic backup /home

  # Prefix output lines with the lock name
  alivelock run --prefix sync -- rsync -av src/ dst/`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, argv := args[0], args[1:]
		ctx := alivelock.Context()

		lock, err := acquireLock(ctx, name, runWait, runTimeout)
		if err != nil {
			return err
		}
		defer lock.Release()

		code, err := runChild(ctx, cmd, name, argv)
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}

// runChild runs argv to completion and returns its exit code. Cancelling ctx
// sends the child SIGTERM.
func runChild(ctx context.Context, cmd *cobra.Command, name string, argv []string) (int, error) {
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdin = os.Stdin

	var stdout, stderr io.Writer = cmd.OutOrStdout(), cmd.ErrOrStderr()
	if runPrefix {
		var mu sync.Mutex
		pout := output.NewPrefixedWriter(stdout, name, nil, &mu)
		perr := output.NewPrefixedWriter(stderr, name, nil, &mu)
		defer pout.Flush()
		defer perr.Flush()
		stdout, stderr = pout, perr
	}
	c.Stdout = stdout
	c.Stderr = stderr

	c.Cancel = func() error {
		return process.Terminate(c.Process.Pid)
	}
	c.WaitDelay = childWaitDelay(appConfig.GracePeriod)

	log := logger.ForComponent("cmd")
	log.Debug("starting command", "name", name, "argv", argv)

	err := c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := childExitCode(exitErr)
		log.Debug("command exited", "name", name, "code", code)
		return code, nil
	}
	if err != nil && c.ProcessState != nil && ctx.Err() != nil {
		// Exited cleanly after being told to stop.
		return c.ProcessState.ExitCode(), nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to run %s: %w", argv[0], err)
	}
	return 0, nil
}

// noGraceWaitDelay bounds the wait for a child's output when there is no
// grace period; the process is killed by the signal long before it matters.
const noGraceWaitDelay = time.Second

// childWaitDelay is how long a cancelled child may take before it is killed.
// It ends well inside the shutdown grace period so the child is gone before
// our locks are released for us.
func childWaitDelay(grace time.Duration) time.Duration {
	d := grace * 3 / 4
	if d <= 0 {
		return noGraceWaitDelay
	}
	return d
}

// childExitCode reports a child killed by a signal the way shells do.
func childExitCode(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}

func init() {
	runCmd.Flags().BoolVarP(&runWait, "wait", "w", false, "Wait for the lock instead of failing when it is held")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Give up waiting after this long (0 = no limit)")
	runCmd.Flags().BoolVarP(&runPrefix, "prefix", "p", false, "Prefix output lines with the lock name")
	rootCmd.AddCommand(runCmd)
}
