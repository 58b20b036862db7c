package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/detach"
	"github.com/matt/alivelock/internal/lockfile"
	"github.com/matt/alivelock/internal/process"
	"github.com/matt/alivelock/internal/runtimedir"
	"github.com/matt/alivelock/pkg/alivelock"
)

// detachStartTimeout bounds how long hold --detach waits for the background
// holder to take the lock.
const detachStartTimeout = 5 * time.Second

var (
	holdDetach  bool
	holdWait    bool
	holdTimeout time.Duration
)

var holdCmd = &cobra.Command{
	Use:   "hold NAME",
	Short: "Hold a lock until interrupted",
	Long: `Hold the named lock until this process receives SIGINT or SIGTERM.

The lock file is created in $XDG_RUNTIME_DIR and removed again when the
holder is stopped. With --detach the holder keeps running in the
background; stop it with "alivelock stop NAME".`,
	Example: `  # Hold a lock in the foreground (Ctrl+C releases it)
  alivelock hold maintenance

  # Hold a lock in the background
  alivelock hold maintenance --detach

  # Take the lock as soon as its current holder lets go
  alivelock hold maintenance --wait --timeout 10m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if holdDetach {
			return holdDetached(cmd, name)
		}

		ctx := alivelock.Context()
		lock, err := acquireLock(ctx, name, holdWait, holdTimeout)
		if err != nil {
			return err
		}
		defer lock.Release()

		fmt.Fprintf(cmd.OutOrStdout(), "Holding %s (pid %d)\n", lock.Path(), os.Getpid())
		<-ctx.Done()
		fmt.Fprintf(cmd.OutOrStdout(), "Releasing %s (%v)\n", lock.Path(), alivelock.Signal())
		return nil
	},
}

func holdDetached(cmd *cobra.Command, name string) error {
	path, err := runtimedir.Resolve(name)
	if err != nil {
		return err
	}
	if !holdWait {
		if owner, err := lockfile.ReadOwner(path); err == nil && process.IsRunning(owner.PID) {
			return fmt.Errorf("%w: %s (pid %d)", alivelock.ErrAlreadyLocked, name, owner.PID)
		}
	}

	logFile, err := detach.LogFilePath(name)
	if err != nil {
		return err
	}

	childArgs := []string{"hold", name}
	if holdWait {
		childArgs = append(childArgs, "--wait", "--timeout", holdTimeout.String())
	}
	if verboseFlag {
		childArgs = append(childArgs, "--verbose")
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	pid, err := detach.StartDetached(childArgs, logFile, wd)
	if err != nil {
		return err
	}

	if holdWait {
		fmt.Fprintf(cmd.OutOrStdout(), "Waiting for %s in background (pid %d)\n", name, pid)
		fmt.Fprintf(cmd.OutOrStdout(), "Log: %s\n", logFile)
		return nil
	}

	if err := waitForHolder(path, pid, detachStartTimeout); err != nil {
		return fmt.Errorf("%w (see %s)", err, logFile)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Holding %s in background (pid %d)\n", path, pid)
	fmt.Fprintf(cmd.OutOrStdout(), "Log: %s\n", logFile)
	return nil
}

// waitForHolder polls until the marker at path names pid as its owner.
func waitForHolder(path string, pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		owner, err := lockfile.ReadOwner(path)
		switch {
		case err == nil && owner.PID == pid:
			return nil
		case err == nil && process.IsRunning(owner.PID):
			return fmt.Errorf("%w: %s (pid %d)", alivelock.ErrAlreadyLocked, path, owner.PID)
		case err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, lockfile.ErrNoOwner):
			return err
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("background holder (pid %d) did not take the lock within %s", pid, timeout)
}

func init() {
	holdCmd.Flags().BoolVarP(&holdDetach, "detach", "d", false, "Hold the lock from a background process")
	holdCmd.Flags().BoolVarP(&holdWait, "wait", "w", false, "Wait for the lock instead of failing when it is held")
	holdCmd.Flags().DurationVar(&holdTimeout, "timeout", 0, "Give up waiting after this long (0 = no limit)")
	rootCmd.AddCommand(holdCmd)
}
