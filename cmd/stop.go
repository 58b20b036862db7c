package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/lockfile"
	"github.com/matt/alivelock/internal/process"
	"github.com/matt/alivelock/internal/runtimedir"
	"github.com/matt/alivelock/pkg/alivelock"
)

var (
	stopForce   bool
	stopWait    bool
	stopTimeout time.Duration
)

var stopCmd = &cobra.Command{
	Use:   "stop NAME",
	Short: "Ask the holder of a lock to release it",
	Long: `Send SIGTERM to the process holding the named lock.

A holder that intercepts signals releases its lock and exits. With --force
the holder is killed with SIGKILL instead and its lock file is removed on
its behalf.`,
	Example: `  # Stop a background holder
  alivelock stop maintenance

  # Stop it and wait until the lock is released
  alivelock stop maintenance --wait --timeout 30s

  # Kill a holder that does not respond
  alivelock stop maintenance --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		path, err := runtimedir.Resolve(name)
		if err != nil {
			return err
		}

		owner, err := lockfile.ReadOwner(path)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("lock %s is not held", name)
		}
		if err != nil {
			return err
		}
		if !process.IsRunning(owner.PID) {
			return fmt.Errorf("holder of %s (pid %d) is gone, use prune to remove the lock file", name, owner.PID)
		}

		if stopForce {
			return forceStop(cmd, name, path, owner)
		}

		if err := process.Terminate(owner.PID); err != nil {
			return fmt.Errorf("failed to stop pid %d: %w", owner.PID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to %d (holder of %s)\n", owner.PID, name)

		if !stopWait {
			return nil
		}
		if err := waitLocks(alivelock.Context(), []string{name}, stopTimeout); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s released\n", name)
		return nil
	},
}

func forceStop(cmd *cobra.Command, name, path string, owner *lockfile.Owner) error {
	if err := process.ForceKill(owner.PID); err != nil {
		return fmt.Errorf("failed to kill pid %d: %w", owner.PID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Killed %d (holder of %s)\n", owner.PID, name)

	deadline := time.Now().Add(detachStartTimeout)
	for process.IsRunning(owner.PID) {
		if time.Now().After(deadline) {
			return fmt.Errorf("pid %d is still running after SIGKILL", owner.PID)
		}
		time.Sleep(50 * time.Millisecond)
	}

	removed, err := lockfile.RemoveStale(lockfile.Marker{Name: name, Path: path, Owner: *owner})
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", path)
	}
	return nil
}

func init() {
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill the holder with SIGKILL and remove its lock file")
	stopCmd.Flags().BoolVarP(&stopWait, "wait", "w", false, "Wait until the lock is released")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "Maximum time to wait (0 = no limit)")
	rootCmd.AddCommand(stopCmd)
}
