package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/lockfile"
)

var pruneForce bool

var pruneCmd = &cobra.Command{
	Use:   "prune [PATTERN]",
	Short: "Remove lock files left behind by dead processes",
	Long: `Remove lock files whose owner process is no longer running.

A process killed with SIGKILL, or one that crashed, cannot remove its lock
file. Such files keep the lock busy until the next reboot clears the runtime
directory. Prune removes them. By default it will prompt for confirmation.
Use --force to skip the confirmation.

Locks held by a running process are never removed.`,
	Example: `  # Remove stale locks (with confirmation)
  alivelock prune

  # Remove stale locks without confirmation
  alivelock prune --force

  # Only look at locks in the myapp directory
  alivelock prune 'myapp/**'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := lockfile.DefaultPattern
		if len(args) == 1 {
			pattern = args[0]
		}

		markers, err := lockfile.Scan(pattern)
		if err != nil {
			return err
		}
		stale := staleMarkers(markers)

		out := cmd.OutOrStdout()
		if len(stale) == 0 {
			fmt.Fprintln(out, "No stale locks to remove.")
			return nil
		}

		// Confirm unless --force is specified
		if !pruneForce {
			fmt.Fprintf(out, "This will remove %d stale lock(s). Are you sure? [y/N] ", len(stale))
			reader := bufio.NewReader(cmd.InOrStdin())
			response, err := reader.ReadString('\n')
			if err != nil && response == "" {
				return fmt.Errorf("failed to read response: %w", err)
			}

			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		removed := 0
		for _, m := range stale {
			ok, err := lockfile.RemoveStale(m)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				continue
			}
			if !ok {
				// Taken over or released since the scan.
				continue
			}
			fmt.Fprintln(out, m.Name)
			removed++
		}

		fmt.Fprintf(out, "Removed %d lock(s).\n", removed)
		return nil
	},
}

func init() {
	pruneCmd.Flags().BoolVarP(&pruneForce, "force", "f", false, "Do not prompt for confirmation")
	rootCmd.AddCommand(pruneCmd)
}
