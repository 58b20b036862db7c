package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matt/alivelock/pkg/alivelock"
)

var (
	waitTimeout time.Duration
	waitQuiet   bool
)

var waitCmd = &cobra.Command{
	Use:   "wait NAME...",
	Short: "Wait for lock(s) to be released",
	Long: `Wait for one or more locks to be released.

Blocks until none of the named lock files exist, or until the timeout is
reached (if specified). Returns immediately for locks that are not held.
Exits with status 2 on timeout. Useful for scripting and orchestration.`,
	Example: `  # Wait for a single lock
  alivelock wait backup

  # Wait for several locks
  alivelock wait backup sync

  # Wait with 30 minute timeout
  alivelock wait backup --timeout 30m`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := waitLocks(alivelock.Context(), args, waitTimeout); err != nil {
			return err
		}
		if !waitQuiet {
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s released\n", name)
			}
		}
		return nil
	},
}

func init() {
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "Maximum time to wait (0 = no limit)")
	waitCmd.Flags().BoolVarP(&waitQuiet, "quiet", "q", false, "Print nothing")
	rootCmd.AddCommand(waitCmd)
}
