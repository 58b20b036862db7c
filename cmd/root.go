package cmd

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/config"
	"github.com/matt/alivelock/internal/logger"
	"github.com/matt/alivelock/pkg/alivelock"
)

// appConfig holds the loaded configuration (file + environment merged)
var appConfig = config.DefaultConfig()

// verboseFlag forces debug logging
var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "alivelock",
	Short: "Lock files that do not outlive their process",
	Long: `alivelock manages lock files in the per-user runtime directory
($XDG_RUNTIME_DIR) that disappear together with the process holding them.

It allows you to:
  - Hold a named lock for as long as a command runs
  - See which locks are held and by whom
  - Remove lock files left behind by processes that were killed
  - Wait for a lock to be released

Locks are released when the holder exits normally or is stopped with
SIGINT or SIGTERM. A process stopped with SIGKILL leaves its lock file
behind until the next reboot or "alivelock prune".`,
	Example: `  # Run a backup unless one is already running
  alivelock run backup -- restic backup /home

  # Queue behind a running backup instead of failing
  alivelock run --wait backup -- restic backup /home

  # List held locks
  alivelock status

  # Block until the backup lock is released
  alivelock wait backup`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for config subcommand (it handles its own loading)
		if cmd.Name() != "config" && (cmd.Parent() == nil || cmd.Parent().Name() != "config") {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			appConfig = cfg
		}

		lc := appConfig.LoggerConfig()
		if verboseFlag {
			lc.Level = slog.LevelDebug
		}
		logger.Init(lc)

		if !appConfig.Color {
			color.NoColor = true
		}

		alivelock.SetGracePeriod(appConfig.GracePeriod)
		alivelock.InitSignals()
		return nil
	},
}

// Execute runs the command line. The returned error carries the exit code,
// see ExitCode.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}
