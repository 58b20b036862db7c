package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage alivelock configuration",
	Long:  `View and manage the alivelock configuration file.`,
	Example: `  # Show current configuration
  alivelock config show

  # Create a config file with the defaults
  alivelock config init`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long:  `Display the effective configuration after applying the config file and environment.`,
	Example: `  # Show effective configuration
  alivelock config show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "# Effective configuration (file and environment merged)")
		fmt.Fprintln(out)
		fmt.Fprint(out, cfg.ToTOML())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file location",
	Long:  `Display the path to the configuration file and whether it exists.`,
	Example: `  # Show config file path
  alivelock config path`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GlobalConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}

		exists := "not found"
		if _, err := os.Stat(path); err == nil {
			exists = "exists"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Configuration file location:")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  %s (%s)\n", path, exists)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Priority: %s / %s > config file > defaults\n", config.EnvLogLevel, config.EnvGracePeriod)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Long:  `Create the configuration file filled with the default settings. An existing file is never overwritten.`,
	Example: `  # Create the default config file
  alivelock config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GlobalConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}

		if err := config.WriteDefault(path); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("config file already exists: %s", path)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created config: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(configCmd)
}
