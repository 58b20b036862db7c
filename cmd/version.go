package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/version"
)

var (
	versionShort  bool
	versionFormat string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version number, commit hash, build date, and runtime information for alivelock.`,
	Example: `  # Show full version information
  alivelock version

  # Show only version number (same as alivelock --version)
  alivelock version --short

  # Output as JSON
  alivelock version --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := versionFormat
		if versionShort {
			format = "short"
		}
		return printVersion(cmd.OutOrStdout(), version.GetInfo(), format)
	},
}

func printVersion(out io.Writer, info version.Info, format string) error {
	switch format {
	case "short":
		fmt.Fprintln(out, info.Version)
	case "json":
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal version info: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "", "text":
		bold := color.New(color.Bold)
		bold.Fprintf(out, "alivelock %s\n", info.Version)
		rows := [][2]string{
			{"Commit", info.Commit},
			{"Built", info.BuildDate},
			{"Go version", info.GoVersion},
			{"OS/Arch", info.OS + "/" + info.Arch},
		}
		for _, row := range rows {
			fmt.Fprintf(out, "  %-11s %s\n", row[0]+":", row[1])
		}
	default:
		return fmt.Errorf("unknown format: %s (valid: text, json)", format)
	}
	return nil
}

func init() {
	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "Print only the version number")
	versionCmd.Flags().StringVar(&versionFormat, "format", "", "Output format: json or text (default)")

	rootCmd.Version = version.GetInfo().Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(versionCmd)
}
