package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/lockfile"
)

var (
	statusFormat string
	statusQuiet  bool
	statusStale  bool
)

var statusCmd = &cobra.Command{
	Use:     "status [PATTERN]",
	Aliases: []string{"ls", "list"},
	Short:   "List lock files and their holders",
	Long: `List lock files in $XDG_RUNTIME_DIR together with the process holding them.

PATTERN is a glob relative to the runtime directory and may use ** to match
across directories. A lock is "held" while its owner process is running and
"stale" once the owner is gone without releasing it.`,
	Example: `  # List all locks
  alivelock status

  # Only locks in the myapp directory
  alivelock status 'myapp/**'

  # Only locks whose holder is gone
  alivelock status --stale

  # Output as JSON
  alivelock status --format json`,
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
		if statusStale {
			markers = staleMarkers(markers)
		}

		out := cmd.OutOrStdout()

		if statusFormat == "json" {
			data, err := json.MarshalIndent(markers, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal locks: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if statusQuiet {
			for _, m := range markers {
				fmt.Fprintln(out, m.Name)
			}
			return nil
		}

		if len(markers) == 0 {
			fmt.Fprintln(out, "No locks found.")
			return nil
		}

		printMarkers(out, markers)
		return nil
	},
}

func printMarkers(out io.Writer, markers []lockfile.Marker) {
	nameWidth := len("NAME")
	for _, m := range markers {
		nameWidth = max(nameWidth, len(m.Name))
	}

	bold := color.New(color.Bold)
	bold.Fprintf(out, "%-*s  %-8s  %-6s  %-10s  %s\n", nameWidth, "NAME", "PID", "STATE", "AGE", "COMMAND")

	for _, m := range markers {
		state := color.New(color.FgGreen).Sprintf("%-6s", "held")
		if !m.Alive {
			state = color.New(color.FgRed).Sprintf("%-6s", "stale")
		}
		fmt.Fprintf(out, "%-*s  %-8d  %s  %-10s  %s\n",
			nameWidth, m.Name,
			m.Owner.PID,
			state,
			formatAge(time.Since(m.Owner.AcquiredAt)),
			truncate(m.Owner.Command, 50),
		)
	}
}

func staleMarkers(markers []lockfile.Marker) []lockfile.Marker {
	var stale []lockfile.Marker
	for _, m := range markers {
		if !m.Alive {
			stale = append(stale, m)
		}
	}
	return stale
}

// formatAge renders a duration the way a human reads uptime.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "-"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "", "Output format: json or table (default)")
	statusCmd.Flags().BoolVarP(&statusQuiet, "quiet", "q", false, "Only print lock names")
	statusCmd.Flags().BoolVar(&statusStale, "stale", false, "Only show locks whose holder is gone")
	rootCmd.AddCommand(statusCmd)
}
