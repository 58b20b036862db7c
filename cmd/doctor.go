package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/config"
	"github.com/matt/alivelock/internal/detach"
	"github.com/matt/alivelock/internal/lockfile"
	"github.com/matt/alivelock/internal/runtimedir"
)

var (
	doctorFormat string
	doctorCheck  string
)

// CheckResult represents the result of a single diagnostic check.
type CheckResult struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"` // "pass", "warn", "fail"
	Details     []string `json:"details"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DoctorReport contains all check results and a summary.
type DoctorReport struct {
	Checks  []CheckResult `json:"checks"`
	Summary struct {
		Passed   int `json:"passed"`
		Warnings int `json:"warnings"`
		Failed   int `json:"failed"`
	} `json:"summary"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system health and diagnose issues",
	Long: `Run diagnostic checks to identify problems that keep locks from working.

Checks performed:
- Runtime: $XDG_RUNTIME_DIR is set, private and writable
- Configuration: Validates the config file and settings
- Locks: Reports held locks and lock files left by dead processes
- Disk: Reports the size of detached holder logs`,
	Example: `  # Run all checks
  alivelock doctor

  # Output as JSON
  alivelock doctor --format json

  # Check only the runtime directory
  alivelock doctor --check runtime`,
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := []func() CheckResult{
			checkRuntimeDir,
			checkConfig,
			checkLocks,
			checkDisk,
		}

		// Filter to specific check if requested
		if doctorCheck != "" {
			switch doctorCheck {
			case "runtime":
				checks = []func() CheckResult{checkRuntimeDir}
			case "config":
				checks = []func() CheckResult{checkConfig}
			case "locks":
				checks = []func() CheckResult{checkLocks}
			case "disk":
				checks = []func() CheckResult{checkDisk}
			default:
				return fmt.Errorf("unknown check: %s (valid: runtime, config, locks, disk)", doctorCheck)
			}
		}

		report := runChecks(checks)

		if doctorFormat == "json" {
			output, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
		} else {
			printDoctorReport(cmd.OutOrStdout(), report)
		}

		if report.Summary.Failed > 0 {
			return &exitError{code: ExitError}
		}
		return nil
	},
}

func runChecks(checks []func() CheckResult) DoctorReport {
	report := DoctorReport{}
	for _, check := range checks {
		result := check()
		report.Checks = append(report.Checks, result)
		switch result.Status {
		case "pass":
			report.Summary.Passed++
		case "warn":
			report.Summary.Warnings++
		case "fail":
			report.Summary.Failed++
		}
	}
	return report
}

func checkRuntimeDir() CheckResult {
	result := CheckResult{Name: "Runtime directory", Status: "pass"}

	dir, err := runtimedir.Dir()
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, err.Error())
		result.Suggestions = append(result.Suggestions,
			"Log in through a session manager that sets XDG_RUNTIME_DIR (systemd-logind, elogind)",
			fmt.Sprintf("Or export %s=/run/user/$(id -u)", runtimedir.EnvVar))
		return result
	}
	result.Details = append(result.Details, fmt.Sprintf("%s: %s", runtimedir.EnvVar, dir))

	info, err := os.Stat(dir)
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Cannot access directory: %v", err))
		return result
	}
	if !info.IsDir() {
		result.Status = "fail"
		result.Details = append(result.Details, "Not a directory")
		return result
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		result.Status = "warn"
		result.Details = append(result.Details, fmt.Sprintf("Permissions: %#o (other users can see lock files)", perm))
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("chmod 700 %s", dir))
	}

	// Take and release a real lock to prove the directory works end to end.
	scratch := fmt.Sprintf(".alivelock-doctor-%d", os.Getpid())
	lock, ok, err := lockfile.TryLock(scratch)
	switch {
	case err != nil:
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Cannot create lock files: %v", err))
	case !ok:
		result.Status = "warn"
		result.Details = append(result.Details, fmt.Sprintf("Scratch lock %s is already held", scratch))
	default:
		lock.Release()
		if _, err := os.Lstat(lock.Path()); !errors.Is(err, fs.ErrNotExist) {
			result.Status = "fail"
			result.Details = append(result.Details, "Scratch lock file was not removed on release")
		} else {
			result.Details = append(result.Details, "Lock files can be created and removed")
		}
	}

	return result
}

func checkConfig() CheckResult {
	result := CheckResult{Name: "Configuration", Status: "pass"}

	path, err := config.GlobalConfigPath()
	if err != nil {
		result.Status = "warn"
		result.Details = append(result.Details, fmt.Sprintf("Could not determine config path: %v", err))
		return result
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		result.Details = append(result.Details, fmt.Sprintf("Config file: %s (not found, using defaults)", path))
	} else {
		result.Details = append(result.Details, fmt.Sprintf("Config file: %s", path))
	}

	cfg, err := config.Load()
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, err.Error())
		result.Suggestions = append(result.Suggestions,
			"Fix the file, or move it aside and run: alivelock config init")
		return result
	}

	result.Details = append(result.Details,
		fmt.Sprintf("Grace period: %s", cfg.GracePeriod),
		fmt.Sprintf("Log level: %s (%s)", cfg.LogLevel, cfg.LogFormat))
	return result
}

func checkLocks() CheckResult {
	result := CheckResult{Name: "Locks", Status: "pass"}

	markers, err := lockfile.Scan(lockfile.DefaultPattern)
	if err != nil {
		result.Status = "warn"
		result.Details = append(result.Details, fmt.Sprintf("Could not scan locks: %v", err))
		return result
	}

	stale := staleMarkers(markers)
	result.Details = append(result.Details, fmt.Sprintf("Held: %d", len(markers)-len(stale)))

	if len(stale) > 0 {
		result.Status = "warn"
		result.Details = append(result.Details, fmt.Sprintf("Stale: %d (owner no longer running)", len(stale)))
		for _, m := range stale {
			result.Details = append(result.Details, fmt.Sprintf("  %s (pid %d)", m.Name, m.Owner.PID))
		}
		result.Suggestions = append(result.Suggestions, "Remove stale locks: alivelock prune")
	}

	return result
}

func checkDisk() CheckResult {
	result := CheckResult{Name: "Disk", Status: "pass"}

	logsDir, err := detach.LogsDir()
	if err != nil {
		result.Status = "warn"
		result.Details = append(result.Details, fmt.Sprintf("Could not determine logs directory: %v", err))
		return result
	}

	var size int64
	var count int
	_ = filepath.WalkDir(logsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
			count++
		}
		return nil
	})

	result.Details = append(result.Details,
		fmt.Sprintf("Logs directory: %s", logsDir),
		fmt.Sprintf("Detached holder logs: %d (%s)", count, formatBytes(size)))

	if size > 100*1024*1024 {
		result.Status = "warn"
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Remove old logs: rm %s/*.log", logsDir))
	}

	return result
}

func printDoctorReport(out io.Writer, report DoctorReport) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	dim := color.New(color.Faint)

	bold.Fprintln(out, "alivelock doctor")
	fmt.Fprintln(out, "================")
	fmt.Fprintln(out)

	for _, check := range report.Checks {
		// Status icon
		switch check.Status {
		case "pass":
			green.Fprint(out, "✓ ")
		case "warn":
			yellow.Fprint(out, "⚠ ")
		case "fail":
			red.Fprint(out, "✗ ")
		}

		bold.Fprintln(out, check.Name)

		for _, detail := range check.Details {
			fmt.Fprintf(out, "  %s\n", detail)
		}

		if len(check.Suggestions) > 0 {
			fmt.Fprintln(out)
			dim.Fprintln(out, "  Suggestion:")
			for _, suggestion := range check.Suggestions {
				fmt.Fprintf(out, "    %s\n", suggestion)
			}
		}

		fmt.Fprintln(out)
	}

	// Summary
	if report.Summary.Failed > 0 {
		red.Fprintf(out, "%d checks failed", report.Summary.Failed)
		if report.Summary.Warnings > 0 {
			fmt.Fprintf(out, ", %d warnings", report.Summary.Warnings)
		}
		fmt.Fprintln(out)
	} else if report.Summary.Warnings > 0 {
		yellow.Fprintf(out, "%d warnings\n", report.Summary.Warnings)
	} else {
		green.Fprintln(out, "All checks passed!")
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "", "Output format: json or table (default)")
	doctorCmd.Flags().StringVar(&doctorCheck, "check", "", "Run specific check only (runtime, config, locks, disk)")
	rootCmd.AddCommand(doctorCmd)
}
