package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/alivelock/internal/config"
	"github.com/matt/alivelock/internal/lockfile"
	"github.com/matt/alivelock/internal/runtimedir"
	"github.com/matt/alivelock/internal/version"
	"github.com/matt/alivelock/pkg/alivelock"
)

// deadPID is above Linux's maximum pid_max, so no process can have it.
const deadPID = 99999999

// setupEnv isolates a test from the user's runtime, config and cache dirs.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runtime := filepath.Join(dir, "runtime")
	if err := os.Mkdir(runtime, 0700); err != nil {
		t.Fatal(err)
	}
	t.Setenv(runtimedir.EnvVar, runtime)
	t.Setenv(config.EnvConfigPath, filepath.Join(dir, "config.toml"))
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvGracePeriod, "")
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	color.NoColor = true
	return runtime
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores flag variables, which outlive a single Execute.
func resetFlags() {
	verboseFlag = false
	holdDetach, holdWait, holdTimeout = false, false, 0
	runWait, runTimeout, runPrefix = false, 0, false
	statusFormat, statusQuiet, statusStale = "", false, false
	pruneForce = false
	waitTimeout, waitQuiet = 0, false
	stopForce, stopWait, stopTimeout = false, false, 0
	doctorFormat, doctorCheck = "", ""
	versionShort, versionFormat = false, ""
	if f := rootCmd.Flags().Lookup("version"); f != nil {
		_ = f.Value.Set("false")
		f.Changed = false
	}
}

func writeStaleMarker(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := fmt.Sprintf(`{"kind":%q,"pid":%d,"acquired_at":%q}`,
		lockfile.OwnerKind, deadPID, time.Now().UTC().Format(time.RFC3339Nano))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "alivelock" {
		t.Errorf("Root command Use should be 'alivelock', got '%s'", rootCmd.Use)
	}

	// Verify subcommands are registered
	expectedCommands := []string{"hold", "run", "status", "prune", "wait", "stop", "doctor", "config", "version", "completion"}
	for _, name := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Use == name || strings.HasPrefix(cmd.Use, name+" ") {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected subcommand '%s' not found", name)
		}
	}
}

func TestStatusAliases(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"ls"})
	if err != nil {
		t.Fatalf("Find(ls) failed: %v", err)
	}
	if cmd != statusCmd {
		t.Errorf("ls should resolve to status, got %s", cmd.Name())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitError},
		{"busy", fmt.Errorf("%w: x", alivelock.ErrAlreadyLocked), ExitBusy},
		{"timeout", timeoutError("timed out"), ExitTimeout},
		{"child", &exitError{code: 42}, 42},
		{"wrapped", fmt.Errorf("outer: %w", &exitError{code: 5}), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	PrintError(&buf, errors.New("boom"))
	if buf.String() != "Error: boom\n" {
		t.Errorf("PrintError wrote %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, &exitError{code: 3})
	if buf.Len() != 0 {
		t.Errorf("quiet exit error should print nothing, got %q", buf.String())
	}
}

func TestInvalidConfigFails(t *testing.T) {
	setupEnv(t)
	if err := os.WriteFile(os.Getenv(config.EnvConfigPath), []byte(`grace_period = "soon"`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(t, "", "status")
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("expected a config error, got %v", err)
	}

	// config path still works so the file can be found and fixed.
	out, err := executeCommand(t, "", "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(out, "exists") {
		t.Errorf("config path output missing existence: %s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	setupEnv(t)

	out, err := executeCommand(t, "", "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "Created config") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := executeCommand(t, "", "config", "init"); err == nil {
		t.Error("second config init should refuse to overwrite")
	}

	t.Setenv(config.EnvGracePeriod, "750ms")
	out, err = executeCommand(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, `grace_period = "750ms"`) {
		t.Errorf("config show should reflect the environment:\n%s", out)
	}
}

func TestVersionShort(t *testing.T) {
	setupEnv(t)

	out, err := executeCommand(t, "", "version", "--short")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Error("version --short printed nothing")
	}

	out, err = executeCommand(t, "", "version", "--format", "json")
	if err != nil {
		t.Fatalf("version --format json failed: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Errorf("version json is invalid: %v\n%s", err, out)
	}
}

func TestCompletionScripts(t *testing.T) {
	setupEnv(t)

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := executeCommand(t, "", "completion", shell)
		if err != nil {
			t.Errorf("completion %s failed: %v", shell, err)
			continue
		}
		if !strings.Contains(out, "alivelock") {
			t.Errorf("completion %s does not mention alivelock", shell)
		}
	}
}

func TestCompleteLockName(t *testing.T) {
	dir := setupEnv(t)
	writeStaleMarker(t, dir, "backup.lock")
	writeStaleMarker(t, dir, "sync.lock")

	names, directive := completeLockName(holdCmd, nil, "ba")
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v, want NoFileComp", directive)
	}
	if len(names) != 1 || names[0] != "backup.lock" {
		t.Errorf("completions = %v, want [backup.lock]", names)
	}
}

func TestPrintVersion(t *testing.T) {
	color.NoColor = true
	info := version.Info{Version: "1.2.3", Commit: "abc1234", BuildDate: "2026-01-01", GoVersion: "go1.24", OS: "linux", Arch: "amd64"}

	var buf bytes.Buffer
	if err := printVersion(&buf, info, ""); err != nil {
		t.Fatalf("printVersion failed: %v", err)
	}
	for _, want := range []string{"alivelock 1.2.3", "Commit:     abc1234", "2026-01-01", "linux/amd64"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("text output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := printVersion(&buf, info, "short"); err != nil || buf.String() != "1.2.3\n" {
		t.Errorf("short output = %q, err %v", buf.String(), err)
	}

	if err := printVersion(&buf, info, "yaml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestVersionFlag(t *testing.T) {
	setupEnv(t)

	out, err := executeCommand(t, "", "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if strings.TrimSpace(out) != rootCmd.Version {
		t.Errorf("--version printed %q, want %q", out, rootCmd.Version)
	}
}
