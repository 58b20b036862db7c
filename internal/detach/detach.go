package detach

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogsDir returns the directory where detached holders write their output.
// It lives in the user cache directory, not the runtime directory, so logs
// survive the holder and do not show up as lock files.
func LogsDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get cache directory: %w", err)
	}

	logsDir := filepath.Join(cacheDir, "alivelock", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	return logsDir, nil
}

// LogFilePath generates a log file path for a detached holder of the named lock.
func LogFilePath(lockName string) (string, error) {
	logsDir, err := LogsDir()
	if err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s-%s.log", timestamp, sanitize(lockName))
	return filepath.Join(logsDir, filename), nil
}

// sanitize flattens a lock name into a single path element.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "" || name == "." || name == ".." {
		return "lock"
	}
	return name
}
