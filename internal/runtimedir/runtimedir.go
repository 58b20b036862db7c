// Package runtimedir resolves lock names inside the per-user runtime
// directory announced by the session manager through XDG_RUNTIME_DIR.
// The directory is cleared at least once per boot, which bounds how long an
// orphaned marker can survive. This package never creates directories.
package runtimedir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar names the environment variable holding the runtime directory.
const EnvVar = "XDG_RUNTIME_DIR"

var (
	// ErrNoRuntimeDir means XDG_RUNTIME_DIR is unset or empty.
	ErrNoRuntimeDir = errors.New("no runtime directory")

	// ErrInvalidRuntimeDir means XDG_RUNTIME_DIR is set but not usable as a base path.
	ErrInvalidRuntimeDir = errors.New("invalid runtime directory")

	// ErrInvalidName means the lock name cannot be placed inside the runtime directory.
	ErrInvalidName = errors.New("invalid lock name")
)

// Dir returns the cleaned runtime directory from the environment.
func Dir() (string, error) {
	dir := os.Getenv(EnvVar)
	if dir == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNoRuntimeDir, EnvVar)
	}
	if !filepath.IsAbs(dir) {
		return "", fmt.Errorf("%w: %s=%q is not an absolute path", ErrInvalidRuntimeDir, EnvVar, dir)
	}
	return filepath.Clean(dir), nil
}

// Resolve maps a relative lock name to an absolute path inside Dir.
// Names may contain subdirectories but must stay inside the runtime directory.
func Resolve(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, filepath.FromSlash(name)), nil
}

// ValidateName reports whether name is usable as a lock name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %q must be relative to the runtime directory", ErrInvalidName, name)
	}

	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q escapes the runtime directory", ErrInvalidName, name)
	}
	if strings.HasSuffix(name, "/") || strings.HasSuffix(name, string(filepath.Separator)) {
		return fmt.Errorf("%w: %q names a directory", ErrInvalidName, name)
	}
	return nil
}
