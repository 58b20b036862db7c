package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/matt/alivelock/internal/process"
	"github.com/matt/alivelock/internal/runtimedir"
)

// DefaultPattern matches every file below the runtime directory.
const DefaultPattern = "**"

// Marker is a lock file found in the runtime directory.
type Marker struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Owner Owner  `json:"owner"`
	Alive bool   `json:"alive"`
}

// Scan lists marker files below the runtime directory whose names match the
// doublestar pattern. Files without an owner record are skipped, since the
// runtime directory is shared with sockets and other programs' state.
func Scan(pattern string) ([]Marker, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %s", pattern)
	}

	dir, err := runtimedir.Dir()
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	markers := make([]Marker, 0, len(matches))
	for _, name := range matches {
		path := filepath.Join(dir, filepath.FromSlash(name))
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		owner, err := ReadOwner(path)
		if err != nil {
			continue
		}
		markers = append(markers, Marker{
			Name:  name,
			Path:  path,
			Owner: *owner,
			Alive: process.IsRunning(owner.PID),
		})
	}

	sort.Slice(markers, func(i, j int) bool { return markers[i].Name < markers[j].Name })
	return markers, nil
}

// RemoveStale deletes a marker whose owner is gone. The owner record is read
// again right before removal and the file is left alone if a new holder has
// taken it over or the owner came back to life.
func RemoveStale(m Marker) (bool, error) {
	owner, err := ReadOwner(m.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if owner.PID != m.Owner.PID || !owner.AcquiredAt.Equal(m.Owner.AcquiredAt) {
		return false, nil
	}
	if process.IsRunning(owner.PID) {
		return false, nil
	}
	if err := os.Remove(m.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove stale lock file %s: %w", m.Path, err)
	}
	return true, nil
}
