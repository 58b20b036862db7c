// Package watch waits for lock files to disappear. It lives outside the lock
// core, which never blocks: callers that want to wait for a holder poll from
// here and then make a fresh TryLock attempt.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/matt/alivelock/internal/logger"
)

// DefaultInterval is the polling fallback when none is given.
const DefaultInterval = time.Second

// WaitReleased blocks until no file exists at path, ctx is done, or the
// parent directory cannot be watched or stat'ed. Filesystem events wake it
// up early; the ticker covers filesystems that do not deliver them.
func WaitReleased(ctx context.Context, path string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := logger.ForComponent("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug("fsnotify unavailable, polling only", "error", err)
		watcher = nil
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			log.Debug("failed to watch lock directory, polling only", "dir", filepath.Dir(path), "error", err)
		}
	}

	// Check after the watch is in place so a release in between is not missed.
	if released, err := isReleased(path); err != nil || released {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Debug("watcher error, falling back to polling", "error", err)
			continue
		case <-ticker.C:
		}

		released, err := isReleased(path)
		if err != nil || released {
			return err
		}
	}
}

func isReleased(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}
