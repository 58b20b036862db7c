package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/matt/alivelock/internal/logger"
	"github.com/matt/alivelock/internal/runtimedir"
)

// ErrAlreadyLocked indicates the marker exists, so another holder is live.
var ErrAlreadyLocked = errors.New("lock already held")

// Lock is a held marker file. Only the Lock returned by a successful
// TryLock removes the file, and only through Release.
type Lock struct {
	path       string
	acquiredAt time.Time
	once       sync.Once
}

// live tracks locks that have not been released yet so the shutdown path can
// release them. It never decides who holds a lock; O_EXCL does that.
var (
	liveMu sync.Mutex
	live   = make(map[*Lock]struct{})
)

// removeFile is os.Remove, replaceable in tests.
var removeFile = os.Remove

// TryLock makes a single non-blocking attempt to take the lock called name
// inside the runtime directory.
//
// It returns (lock, true, nil) when the marker was created, (nil, false, nil)
// when another holder already has it, and a non-nil error for everything
// else: unset runtime directory, bad name, permissions, missing parent
// directory and so on.
func TryLock(name string) (*Lock, bool, error) {
	path, err := runtimedir.Resolve(name)
	if err != nil {
		return nil, false, err
	}
	return TryLockPath(path)
}

// TryLockPath is TryLock for an already resolved absolute path.
func TryLockPath(path string) (*Lock, bool, error) {
	// Holding liveMu across the create means ReleaseAll either waits for
	// this lock to be tracked or runs before the file exists.
	liveMu.Lock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		liveMu.Unlock()
		if errors.Is(err, fs.ErrExist) {
			logger.ForComponent("lockfile").Debug("lock busy", "path", path)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}
	l := &Lock{path: path, acquiredAt: time.Now()}
	live[l] = struct{}{}
	liveMu.Unlock()

	// Best-effort: the owner record only helps status and prune.
	if err := writeOwner(f, l.acquiredAt); err != nil {
		logger.ForComponent("lockfile").Debug("failed to write owner record", "path", path, "error", err)
	}
	if err := f.Close(); err != nil {
		logger.ForComponent("lockfile").Debug("failed to close lock file", "path", path, "error", err)
	}

	logger.ForComponent("lockfile").Debug("lock acquired", "path", path)
	return l, true, nil
}

// Acquire is TryLock with the busy outcome reported as ErrAlreadyLocked.
func Acquire(name string) (*Lock, error) {
	l, ok, err := TryLock(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, name)
	}
	return l, nil
}

// Path returns the absolute path of the marker file.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// AcquiredAt returns when the marker was created.
func (l *Lock) AcquiredAt() time.Time {
	if l == nil {
		return time.Time{}
	}
	return l.acquiredAt
}

// Release removes the marker file. It is safe to call more than once and
// from several goroutines; only the first call does anything. Failures are
// logged, never returned, because Release runs on cleanup paths.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		// Stay tracked until the file is gone, so a ReleaseAll racing this
		// call waits on once instead of skipping the lock.
		defer func() {
			liveMu.Lock()
			delete(live, l)
			liveMu.Unlock()
		}()

		err := removeFile(l.path)
		switch {
		case err == nil:
			logger.ForComponent("lockfile").Debug("lock released", "path", l.path)
		case errors.Is(err, fs.ErrNotExist):
			logger.ForComponent("lockfile").Debug("lock file already removed", "path", l.path)
		default:
			logger.ForComponent("lockfile").Warn("failed to remove lock file", "path", l.path, "error", err)
		}
	})
}

// ReleaseAll releases every lock this process still holds.
func ReleaseAll() {
	liveMu.Lock()
	locks := make([]*Lock, 0, len(live))
	for l := range live {
		locks = append(locks, l)
	}
	liveMu.Unlock()

	for _, l := range locks {
		l.Release()
	}
}

// Held returns the paths of locks this process still holds.
func Held() []string {
	liveMu.Lock()
	defer liveMu.Unlock()

	paths := make([]string, 0, len(live))
	for l := range live {
		paths = append(paths, l.path)
	}
	return paths
}
