// Package alivelock creates lock files that do not outlive their process.
//
// Lock files live in the per-user runtime directory ($XDG_RUNTIME_DIR),
// which the system clears on every boot. They are created atomically and
// removed when the Lock is released, including when the process is stopped
// with SIGINT or SIGTERM after InitSignals.
//
//	func main() {
//	    alivelock.InitSignals()
//
//	    lock, ok, err := alivelock.TryLock("file.lock")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if !ok {
//	        fmt.Println("already running")
//	        return
//	    }
//	    defer lock.Release()
//
//	    // while lock is held, file.lock will not be removed
//	}
//
// Programs that want their own deferred calls to run on a signal watch
// Context and finish main with Exit.
package alivelock

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/matt/alivelock/internal/lockfile"
	"github.com/matt/alivelock/internal/runtimedir"
	"github.com/matt/alivelock/internal/shutdown"
)

// Lock is a held lock file.
type Lock = lockfile.Lock

var (
	// ErrAlreadyLocked is returned by Acquire when another holder is live.
	ErrAlreadyLocked = lockfile.ErrAlreadyLocked

	// ErrNoRuntimeDir means XDG_RUNTIME_DIR is not set.
	ErrNoRuntimeDir = runtimedir.ErrNoRuntimeDir

	// ErrInvalidRuntimeDir means XDG_RUNTIME_DIR is not an absolute path.
	ErrInvalidRuntimeDir = runtimedir.ErrInvalidRuntimeDir

	// ErrInvalidName means a lock name is empty or escapes the runtime directory.
	ErrInvalidName = runtimedir.ErrInvalidName
)

var hookOnce sync.Once

// InitSignals intercepts SIGINT and SIGTERM. On either signal every Lock
// still held is released and the process then dies by that signal. Calling
// it again is a no-op.
//
// Other code calling signal.Notify for the same signals receives them too;
// signal.Ignore or signal.Reset elsewhere undoes the protection.
func InitSignals() {
	registerRelease()
	shutdown.Init()
}

func registerRelease() {
	hookOnce.Do(func() {
		shutdown.OnShutdown(lockfile.ReleaseAll)
	})
}

// TryLock makes one attempt to create the lock file name inside the runtime
// directory. It returns (lock, true, nil) on success and (nil, false, nil)
// when the lock is already held. Any other problem is returned as an error.
func TryLock(name string) (*Lock, bool, error) {
	return lockfile.TryLock(name)
}

// Acquire is TryLock reporting the busy case as ErrAlreadyLocked.
func Acquire(name string) (*Lock, error) {
	return lockfile.Acquire(name)
}

// Context is cancelled when InitSignals has intercepted a signal.
func Context() context.Context {
	return shutdown.Context()
}

// Signal returns the signal InitSignals intercepted, or nil.
func Signal() os.Signal {
	return shutdown.Signal()
}

// SetGracePeriod lets a signalled program unwind on its own for up to d
// before its locks are released for it. The default is zero.
func SetGracePeriod(d time.Duration) {
	shutdown.SetGracePeriod(d)
}

// Exit releases every lock still held and ends the process. After an
// intercepted signal the process dies by that signal; otherwise it exits
// with code.
func Exit(code int) {
	registerRelease()
	shutdown.Exit(code)
}
