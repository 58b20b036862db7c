package lockfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matt/alivelock/internal/runtimedir"
)

// setupRuntimeDir points XDG_RUNTIME_DIR at a fresh temp directory.
func setupRuntimeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(runtimedir.EnvVar, dir)
	return dir
}

func TestTryLockFreshPath(t *testing.T) {
	dir := setupRuntimeDir(t)

	lock, ok, err := TryLock("file.lock")
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !ok || lock == nil {
		t.Fatalf("TryLock on a fresh path should acquire, got ok=%v lock=%v", ok, lock)
	}
	defer lock.Release()

	want := filepath.Join(dir, "file.lock")
	if lock.Path() != want {
		t.Errorf("Path() = %q, want %q", lock.Path(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("marker file should exist after TryLock: %v", err)
	}
	if lock.AcquiredAt().IsZero() {
		t.Error("AcquiredAt should be set")
	}
}

func TestTryLockBusyLeavesFileUntouched(t *testing.T) {
	setupRuntimeDir(t)

	first, ok, err := TryLock("file.lock")
	if err != nil || !ok {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}
	defer first.Release()

	before, err := os.ReadFile(first.Path())
	if err != nil {
		t.Fatalf("failed to read marker: %v", err)
	}
	beforeInfo, err := os.Stat(first.Path())
	if err != nil {
		t.Fatalf("failed to stat marker: %v", err)
	}

	second, ok, err := TryLock("file.lock")
	if err != nil {
		t.Fatalf("second TryLock should report busy, not an error: %v", err)
	}
	if ok || second != nil {
		t.Fatalf("second TryLock should be busy, got ok=%v lock=%v", ok, second)
	}

	after, err := os.ReadFile(first.Path())
	if err != nil {
		t.Fatalf("marker should still exist: %v", err)
	}
	if string(after) != string(before) {
		t.Errorf("marker content changed: %q -> %q", before, after)
	}
	afterInfo, _ := os.Stat(first.Path())
	if !afterInfo.ModTime().Equal(beforeInfo.ModTime()) {
		t.Errorf("marker mtime changed: %v -> %v", beforeInfo.ModTime(), afterInfo.ModTime())
	}
}

func TestAcquireReleaseAcquire(t *testing.T) {
	setupRuntimeDir(t)

	lock, ok, err := TryLock("cycle.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	path := lock.Path()
	lock.Release()

	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("marker should be gone after Release, stat err = %v", err)
	}

	again, ok, err := TryLock("cycle.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock after Release: ok=%v err=%v", ok, err)
	}
	again.Release()
}

func TestAcquireReportsErrAlreadyLocked(t *testing.T) {
	setupRuntimeDir(t)

	lock, err := Acquire("app.lock")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	_, err = Acquire("app.lock")
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("second Acquire error = %v, want ErrAlreadyLocked", err)
	}
}

func TestTryLockWithoutRuntimeDir(t *testing.T) {
	t.Setenv(runtimedir.EnvVar, "")

	for _, name := range []string{"file.lock", "app/file.lock", "x"} {
		lock, ok, err := TryLock(name)
		if err == nil {
			t.Fatalf("TryLock(%q) should fail without a runtime dir", name)
		}
		if ok || lock != nil {
			t.Errorf("TryLock(%q) returned a lock on failure", name)
		}
		if !errors.Is(err, runtimedir.ErrNoRuntimeDir) {
			t.Errorf("TryLock(%q) error = %v, want ErrNoRuntimeDir", name, err)
		}
		if errors.Is(err, ErrAlreadyLocked) {
			t.Errorf("TryLock(%q) error must not look busy", name)
		}
	}
}

func TestTryLockMissingParentIsIOError(t *testing.T) {
	dir := setupRuntimeDir(t)

	lock, ok, err := TryLock("missing/dir/file.lock")
	if err == nil {
		lock.Release()
		t.Fatal("TryLock under a missing directory should fail")
	}
	if ok {
		t.Error("ok should be false on error")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist in chain", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "missing")); !errors.Is(statErr, fs.ErrNotExist) {
		t.Error("TryLock must not create parent directories")
	}
}

func TestTryLockMissingRuntimeDirIsIOError(t *testing.T) {
	t.Setenv(runtimedir.EnvVar, filepath.Join(t.TempDir(), "gone"))

	_, ok, err := TryLock("file.lock")
	if err == nil || ok {
		t.Fatalf("TryLock in a missing runtime dir: ok=%v err=%v", ok, err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist in chain", err)
	}
}

func TestTryLockPermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	dir := setupRuntimeDir(t)
	ro := filepath.Join(dir, "ro")
	if err := os.Mkdir(ro, 0500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(ro, 0700)

	_, ok, err := TryLock("ro/file.lock")
	if err == nil || ok {
		t.Fatalf("TryLock in a read-only dir: ok=%v err=%v", ok, err)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("error = %v, want fs.ErrPermission in chain", err)
	}
}

func TestTryLockSubdirectory(t *testing.T) {
	dir := setupRuntimeDir(t)
	if err := os.Mkdir(filepath.Join(dir, "app"), 0700); err != nil {
		t.Fatal(err)
	}

	lock, ok, err := TryLock("app/instance.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer lock.Release()

	if lock.Path() != filepath.Join(dir, "app", "instance.lock") {
		t.Errorf("unexpected path %q", lock.Path())
	}
}

func TestReleaseAfterExternalRemoval(t *testing.T) {
	setupRuntimeDir(t)

	lock, ok, err := TryLock("external.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	if err := os.Remove(lock.Path()); err != nil {
		t.Fatalf("failed to remove marker: %v", err)
	}

	// Must not panic.
	lock.Release()
	lock.Release()
}

func TestReleaseNil(t *testing.T) {
	var lock *Lock
	lock.Release()
	if lock.Path() != "" {
		t.Error("nil lock should have an empty path")
	}
}

func TestReleaseOnlyRemovesOnce(t *testing.T) {
	setupRuntimeDir(t)

	lock, ok, err := TryLock("once.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	lock.Release()

	// A new holder takes the name; releasing the stale handle again must not
	// delete the new holder's marker.
	next, ok, err := TryLock("once.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock after release: ok=%v err=%v", ok, err)
	}
	defer next.Release()

	lock.Release()
	if _, err := os.Stat(next.Path()); err != nil {
		t.Errorf("second Release of an old handle removed the new marker: %v", err)
	}
}

func TestReleaseAll(t *testing.T) {
	setupRuntimeDir(t)

	var locks []*Lock
	for _, name := range []string{"a.lock", "b.lock", "c.lock"} {
		l, ok, err := TryLock(name)
		if err != nil || !ok {
			t.Fatalf("TryLock(%s): ok=%v err=%v", name, ok, err)
		}
		locks = append(locks, l)
	}

	if got := len(Held()); got < 3 {
		t.Fatalf("Held() = %d locks, want at least 3", got)
	}

	ReleaseAll()

	for _, l := range locks {
		if _, err := os.Stat(l.Path()); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s should be removed by ReleaseAll", l.Path())
		}
	}
	if got := len(Held()); got != 0 {
		t.Errorf("Held() = %d after ReleaseAll, want 0", got)
	}

	// Deferred releases after ReleaseAll are no-ops.
	for _, l := range locks {
		l.Release()
	}
}

func TestConcurrentTryLockSingleWinner(t *testing.T) {
	setupRuntimeDir(t)

	const workers = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		busy    atomic.Int32
		start   = make(chan struct{})
		mu      sync.Mutex
		held    []*Lock
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			l, ok, err := TryLock("race.lock")
			if err != nil {
				t.Errorf("TryLock error: %v", err)
				return
			}
			if ok {
				winners.Add(1)
				mu.Lock()
				held = append(held, l)
				mu.Unlock()
			} else {
				busy.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("got %d winners, want exactly 1", winners.Load())
	}
	if busy.Load() != workers-1 {
		t.Errorf("got %d busy results, want %d", busy.Load(), workers-1)
	}
	for _, l := range held {
		l.Release()
	}
}

func TestOwnerRecord(t *testing.T) {
	setupRuntimeDir(t)

	lock, ok, err := TryLock("owner.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer lock.Release()

	owner, err := ReadOwner(lock.Path())
	if err != nil {
		t.Fatalf("ReadOwner failed: %v", err)
	}
	if owner.Kind != OwnerKind {
		t.Errorf("owner kind = %q, want %q", owner.Kind, OwnerKind)
	}
	if owner.PID != os.Getpid() {
		t.Errorf("owner PID = %d, want %d", owner.PID, os.Getpid())
	}
	if time.Since(owner.AcquiredAt) > time.Minute {
		t.Errorf("owner AcquiredAt looks wrong: %v", owner.AcquiredAt)
	}
}

func TestReadOwnerForeignFiles(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"plain pid", "1234\n"},
		{"zero pid", `{"kind":"alivelock","pid":0,"acquired_at":"2024-01-02T03:04:05Z"}`},
		{"no kind", `{"pid":1234,"acquired_at":"2024-01-02T03:04:05Z"}`},
		{"zero time", `{"kind":"alivelock","pid":1234}`},
		{"extra fields", `{"kind":"alivelock","pid":1234,"acquired_at":"2024-01-02T03:04:05Z","socket":"/run/x.sock"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadOwner(path); !errors.Is(err, ErrNoOwner) {
				t.Errorf("ReadOwner(%q) error = %v, want ErrNoOwner", tt.content, err)
			}
		})
	}
}

func TestReleaseAllWaitsForReleaseInFlight(t *testing.T) {
	setupRuntimeDir(t)

	lock, ok, err := TryLock("inflight.lock")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	removing := make(chan struct{})
	proceed := make(chan struct{})
	removeFile = func(path string) error {
		close(removing)
		<-proceed
		return os.Remove(path)
	}
	defer func() { removeFile = os.Remove }()

	released := make(chan struct{})
	go func() {
		lock.Release()
		close(released)
	}()
	<-removing

	// The deferred release is mid-deletion; the shutdown path must still see it.
	if got := Held(); len(got) != 1 || got[0] != lock.Path() {
		t.Fatalf("Held() = %v during release, want [%s]", got, lock.Path())
	}

	releasedAll := make(chan struct{})
	go func() {
		ReleaseAll()
		close(releasedAll)
	}()

	select {
	case <-releasedAll:
		t.Fatal("ReleaseAll returned while the marker was still on disk")
	case <-time.After(100 * time.Millisecond):
	}

	close(proceed)
	<-released
	select {
	case <-releasedAll:
	case <-time.After(2 * time.Second):
		t.Fatal("ReleaseAll did not return after the release finished")
	}

	if _, err := os.Stat(lock.Path()); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("marker should be gone, stat err = %v", err)
	}
	if got := len(Held()); got != 0 {
		t.Errorf("Held() = %d after release, want 0", got)
	}
}
