package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt/alivelock/internal/logger"
	"github.com/matt/alivelock/internal/runtimedir"
	"github.com/matt/alivelock/internal/watch"
	"github.com/matt/alivelock/pkg/alivelock"
)

// acquireLock takes the named lock. Without wait a busy lock fails with
// ErrAlreadyLocked. With wait it blocks until the holder releases it and
// retries, giving up after timeout (zero means no limit) or when ctx ends.
func acquireLock(ctx context.Context, name string, wait bool, timeout time.Duration) (*alivelock.Lock, error) {
	if !wait {
		return alivelock.Acquire(name)
	}

	path, err := runtimedir.Resolve(name)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := logger.ForComponent("cmd")
	for {
		lock, ok, err := alivelock.TryLock(name)
		if err != nil {
			return nil, err
		}
		if ok {
			return lock, nil
		}

		log.Debug("lock busy, waiting for release", "name", name)
		if err := watch.WaitReleased(ctx, path, appConfig.WaitInterval); err != nil {
			return nil, waitError(name, timeout, err)
		}
	}
}

// waitLocks blocks until every named lock is free.
func waitLocks(ctx context.Context, names []string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for _, name := range names {
		path, err := runtimedir.Resolve(name)
		if err != nil {
			return err
		}
		if err := watch.WaitReleased(ctx, path, appConfig.WaitInterval); err != nil {
			return waitError(name, timeout, err)
		}
	}
	return nil
}

func waitError(name string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError("timed out after %s waiting for %s", timeout, name)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted while waiting for %s", name)
	}
	return err
}
