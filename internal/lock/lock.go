// Package lock provides try-locks keyed by name. Acquisition never waits:
// a held lock is reported as *core.LockUnavailableError so that the caller
// can retry the whole unit of work later.
package lock

import (
	"context"
)

// Release releases a held lock. It is safe to call more than once.
type Release func()

// Manager hands out exclusive and shared try-locks.
type Manager interface {
	// TryExclusive acquires the lock for key exclusively.
	TryExclusive(ctx context.Context, key string) (Release, error)

	// TryShared acquires the lock for key together with other shared holders.
	TryShared(ctx context.Context, key string) (Release, error)
}

// TryExclusiveAll acquires exclusive locks on all keys in order. On failure
// every lock taken so far is released.
func TryExclusiveAll(ctx context.Context, m Manager, keys ...string) (Release, error) {
	return acquireAll(ctx, keys, m.TryExclusive)
}

// TrySharedAll acquires shared locks on all keys in order. On failure every
// lock taken so far is released.
func TrySharedAll(ctx context.Context, m Manager, keys ...string) (Release, error) {
	return acquireAll(ctx, keys, m.TryShared)
}

func acquireAll(ctx context.Context, keys []string, acquire func(context.Context, string) (Release, error)) (Release, error) {
	held := make([]Release, 0, len(keys))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, key := range keys {
		release, err := acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, release)
	}
	return once(releaseAll), nil
}

func once(fn func()) Release {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		fn()
	}
}
