package lock

import (
	"context"
	"sync"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// Memory is an in-process Manager backed by sync.RWMutex try-locks.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewMemory creates an in-process lock manager.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*sync.RWMutex)}
}

func (m *Memory) get(key string) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		m.locks[key] = l
	}
	return l
}

// TryExclusive implements Manager.
func (m *Memory) TryExclusive(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := m.get(key)
	if !l.TryLock() {
		return nil, &core.LockUnavailableError{Key: key}
	}
	return once(l.Unlock), nil
}

// TryShared implements Manager.
func (m *Memory) TryShared(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := m.get(key)
	if !l.TryRLock() {
		return nil, &core.LockUnavailableError{Key: key}
	}
	return once(l.RUnlock), nil
}

var _ Manager = (*Memory)(nil)
