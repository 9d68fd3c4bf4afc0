package scheduling

import (
	"context"
	"sync"
)

// LocalSlotLocker serializes commit sections with in-process keyed mutexes.
// It covers single-instance deployments and tests; multi-instance
// deployments use the Redis locker instead.
type LocalSlotLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
