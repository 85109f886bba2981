package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker for a single process.
// Locks are not shared across instances; use the Redis lock for that.
type MemoryLocker struct {
	mu       sync.Mutex
	deadline map[string]time.Time
	now      func() time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return newMemoryLocker(time.Now)
}

func newMemoryLocker(now func() time.Time) *MemoryLocker {
	return &MemoryLocker{
		deadline: make(map[string]time.Time),
		now:      now,
	}
}

// held reports whether key is locked at t, dropping it when its TTL ran out.
// Caller holds mu.
func (m *MemoryLocker) held(key string, t time.Time) bool {
	until, ok := m.deadline[key]
	if !ok {
		return false
	}
	if !t.Before(until) {
		delete(m.deadline, key)
		return false
	}
	return true
}

// Acquire takes key for ttl when it is free or expired.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.now()
	if m.held(key, t) {
		return false, nil
	}
	m.deadline[key] = t.Add(ttl)
	return true, nil
}

// AcquireWithRetry polls Acquire until it succeeds or retries run out.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return Retry(ctx, maxRetries, retryDelay, func() (bool, error) {
		return m.Acquire(ctx, key, ttl)
	})
}

// Release frees key. An expired lock reports false.
func (m *MemoryLocker) Release(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.held(key, m.now()) {
		return false, nil
	}
	delete(m.deadline, key)
	return true, nil
}

// Extend pushes the deadline of a live lock to now+ttl.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.now()
	if !m.held(key, t) {
		return false, nil
	}
	m.deadline[key] = t.Add(ttl)
	return true, nil
}

var _ Locker = (*MemoryLocker)(nil)
