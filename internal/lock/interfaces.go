// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For distributed deployments, Redis-based locks can be used.
package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/repository"
)

// Locker serializes critical sections by key, in process or across instances.
// A lock expires on its own after its TTL, so a crashed holder cannot wedge a key.
type Locker interface {
	// Acquire takes the lock if it is free. It reports false when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry calls Acquire up to maxRetries+1 times, waiting retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release frees a lock this holder owns. It reports false when the lock was not ours.
	Release(ctx context.Context, key string) (bool, error)

	// Extend restarts the TTL of a lock this holder still owns.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Like returns the lock key serializing like toggles of one user on one post.
// The like row and the post's likeCount must change together.
func (lockKeys) Like(post, user domain.ID) string {
	return "lock:like:" + string(post) + ":" + string(user)
}

// Registration returns the lock key serializing sign-ups for one email.
func (lockKeys) Registration(email string) string {
	return "lock:register:" + strings.ToLower(strings.TrimSpace(email))
}

// Retry runs attempt until it succeeds, fails, or maxRetries extra attempts are spent.
func Retry(ctx context.Context, maxRetries int, delay time.Duration, attempt func() (bool, error)) (bool, error) {
	for i := 0; ; i++ {
		ok, err := attempt()
		if err != nil || ok {
			return ok, err
		}
		if i >= maxRetries {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// WithLock runs fn while holding key. It returns repository.ErrLockNotAcquired when
// the lock stays busy after retries. The lock is extended every ttl/2 while fn runs,
// so a slow critical section keeps its key.
func WithLock(ctx context.Context, locker Locker, key string, ttl time.Duration, fn func(context.Context) error) error {
	acquired, err := locker.AcquireWithRetry(ctx, key, ttl, 20, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", repository.ErrLockNotAcquired, key)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		keepAlive(ctx, locker, key, ttl, done)
	}()

	defer func() {
		close(done)
		wg.Wait()
		// release on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_, _ = locker.Release(releaseCtx, key)
	}()
	return fn(ctx)
}

func keepAlive(ctx context.Context, locker Locker, key string, ttl time.Duration, done <-chan struct{}) {
	interval := ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := locker.Extend(ctx, key, ttl); err != nil || !ok {
				return
			}
		}
	}
}
