package repository

import (
	"errors"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/schema"
)

// Cache and lock errors.
var (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the cache is unavailable.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrLockNotAcquired indicates another holder owns the lock.
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// invalid converts schema violations into a validation error.
func invalid(entity string, violations []schema.Violation) error {
	out := make([]domain.Violation, 0, len(violations))
	for _, v := range violations {
		out = append(out, domain.Violation{Field: v.Field, Message: v.Message})
	}
	return domain.Invalid(entity, out...)
}

// isNoDocument reports whether a driver error means nothing matched.
func isNoDocument(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
