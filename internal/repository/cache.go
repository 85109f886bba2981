package repository

import (
	"context"
	"time"

	"github.com/prn-tf/inkwell/internal/domain"
)

// =============================================================================
// Cache Interface (Redis)
// =============================================================================

// Cache defines the key-value store behind sessions and view windows.
// Implemented in process for single-node deployments and on Redis otherwise.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Expire restarts the TTL of an existing key. A zero ttl removes the expiry.
	// Missing keys are left missing.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// Session returns the cache key holding the session for a bearer token.
func (CacheKey) Session(token string) string {
	return "cache:session:" + token
}

// PostView returns the cache key that deduplicates views of a post by one viewer.
func (CacheKey) PostView(post domain.ID, viewer string) string {
	return "cache:view:" + string(post) + ":" + viewer
}
