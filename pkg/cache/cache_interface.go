package cache

import (
	"context"
	"time"
)

// Cache defines the contract for the cache layer so implementations
// (Redis, in-memory) can be swapped without touching repositories.
type Cache interface {
	// Get reads a key and unmarshals it into dest.
	// Returns (found, error):
	// - found = true: cache hit, data unmarshaled into dest
	// - found = false: cache miss, dest left untouched
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes keys from the cache.
	Delete(ctx context.Context, keys ...string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
