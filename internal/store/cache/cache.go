package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// CacheService defines the interface for a cache of generated completions
type CacheService interface {
	// Get retrieves a value from the cache.
	// The implementation should unmarshal the data into the 'dest' pointer.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in the cache with a TTL.
	// The implementation should marshal the value.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error
}
