// Package cache provides the key/value cache store and the version-salted
// key scheme used for bulk invalidation.
package cache

import (
	"context"
	"time"
)

// Store defines the cache backend contract. Implementations must treat a
// missing key as (nil, false, nil), reserving the error return for transport
// or backend failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the integer at key and returns the new
	// value. A missing key counts as 0, so the first increment yields 1.
	Incr(ctx context.Context, key string) (int64, error)
	// GetInt reads an integer counter. A missing key returns (0, false, nil).
	GetInt(ctx context.Context, key string) (int64, bool, error)
}
