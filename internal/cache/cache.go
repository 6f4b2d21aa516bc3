// Package cache implements the coherency token cache.
//
// The cache maps hashed coherency tokens to poster ids for a sliding TTL
// window, so that repeated requests carrying the same token resolve to the
// same poster. All race safety is delegated to the backing store's atomic
// primitives; the resolve protocol itself holds no locks across calls.
package cache

import (
	"context"
	"time"
)

// PopulateFunc produces a poster id for a key that has no cache entry.
// The bool is false when no servable poster currently exists; that outcome
// is returned to the caller but never written to the cache.
type PopulateFunc func(ctx context.Context) (int64, bool, error)

// TokenCache defines the coherency token cache operations
type TokenCache interface {
	// Resolve returns the poster id bound to key, extending its TTL. On a
	// miss it invokes populate and binds the result with an atomic
	// set-if-absent; when concurrent populators race, every caller gets
	// the single winning value.
	Resolve(ctx context.Context, key string, ttl time.Duration, populate PopulateFunc) (int64, bool, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources.
	Close() error
}
