package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imagefork/redirect/internal/metrics"
)

// MemoryCache is an in-memory implementation of TokenCache for tests and
// single-node deployments. It mirrors the Redis backend's conditional-set
// contract: set-if-absent returns the previously stored value.
type MemoryCache struct {
	mu          sync.Mutex
	entries     map[string]memoryEntry
	stopCleanup chan struct{}
	closeOnce   sync.Once
}

type memoryEntry struct {
	id      int64
	expires time.Time
}

// NewMemoryCache creates a new in-memory coherency token cache
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries:     make(map[string]memoryEntry),
		stopCleanup: make(chan struct{}),
	}

	// Expired entries are already invisible to reads; the janitor only
	// reclaims their memory.
	go c.cleanupLoop()

	return c
}

// Resolve returns the poster id bound to key, populating it on a miss
func (c *MemoryCache) Resolve(ctx context.Context, key string, ttl time.Duration, populate PopulateFunc) (int64, bool, error) {
	if id, ok := c.getAndRefresh(key, ttl); ok {
		metrics.RecordCoherencyAction("hit")
		return id, true, nil
	}

	id, ok, err := populate(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("populate poster for token: %w", err)
	}
	if !ok {
		metrics.RecordCoherencyAction("none_found")
		return 0, false, nil
	}

	if winner, raced := c.setIfAbsent(key, id, ttl); raced {
		metrics.RecordCoherencyAction("update_discarded")
		return winner, true, nil
	}
	metrics.RecordCoherencyAction("update")
	return id, true, nil
}

// getAndRefresh returns the live entry for key, extending its TTL
func (c *MemoryCache) getAndRefresh(key string, ttl time.Duration) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return 0, false
	}

	entry.expires = time.Now().Add(ttl)
	c.entries[key] = entry
	return entry.id, true
}

// setIfAbsent stores id under key unless a live entry exists. It returns
// the stored value and whether the key was already bound, matching the
// prior-value semantics of SET NX GET.
func (c *MemoryCache) setIfAbsent(key string, id int64, ttl time.Duration) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && time.Now().Before(entry.expires) {
		return entry.id, true
	}

	c.entries[key] = memoryEntry{id: id, expires: time.Now().Add(ttl)}
	return id, false
}

// Ping always succeeds for the in-memory backend
func (c *MemoryCache) Ping(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.stopCleanup) })
	return nil
}

// cleanupLoop periodically removes expired entries
func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes expired entries
func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
}

// size returns the number of live entries, for tests
func (c *MemoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
