package baseline

import (
	"context"
	"sync"
)

// Cache stores baseline records keyed by (id, bounds) hashes for the
// lifetime of a validation run. Implementations must be safe for
// concurrent readers and idempotent on write.
type Cache interface {
	Get(ctx context.Context, key string) (*Record, bool)
	Set(ctx context.Context, key string, rec *Record)
	Stats() CacheStats
}

// CacheStats tracks lookup performance.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// HitRatio returns hits over total lookups, or 0 before any lookup.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MemoryCache is the default run-scoped cache: a mutex-guarded map with
// hit/miss counters.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Record
	stats   CacheStats
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Record)}
}

// Get returns the cached record for key, if present.
func (c *MemoryCache) Get(_ context.Context, key string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[key]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return rec, ok
}

// Set inserts a record. Overwriting an existing key with a recomputed
// record yields the same value, so concurrent writers need no coordination
// beyond the lock.
func (c *MemoryCache) Set(_ context.Context, key string, rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rec
}

// Stats returns a snapshot of the lookup counters.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Len reports the number of cached records.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
