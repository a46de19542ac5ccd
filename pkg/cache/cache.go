package cache

import (
	"context"
	"time"
)

// Cache is the interface for caching resolved accessible-resource sets.
// Keys are caller-defined strings (the resolver uses one key per principal);
// values are opaque. Entries expire after their TTL and may be evicted
// earlier under memory pressure.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns the value and true if found, or nil and false if not found.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries from cache.
	Clear(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error

	// Metrics returns cache statistics.
	Metrics() *Metrics
}

// Metrics holds cache performance statistics.
type Metrics struct {
	Hits        uint64 // Lookups that returned a live entry
	Misses      uint64 // Lookups that found nothing or an expired entry
	KeysAdded   uint64 // Entries inserted over the cache lifetime
	KeysEvicted uint64 // Entries evicted due to the memory limit
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
