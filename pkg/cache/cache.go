// Package cache provides an in-memory cache with per-entry expiration,
// used to avoid refetching upstream feeds while they are still fresh.
package cache

import (
	"sync"
	"time"
)

// TTLCache is a generic thread-safe cache with TTL support
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]cacheItem[V]
	now   func() time.Time
}

type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTLCache creates an empty TTL cache
func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{
		items: make(map[K]cacheItem[V]),
		now:   time.Now,
	}
}

// Get retrieves a value from the cache if it exists and hasn't expired
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()

	item, exists := c.items[key]
	if !exists {
		c.mu.RUnlock()
		var zero V
		return zero, false
	}

	if c.now().After(item.expiresAt) {
		// Upgrade from read to write lock to safely delete expired entry
		c.mu.RUnlock()
		c.mu.Lock()
		// Re-check after obtaining write lock in case it was updated
		if latest, ok := c.items[key]; ok && c.now().After(latest.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}

	value := item.value
	c.mu.RUnlock()
	return value, true
}

// Set stores value for ttl. A non-positive ttl drops any stored value,
// so the next Get misses.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.items, key)
		return
	}
	c.items[key] = cacheItem[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}
