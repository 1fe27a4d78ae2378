// Package cache provides a small TTL cache for tool results, keyed by
// tool name and canonicalized arguments. Only tools the catalog marks
// cacheable should be stored here.
package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// entry wraps a cached value with expiry and insertion order tracking.
type entry struct {
	value     string
	expiry    time.Time
	insertIdx int64
}

// ResultCache caches serialized tool results to prevent duplicate
// round-trips to the backend. Thread-safe with sync.RWMutex.
type ResultCache struct {
	mu         sync.RWMutex
	items      map[string]entry
	ttl        time.Duration
	maxEntries int
	nextIdx    int64
}

// New creates a ResultCache with the given TTL and max entry count.
func New(ttl time.Duration, maxEntries int) *ResultCache {
	return &ResultCache{
		items:      make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// MakeKey builds a cache key from a tool name and its argument map.
// json.Marshal sorts map keys, so equal argument maps yield equal keys.
func MakeKey(tool string, args map[string]any) string {
	encoded, err := json.Marshal(args)
	if err != nil {
		// unmarshalable args never hit the cache
		return ""
	}
	return tool + ":" + string(encoded)
}

// Get returns a cached value if found and not expired.
func (c *ResultCache) Get(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}

	if time.Now().After(e.expiry) {
		c.mu.Lock()
		// re-check under the write lock; another writer may have refreshed it
		if cur, still := c.items[key]; still && time.Now().After(cur.expiry) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return "", false
	}

	return e.value, true
}

// Set stores a value, evicting the oldest entry when the cache is full.
func (c *ResultCache) Set(key, value string) {
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxEntries {
		if _, exists := c.items[key]; !exists {
			c.evictOldestLocked()
		}
	}

	c.nextIdx++
	c.items[key] = entry{
		value:     value,
		expiry:    time.Now().Add(c.ttl),
		insertIdx: c.nextIdx,
	}
}

// evictOldestLocked removes the entry with the smallest insertion index.
// Caller must hold the write lock.
func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldestIdx int64 = -1
	for k, e := range c.items {
		if oldestIdx == -1 || e.insertIdx < oldestIdx {
			oldestKey = k
			oldestIdx = e.insertIdx
		}
	}
	if oldestIdx != -1 {
		delete(c.items, oldestKey)
	}
}

// Len returns the number of cached entries, including expired ones not yet
// evicted.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}
