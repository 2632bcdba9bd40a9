package grove

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched blob stays valid in the cache.
const DefaultTTL = 5 * time.Minute

// Cache is a time-boxed in-memory cache of fetched blobs, keyed by URI.
//
// It is constructed once at process start and injected into the client
// instead of living as module-level state, so tests can drive it with a
// fake clock.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[URI]cacheEntry
}

type cacheEntry struct {
	value     json.RawMessage
	fetchedAt time.Time
}

// NewCache creates a cache with the given TTL. A zero ttl falls back to
// DefaultTTL. now may be nil, in which case time.Now is used.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[URI]cacheEntry),
	}
}

// Get returns the cached value for uri if it was fetched less than TTL ago.
func (c *Cache) Get(uri URI) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[uri]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores a freshly fetched value for uri.
func (c *Cache) Set(uri URI, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uri] = cacheEntry{value: value, fetchedAt: c.now()}
}

// Invalidate removes a single URI from the cache.
func (c *Cache) Invalidate(uri URI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uri)
}

// InvalidateAll removes every listed URI from the cache. It is used as a
// defensive sweep after a collection-wide mutation, with the URIs taken
// from the current registry mapping.
func (c *Cache) InvalidateAll(uris []URI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uri := range uris {
		delete(c.entries, uri)
	}
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
