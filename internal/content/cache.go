package content

import (
	"sync"
	"time"
)

// Cache holds fetched content keyed by normalized blob id for the lifetime
// of the process, since the same blob is often rendered in several places.
// It is an owned object rather than package state so tests and shutdown can
// dispose of it deterministically.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	disposed bool
	now      func() time.Time
}

type cacheEntry struct {
	value      any
	lastAccess time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e.lastAccess = c.now()
	return e.value, true
}

func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.entries[key] = &cacheEntry{value: value, lastAccess: c.now()}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries but keeps the cache usable.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Dispose releases everything and makes further Sets no-ops. Called on
// shutdown so assembled media buffers do not outlive their consumers.
func (c *Cache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.disposed = true
}

// EvictIdle removes entries not touched within maxIdle and reports how many
// were dropped.
func (c *Cache) EvictIdle(maxIdle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxIdle)
	evicted := 0
	for key, e := range c.entries {
		if e.lastAccess.Before(cutoff) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}
