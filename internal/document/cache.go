package document

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/langcore/internal/metrics"
)

// DefaultCacheSize bounds the number of derived values kept at once
const DefaultCacheSize = 4096

type cacheEntry struct {
	generation uint64
	value      any
}

// Cache holds values derived from registry state. Every registry mutation
// calls Clear, which bumps the generation; entries tagged with an older
// generation are never returned.
type Cache struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, cacheEntry]
	generation uint64
}

// NewCache creates a cache holding at most size entries
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Generation returns the current generation
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Get returns the value stored under key in the current generation
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok || e.generation != c.generation {
		metrics.CacheLookups.WithLabelValues("registry", "miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("registry", "hit").Inc()
	return e.value, true
}

// Set stores value under key in the current generation
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, cacheEntry{generation: c.generation, value: value})
}

// setAt stores value only if no mutation happened since generation was read
func (c *Cache) setAt(generation uint64, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.entries.Add(key, cacheEntry{generation: generation, value: value})
}

// Clear invalidates every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries.Purge()
}

// Len returns the number of stored entries, stale ones included
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Memoize returns the cached value for key or computes and stores it. A value
// computed while a mutation happened is returned but not stored.
func Memoize[T any](c *Cache, key string, compute func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	generation := c.Generation()
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.setAt(generation, key, v)
	return v, nil
}
