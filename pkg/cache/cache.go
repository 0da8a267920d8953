package cache

import (
	"sync"
	"time"
)

// LabelCache is a read-through cache for QID -> human-label lookups.
type LabelCache interface {
	Get(key string) (string, bool)
	Put(key, val string)
}

type entry struct {
	val     string
	addedAt time.Time
}

// TTLCache is a bounded in-memory LabelCache. Entries expire after the
// TTL; when the cache is full the oldest entry is evicted. Bounding the
// cache keeps long-lived worker processes from growing without limit.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLCache creates a bounded TTL cache.
func NewTTLCache(maxSize int, ttl time.Duration) *TTLCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &TTLCache{
		entries: make(map[string]entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *TTLCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.ttl > 0 && c.now().Sub(e.addedAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.val, true
}

func (c *TTLCache) Put(key, val string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = entry{val: val, addedAt: c.now()}
}

// Len returns the number of live entries.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries first, then the oldest entry if the
// cache is still full. Linear scan is fine at the sizes we configure.
func (c *TTLCache) evictLocked() {
	now := c.now()
	if c.ttl > 0 {
		for k, e := range c.entries {
			if now.Sub(e.addedAt) > c.ttl {
				delete(c.entries, k)
			}
		}
		if len(c.entries) < c.maxSize {
			return
		}
	}

	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.addedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.addedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
