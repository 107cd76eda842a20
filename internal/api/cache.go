package api

import (
	"strings"
	"sync"
	"time"
)

// DefaultCacheMaxAge applies to cacheable calls that do not set their own age
const DefaultCacheMaxAge = 60 * time.Second

type cacheEntry struct {
	data      []byte
	timestamp time.Time
	maxAge    time.Duration
}

// responseCache holds raw response bodies keyed by method and URL. Expired
// entries are dropped on lookup only.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResponseCache(now func() time.Time) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		now:     now,
	}
}

func cacheKey(method, url string) string {
	return method + " " + url
}

func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) >= entry.maxAge {
		delete(c.entries, key)
		return nil, false
	}
	return entry.data, true
}

func (c *responseCache) set(key string, data []byte, maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, timestamp: c.now(), maxAge: maxAge}
}

// clear removes entries whose key contains substr, or everything when substr
// is empty. It returns the number of removed entries.
func (c *responseCache) clear(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if substr == "" {
		n := len(c.entries)
		c.entries = make(map[string]cacheEntry)
		return n
	}
	n := 0
	for key := range c.entries {
		if strings.Contains(key, substr) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
