package imgcache

import (
	"sort"
	"sync"
)

// Entry maps a remote URL to the local file holding its bytes.
type Entry struct {
	URL       string
	LocalPath string
}

// Cache is a concurrent URL -> local path map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// TryGet returns the local path cached for url.
func (c *Cache) TryGet(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[url]
	return p, ok
}

// Put records the local path for url, replacing any previous one.
func (c *Cache) Put(url, localPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = localPath
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of the cache sorted by URL.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for url, p := range c.entries {
		out = append(out, Entry{URL: url, LocalPath: p})
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
