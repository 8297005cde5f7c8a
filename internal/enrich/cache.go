package enrich

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a merged enrichment result stays usable.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CacheEntry is a merged enrichment result as stored by a Cache.
type CacheEntry struct {
	Overview     string `json:"overview"`
	ImageURL     string `json:"image_url"`
	EpisodeTitle string `json:"episode_title"`
	Source       string `json:"source"`
}

// Cache persists merged enrichment results so a restart does not send
// every known series back to the providers. Implementations expire
// entries after their configured TTL.
type Cache interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry) error
	// Cleanup removes expired entries and returns how many were removed.
	Cleanup(ctx context.Context) (int64, error)
}

type memoryEntry struct {
	entry   CacheEntry
	expires time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl uses
// DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return CacheEntry{}, false, nil
	}
	return e.entry, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{entry: entry, expires: c.now().Add(c.ttl)}
	return nil
}

// Cleanup implements Cache.
func (c *MemoryCache) Cleanup(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var removed int64
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}
