package detect

import "sync"

// CacheEntry records the selector and method that last succeeded for an
// entity type. Entries are only written from non-cached successes; a
// cache hit never rewrites its own entry.
type CacheEntry struct {
	Entity   string `json:"entity"`
	Selector string `json:"selector"`
	Method   Method `json:"method"`
}

// Cache persists the last successful selector per entity type. The cache
// is an optimization hint, not a correctness requirement: writes may be
// fire-and-forget and a stale entry is silently ignored on replay.
type Cache interface {
	Get(entity string) (CacheEntry, bool)
	Put(entry CacheEntry) error
}

// MemoryCache is a process-local Cache, used standalone in tests and as
// the read-through layer in front of the persisted store.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]CacheEntry{}}
}

func (c *MemoryCache) Get(entity string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[entity]
	return e, ok
}

func (c *MemoryCache) Put(entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Entity] = entry
	return nil
}
