package store

import (
	"log/slog"

	"github.com/katmoor/dmscout/detect"
)

// LayeredCache puts an in-memory selector cache in front of the
// database. Reads hit memory first and fall back to the table;
// writes land in memory synchronously and are persisted in the
// background, so a failed persist costs nothing but a warning and the
// next process start.
type LayeredCache struct {
	mem    *detect.MemoryCache
	store  *Store
	logger *slog.Logger
}

func NewLayeredCache(store *Store, logger *slog.Logger) *LayeredCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayeredCache{
		mem:    detect.NewMemoryCache(),
		store:  store,
		logger: logger,
	}
}

func (c *LayeredCache) Get(entity string) (detect.CacheEntry, bool) {
	if e, ok := c.mem.Get(entity); ok {
		return e, true
	}
	e, ok, err := c.store.CacheGet(entity)
	if err != nil {
		c.logger.Warn("selector cache read failed", slog.String("entity", entity), slog.String("err", err.Error()))
		return detect.CacheEntry{}, false
	}
	if ok {
		_ = c.mem.Put(e)
	}
	return e, ok
}

// Put stores the entry in memory and persists it without waiting.
// Concurrent puts for the same entity are last-write-wins; the cache is
// a hint, not a source of truth.
func (c *LayeredCache) Put(e detect.CacheEntry) error {
	if err := c.mem.Put(e); err != nil {
		return err
	}
	go func() {
		if err := c.store.CachePut(e); err != nil {
			c.logger.Warn("selector cache persist failed", slog.String("entity", e.Entity), slog.String("err", err.Error()))
		}
	}()
	return nil
}
