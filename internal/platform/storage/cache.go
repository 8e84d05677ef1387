package storage

import (
	"context"
	"sync"
)

// Cache is a keyed byte store shared by request handlers and scheduled jobs.
// Get reports ok=false for a missing key; that is not an error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMany writes all entries or none. A nil value deletes its key.
	SetMany(ctx context.Context, entries map[string][]byte) error
}

// MemoryCache is a process-local, concurrency-safe Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]byte)}
}

// Get implements Cache.Get.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set implements Cache.Set. A nil value deletes the key.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(key, value)
	return nil
}

// SetMany implements Cache.SetMany.
func (c *MemoryCache) SetMany(_ context.Context, entries map[string][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range entries {
		c.setLocked(k, v)
	}
	return nil
}

func (c *MemoryCache) setLocked(key string, value []byte) {
	if value == nil {
		delete(c.items, key)
		return
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.items[key] = stored
}
