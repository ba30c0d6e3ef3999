package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nulzo/reliability-forge/internal/store/cache"
)

type item struct {
	value     []byte
	expiresAt time.Time
}

type MemoryCache struct {
	items map[string]item
	mu    sync.RWMutex
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]item),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return cache.ErrMiss
	}

	if c.now().After(it.expiresAt) {
		_ = c.Delete(ctx, key)
		return cache.ErrMiss
	}

	return json.Unmarshal(it.value, dest)
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{
		value:     data,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}
