package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultLRUSize = 1024

type lruEntry struct {
	value     string
	expiresAt time.Time
}

// LRUCache is an in-process cache with per-entry expiry
type LRUCache struct {
	entries *lru.Cache[string, lruEntry]
	now     func() time.Time
}

func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	entries, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &LRUCache{entries: entries, now: time.Now}, nil
}

// WithClock replaces the time source used for entry expiry
func (c *LRUCache) WithClock(now func() time.Time) *LRUCache {
	c.now = now
	return c
}

func (c *LRUCache) Get(_ context.Context, key string) (string, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return "", ErrMiss
	}
	if !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return "", ErrMiss
	}
	return entry.value, nil
}

func (c *LRUCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.entries.Add(key, lruEntry{value: value, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *LRUCache) Close() error {
	c.entries.Purge()
	return nil
}
