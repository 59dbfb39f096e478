package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/backyonatan-alt/restable/internal/table"
)

// Cache holds the most recently normalized tables, keyed by source URL.
type Cache struct {
	tables *lru.Cache[string, *table.Table]

	mu        sync.RWMutex
	updatedAt time.Time
}

func New(size int) (*Cache, error) {
	if size <= 0 {
		size = 1
	}
	tables, err := lru.New[string, *table.Table](size)
	if err != nil {
		return nil, err
	}
	return &Cache{tables: tables}, nil
}

// Set stores the table normalized from url.
func (c *Cache) Set(url string, t *table.Table) {
	c.tables.Add(url, t)
	c.mu.Lock()
	c.updatedAt = time.Now()
	c.mu.Unlock()
}

// Get returns the cached table for url.
func (c *Cache) Get(url string) (*table.Table, bool) {
	return c.tables.Get(url)
}

// Remove drops url from the cache.
func (c *Cache) Remove(url string) {
	c.tables.Remove(url)
}

// Len is the number of cached tables.
func (c *Cache) Len() int {
	return c.tables.Len()
}

// UpdatedAt returns the last time a table was stored.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
