package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a byte-oriented TTL cache shared by the in-memory and Redis backends
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// item represents a cached value with expiration
type item struct {
	data      []byte
	expiresAt time.Time
}

// Cache is a process-local Store, used when no Redis URL is configured
type Cache struct {
	items map[string]*item
	mutex sync.RWMutex
	now   func() time.Time
}

// New creates a new in-memory cache
func New() *Cache {
	return &Cache{
		items: make(map[string]*item),
		now:   time.Now,
	}
}

// Get retrieves a value; expired entries are evicted and reported as misses
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mutex.RLock()
	it, exists := c.items[key]
	c.mutex.RUnlock()
	if !exists {
		return nil, false, nil
	}

	if !c.now().Before(it.expiresAt) {
		c.mutex.Lock()
		// Only evict if no writer replaced it meanwhile
		if cur, ok := c.items[key]; ok && cur == it {
			delete(c.items, key)
		}
		c.mutex.Unlock()
		return nil, false, nil
	}

	return it.data, true, nil
}

// Set stores a value with TTL
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &item{
		data:      value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete removes a value
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
	return nil
}

// Clear removes all values
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]*item)
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}
