// Package memory provides a bounded in-process LRU embedding cache.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// DefaultSize is the capacity used when none is configured.
const DefaultSize = 4096

type entry struct {
	key    string
	vector []float32
}

// Cache keeps the most recently used vectors up to a fixed number of entries.
type Cache struct {
	mu      sync.Mutex
	size    int
	entries map[string]*list.Element
	order   *list.List
}

// New creates a cache holding at most size entries.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		size:    size,
		entries: make(map[string]*list.Element, size),
		order:   list.New(),
	}
}

// Get returns a copy of the cached vector for key.
func (c *Cache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	c.order.MoveToFront(elem)
	return append([]float32(nil), elem.Value.(*entry).vector...), true, nil
}

// Put stores a copy of vector, evicting the least recently used entry when full.
func (c *Cache) Put(_ context.Context, key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	vector = append([]float32(nil), vector...)
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*entry).vector = vector
		c.order.MoveToFront(elem)
		return nil
	}

	if c.order.Len() >= c.size {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}
	c.entries[key] = c.order.PushFront(&entry{key: key, vector: vector})
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close drops all entries.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	return nil
}
