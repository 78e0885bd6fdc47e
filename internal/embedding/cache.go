package embedding

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is the maximum age of a cached embedding.
	DefaultCacheTTL = time.Hour
	// DefaultCacheSize is the maximum number of cached embeddings.
	DefaultCacheSize = 1000
)

// Cache memoizes text-to-vector conversions keyed by CacheKey. Entries expire
// after a TTL; at capacity the oldest-inserted entry is evicted first.
type Cache struct {
	ttl      time.Duration
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // oldest insertion at front
	now      func() time.Time
}

type cacheEntry struct {
	key       string
	vector    []float32
	createdAt time.Time
}

// NewCache creates a cache with the given TTL and capacity.
// Non-positive arguments fall back to the defaults.
func NewCache(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached vector for key. Entries older than the TTL are
// removed and reported as misses.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.createdAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	return entry.vector, true
}

// Set stores the vector for key. An existing entry is replaced with a fresh
// insertion time; at capacity the single oldest-inserted entry is evicted.
func (c *Cache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	entry := &cacheEntry{key: key, vector: vector, createdAt: c.now()}
	c.entries[key] = c.order.PushBack(entry)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of entries, including any not yet expired lazily.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
