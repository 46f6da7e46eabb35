package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time // zero means no expiry
}

// LRUCache is a thread-safe LRU cache with optional per-entry expiry.
// When the cache reaches its capacity, the least recently used item is evicted.
type LRUCache[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
	onEvict  func(key K, value V)
	now      func() time.Time
}

// NewLRUCache creates a new LRU cache with the specified capacity.
// The capacity must be positive, otherwise it panics.
func NewLRUCache[K comparable, V any](capacity int) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
}

// SetEvictCallback sets a callback invoked for entries dropped by capacity,
// expiry, Remove or Clear.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// SetClock replaces the time source used for expiry.
func (c *LRUCache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a live value and marks it as recently used. Expired entries
// are removed and reported as missing.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*lruEntry[K, V])
	if c.expired(entry) {
		c.removeElement(elem)
		return zero, false
	}
	c.eviction.MoveToFront(elem)
	return entry.value, true
}

// Put adds or replaces a value without expiry.
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, 0)
}

// PutWithTTL adds or replaces a value that expires after ttl. A ttl <= 0
// never expires.
func (c *LRUCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*lruEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	elem := c.eviction.PushFront(&lruEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Remove deletes key and reports whether it was present.
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

// Len returns the number of stored entries, including expired ones not yet
// observed.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Clear removes all items from the cache.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for _, elem := range c.items {
			entry := elem.Value.(*lruEntry[K, V])
			c.onEvict(entry.key, entry.value)
		}
	}

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

// Must be called with lock held.
func (c *LRUCache[K, V]) expired(e *lruEntry[K, V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

// Must be called with lock held.
func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
