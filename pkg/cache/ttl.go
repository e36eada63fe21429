package cache

import (
	"container/list"
	"sync"
	"time"
)

type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe cache combining LRU eviction with per-entry TTL.
// When the cache reaches capacity the least recently used entry is
// evicted; expired entries are dropped lazily on access.
type TTL[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
	now      func() time.Time
}

// NewTTL creates a cache with the given capacity and entry lifetime.
// Panics on non-positive capacity; a non-positive ttl disables expiry and
// leaves plain LRU behavior.
func NewTTL[K comparable, V any](capacity int, ttl time.Duration) *TTL[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	return &TTL[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (c *TTL[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
}

// Get retrieves a live value and marks it as recently used.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*ttlEntry[K, V])
	if c.ttl > 0 && !c.now().Before(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.eviction.MoveToFront(elem)
	return entry.value, true
}

// Put adds or refreshes a value, resetting its TTL.
func (c *TTL[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	elem := c.eviction.PushFront(&ttlEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Remove drops an entry if present.
func (c *TTL[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Len returns the number of entries currently held, including entries
// that have expired but not yet been dropped.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Clear removes all entries.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

// Must be called with the lock held.
func (c *TTL[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*ttlEntry[K, V])
	delete(c.items, entry.key)
}
