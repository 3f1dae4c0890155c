package cache

import "sync"

// Stats is a snapshot of cache counters.
type Stats struct {
	Len       int
	Used      int
	Budget    int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[K comparable, V any] struct {
	value V
	cost  int
	node  *lruNode[K]
}

// Cache is an LRU cache bounded by the summed cost of its values.
// A Cache must not be copied after first use.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	order   lruList[K]
	cost    func(V) int
	budget  int
	used    int

	hits, misses, evictions uint64
}

// New returns a cache that keeps the summed cost of its values at or below
// budget. A nil cost counts every value as 1. A budget <= 0 disables
// eviction.
func New[K comparable, V any](budget int, cost func(V) int) *Cache[K, V] {
	if cost == nil {
		cost = func(V) int { return 1 }
	}
	return &Cache[K, V]{
		entries: make(map[K]*entry[K, V]),
		cost:    cost,
		budget:  budget,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[K, V]) getLocked(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.moveToFront(e.node)
	return e.value, true
}

// Put stores value under key and evicts the least recently used entries
// until the cache fits its budget again. A value that alone exceeds the
// budget is not stored.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value)
}

func (c *Cache[K, V]) putLocked(key K, value V) {
	cost := c.cost(value)
	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}
	if c.budget > 0 && cost > c.budget {
		return
	}
	c.entries[key] = &entry[K, V]{value: value, cost: cost, node: c.order.pushFront(key)}
	c.used += cost
	for c.budget > 0 && c.used > c.budget {
		oldest := c.order.back()
		c.removeLocked(oldest.key, c.entries[oldest.key])
		c.evictions++
	}
}

// GetOrCreate returns the cached value for key, calling create on a miss.
// create runs under the cache lock and must not call back into c.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.getLocked(key); ok {
		return v
	}
	v := create()
	c.putLocked(key, v)
	return v
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

func (c *Cache[K, V]) removeLocked(key K, e *entry[K, V]) {
	c.order.remove(e.node)
	delete(c.entries, key)
	c.used -= e.cost
}

// Clear drops every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[K, V])
	c.order = lruList[K]{}
	c.used = 0
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       len(c.entries),
		Used:      c.used,
		Budget:    c.budget,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
