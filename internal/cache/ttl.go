package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	val     V
	expires int64
}

// TTLCache is a keyed cache with one fixed time-to-live. There is no
// invalidation signal; entries simply age out on read.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[K]item[V]
}

func NewTTL[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{ttl: ttl, items: make(map[K]item[V])}
}

func (c *TTLCache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[k]
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().UnixNano() > it.expires {
		delete(c.items, k)
		var zero V
		return zero, false
	}
	return it.val, true
}

func (c *TTLCache[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[k] = item[V]{val: v, expires: time.Now().Add(c.ttl).UnixNano()}
}

func (c *TTLCache[K, V]) Delete(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, k)
}
