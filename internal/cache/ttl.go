// Package cache provides a bounded-lifetime in-process cache. It backs
// the two pieces of transient state the engine keeps outside the
// durable store: unconfirmed loan offers and the redelivery-dedup
// window for platform token events. Loss on restart is acceptable for
// both.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type TTL[V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry[V]
}

func New[V any](ttl time.Duration) *TTL[V] {
	return NewWithClock[V](ttl, func() time.Time { return time.Now().UTC() })
}

// NewWithClock is New with an injectable clock for deterministic tests.
func NewWithClock[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	return &TTL[V]{
		ttl:   ttl,
		now:   now,
		items: map[string]entry[V]{},
	}
}

func (c *TTL[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// PutIfAbsent stores value unless a live entry exists. It reports
// whether the value was stored, which makes it usable as a dedup gate.
func (c *TTL[V]) PutIfAbsent(key string, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
	if _, ok := c.items[key]; ok {
		return false
	}
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	return true
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
	return len(c.items)
}

func (c *TTL[V]) purgeLocked() {
	now := c.now()
	for k, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, k)
		}
	}
}
