// Package metacache holds fetched documents per session. Entries never expire;
// they leave the cache only through Evict or when their session is dropped.
package metacache

import "sync"

type bucket[V any] struct {
	entries map[string]V
	order   []string
}

// Cache is a two-level map session -> key -> V that remembers insertion
// order within each session. It is safe for concurrent use.
type Cache[V any] struct {
	mu       sync.RWMutex
	sessions map[string]*bucket[V]
}

func New[V any]() *Cache[V] {
	return &Cache[V]{sessions: make(map[string]*bucket[V])}
}

// Ensure creates an empty bucket for session if none exists.
func (c *Cache[V]) Ensure(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket(session)
}

// Has reports whether session has a bucket, empty or not.
func (c *Cache[V]) Has(session string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[session]
	return ok
}

func (c *Cache[V]) Get(session, key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero V
	b, ok := c.sessions[session]
	if !ok {
		return zero, false
	}
	v, ok := b.entries[key]
	return v, ok
}

// Put stores v, replacing any previous value without changing its position.
func (c *Cache[V]) Put(session, key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bucket(session)
	if _, exists := b.entries[key]; !exists {
		b.order = append(b.order, key)
	}
	b.entries[key] = v
}

// Find returns the oldest entry of session that match accepts.
func (c *Cache[V]) Find(session string, match func(V) bool) (string, V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero V
	b, ok := c.sessions[session]
	if !ok {
		return "", zero, false
	}
	for _, key := range b.order {
		if v := b.entries[key]; match(v) {
			return key, v, true
		}
	}
	return "", zero, false
}

func (c *Cache[V]) Len(session string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if b, ok := c.sessions[session]; ok {
		return len(b.order)
	}
	return 0
}

// Keys returns the keys of session in insertion order.
func (c *Cache[V]) Keys(session string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.sessions[session]
	if !ok {
		return nil
	}
	return append([]string(nil), b.order...)
}

// Evict removes a single entry.
func (c *Cache[V]) Evict(session, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.sessions[session]
	if !ok {
		return
	}
	if _, exists := b.entries[key]; !exists {
		return
	}
	delete(b.entries, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Drop removes session and everything cached for it.
func (c *Cache[V]) Drop(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, session)
}

// bucket must be called with c.mu held for writing.
func (c *Cache[V]) bucket(session string) *bucket[V] {
	b, ok := c.sessions[session]
	if !ok {
		b = &bucket[V]{entries: make(map[string]V)}
		c.sessions[session] = b
	}
	return b
}
