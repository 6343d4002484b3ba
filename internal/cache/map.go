package cache

import (
	"maps"
	"sync"
)

// Map is a key-value index guarded by its own RWMutex.
//
// Values are treated as immutable once stored: mutations of nested maps go
// through Update, whose callback must build a new value rather than modify
// the one it is given. Readers holding a value from Get therefore never see
// a later write.
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewMap creates an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

// Get returns the value stored under k.
func (c *Map[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[k]
	return v, ok
}

// Set stores v under k.
func (c *Map[K, V]) Set(k K, v V) {
	c.mu.Lock()
	c.m[k] = v
	c.mu.Unlock()
}

// SetIfAbsent stores v under k unless k is present, and reports whether it stored.
func (c *Map[K, V]) SetIfAbsent(k K, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[k]; ok {
		return false
	}
	c.m[k] = v
	return true
}

// Delete removes k and returns the removed value.
func (c *Map[K, V]) Delete(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[k]
	delete(c.m, k)
	return v, ok
}

// DeleteIf removes k only when remove reports true for its current value.
func (c *Map[K, V]) DeleteIf(k K, remove func(V) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[k]
	if !ok || !remove(v) {
		return false
	}
	delete(c.m, k)
	return true
}

// Update replaces the value under k with fn(old, present) atomically.
// When fn returns keep == false the key is removed.
func (c *Map[K, V]) Update(k K, fn func(old V, present bool) (v V, keep bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, present := c.m[k]
	v, keep := fn(old, present)
	if keep {
		c.m[k] = v
	} else if present {
		delete(c.m, k)
	}
}

// Len returns the number of keys.
func (c *Map[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Range calls fn for every entry until fn returns false. The map is read
// locked for the duration, so fn must not call back into it.
func (c *Map[K, V]) Range(fn func(K, V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.m {
		if !fn(k, v) {
			return
		}
	}
}

// Keys returns the keys in unspecified order.
func (c *Map[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]K, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	return keys
}

// Replace swaps in m wholesale. The Map takes ownership of m.
func (c *Map[K, V]) Replace(m map[K]V) {
	if m == nil {
		m = make(map[K]V)
	}
	c.mu.Lock()
	c.m = m
	c.mu.Unlock()
}

// Copy returns a shallow copy of the contents.
func (c *Map[K, V]) Copy() map[K]V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.m)
}
