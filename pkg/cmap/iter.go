package cmap

// The accessors in this file do not lock. The caller must hold the stripe
// of every key it passes (read stripe for Load, write stripe otherwise),
// or all stripes for Len and RangeLocked.

// Load returns the value stored under key.
func (m *Map[V]) Load(key string) (V, bool) {
	v, ok := m.shardFor(key).items[key]
	return v, ok
}

// Store sets key to value.
func (m *Map[V]) Store(key string, value V) {
	m.shardFor(key).items[key] = value
}

// Remove deletes key and reports whether it was present.
func (m *Map[V]) Remove(key string) bool {
	s := m.shardFor(key)
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

// Len returns the number of items across all shards.
func (m *Map[V]) Len() int {
	n := 0
	for _, s := range m.shards {
		n += len(s.items)
	}
	return n
}

// RangeLocked iterates over every item; fn returns false to stop.
func (m *Map[V]) RangeLocked(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		for k, v := range s.items {
			if !fn(k, v) {
				return
			}
		}
	}
}

// RangeShard iterates over the items of one shard; fn returns false to stop.
// Deleting the current key from fn is allowed.
func (m *Map[V]) RangeShard(i int, fn func(key string, value V) bool) {
	for k, v := range m.shards[i].items {
		if !fn(k, v) {
			return
		}
	}
}

// ClearLocked drops every item.
func (m *Map[V]) ClearLocked() {
	for _, s := range m.shards {
		s.items = make(map[string]V)
	}
}

// Range iterates over all key-value pairs, read-locking one shard at a time.
//
// The callback returns false to stop. The view is not a consistent snapshot.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns all keys.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Count())
	m.Range(func(key string, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
