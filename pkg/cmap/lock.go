package cmap

import "slices"

// Lock write-locks the stripes owning keys and returns the matching unlock.
func (m *Map[V]) Lock(keys ...string) func() {
	return m.lockIndexes(m.stripes(keys), true)
}

// RLock read-locks the stripes owning keys and returns the matching unlock.
func (m *Map[V]) RLock(keys ...string) func() {
	return m.lockIndexes(m.stripes(keys), false)
}

// LockAll write-locks every stripe.
func (m *Map[V]) LockAll() func() {
	return m.lockIndexes(m.allStripes(), true)
}

// RLockAll read-locks every stripe.
func (m *Map[V]) RLockAll() func() {
	return m.lockIndexes(m.allStripes(), false)
}

// LockShard write-locks a single stripe by index.
func (m *Map[V]) LockShard(i int) func() {
	return m.lockIndexes([]int{i}, true)
}

// stripes returns the sorted, de-duplicated stripe indexes for keys.
func (m *Map[V]) stripes(keys []string) []int {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, m.ShardIndex(k))
	}
	slices.Sort(idx)
	return slices.Compact(idx)
}

func (m *Map[V]) allStripes() []int {
	idx := make([]int, len(m.shards))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (m *Map[V]) lockIndexes(idx []int, write bool) func() {
	for _, i := range idx {
		if write {
			m.shards[i].mu.Lock()
		} else {
			m.shards[i].mu.RLock()
		}
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			if write {
				m.shards[idx[j]].mu.Unlock()
			} else {
				m.shards[idx[j]].mu.RUnlock()
			}
		}
	}
}
