// Package cmap provides a string-keyed sharded map whose shard locks double
// as lock stripes for multi-key operations.
//
// Each key hashes (murmur3) to one shard. Simple accessors (Get, Set,
// Delete, Has) lock their shard internally. Callers that need several keys
// to change together take the stripes explicitly:
//
//	unlock := m.Lock("src", "dst")
//	defer unlock()
//	v, _ := m.Load("src")
//	m.Store("dst", v)
//	m.Remove("src")
//
// Lock, RLock, LockAll and RLockAll acquire stripes in ascending index
// order, so any two callers can hold overlapping stripe sets without
// deadlocking. The Load/Store/Remove family never locks; it must only be
// used while the caller holds the stripe of the key it touches.
package cmap
