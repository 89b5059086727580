package keyspace

import (
	"sort"
	"time"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/pkg/glob"
)

// TTL sentinels returned by Txn.TTL.
const (
	TTLNoKey    int64 = -2
	TTLNoExpiry int64 = -1
)

// Txn is a view of the key space valid only inside the View or Update
// callback that produced it. It may touch only the keys whose stripes were
// locked, or any key under ViewAll/UpdateAll.
//
// Time is frozen at the start of the callback.
type Txn struct {
	ks       *KeySpace
	now      int64
	writable bool
}

func (t *Txn) mustWrite() {
	if !t.writable {
		panic("keyspace: write in read-only transaction")
	}
}

// Now returns the transaction time in unix milliseconds.
func (t *Txn) Now() int64 { return t.now }

func (t *Txn) entry(key string) (*Entry, bool) {
	e, ok := t.ks.data.Load(key)
	if !ok {
		return nil, false
	}
	if e.expired(t.now) {
		if t.writable {
			t.ks.remove(key)
		}
		return nil, false
	}
	return e, true
}

// Get returns the live value under key.
func (t *Txn) Get(key string) (domain.Value, bool) {
	e, ok := t.entry(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Exists reports whether key holds a live value.
func (t *Txn) Exists(key string) bool {
	_, ok := t.entry(key)
	return ok
}

// Version returns the write version of key. An absent key reports the
// version of the last removal on its stripe, or 0 if there was none.
func (t *Txn) Version(key string) uint64 {
	e, ok := t.entry(key)
	if !ok {
		return t.ks.removedVersion(key)
	}
	return e.Version
}

// Set stores v under key and clears any TTL.
func (t *Txn) Set(key string, v domain.Value) {
	t.mustWrite()
	t.ks.data.Store(key, &Entry{Value: v, Version: t.ks.nextVersion()})
}

// Replace stores v under key, keeping the TTL of a live previous value.
func (t *Txn) Replace(key string, v domain.Value) {
	t.mustWrite()
	var expireAt int64
	if e, ok := t.entry(key); ok {
		expireAt = e.ExpireAt
	}
	t.ks.data.Store(key, &Entry{Value: v, ExpireAt: expireAt, Version: t.ks.nextVersion()})
}

// Touch records an in-place mutation of the container under key. A
// container left empty is deleted.
func (t *Txn) Touch(key string) {
	t.mustWrite()
	e, ok := t.entry(key)
	if !ok {
		return
	}
	if e.Value.Kind() != domain.KindString && e.Value.Len() == 0 {
		t.ks.remove(key)
		return
	}
	e.Version = t.ks.nextVersion()
}

// Delete removes key and reports whether a live value was present.
func (t *Txn) Delete(key string) bool {
	t.mustWrite()
	_, ok := t.entry(key)
	if ok {
		t.ks.remove(key)
	}
	return ok
}

// Expire sets the absolute expiration of key. A time at or before now
// deletes the key. It reports whether the key existed.
func (t *Txn) Expire(key string, at time.Time) bool {
	t.mustWrite()
	e, ok := t.entry(key)
	if !ok {
		return false
	}
	ms := at.UnixMilli()
	if ms <= t.now {
		t.ks.remove(key)
		return true
	}
	e.ExpireAt = ms
	e.Version = t.ks.nextVersion()
	return true
}

// Persist clears the TTL of key and reports whether one was set.
func (t *Txn) Persist(key string) bool {
	t.mustWrite()
	e, ok := t.entry(key)
	if !ok || e.ExpireAt == 0 {
		return false
	}
	e.ExpireAt = 0
	e.Version = t.ks.nextVersion()
	return true
}

// TTL returns the remaining time to live of key in milliseconds,
// TTLNoExpiry for a persistent key or TTLNoKey for an absent one.
func (t *Txn) TTL(key string) int64 {
	e, ok := t.entry(key)
	if !ok {
		return TTLNoKey
	}
	if e.ExpireAt == 0 {
		return TTLNoExpiry
	}
	return e.ExpireAt - t.now
}

// Keys returns the live keys matching pattern, sorted. It requires every
// stripe to be locked.
func (t *Txn) Keys(pattern string) []string {
	var out []string
	t.ks.data.RangeLocked(func(key string, e *Entry) bool {
		if !e.expired(t.now) && glob.Match(pattern, key) {
			out = append(out, key)
		}
		return true
	})
	sort.Strings(out)
	return out
}

// Len returns the number of live keys. It requires every stripe to be
// locked.
func (t *Txn) Len() int {
	n := 0
	t.ks.data.RangeLocked(func(_ string, e *Entry) bool {
		if !e.expired(t.now) {
			n++
		}
		return true
	})
	return n
}

// Flush removes every key. It requires every stripe to be write-locked.
func (t *Txn) Flush() {
	t.mustWrite()
	t.ks.data.ClearLocked()
	v := t.ks.nextVersion()
	for i := range t.ks.removed {
		t.ks.removed[i].Store(v)
	}
}
