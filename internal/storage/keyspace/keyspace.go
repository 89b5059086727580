package keyspace

import (
	"sync/atomic"
	"time"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/pkg/cmap"
)

// DefaultShards is the default stripe count.
const DefaultShards = 64

// Clock returns the current time.
type Clock func() time.Time

// Entry is the stored form of a value.
type Entry struct {
	Value domain.Value

	// ExpireAt is the expiration time in unix milliseconds; 0 means never.
	ExpireAt int64

	// Version changes on every write to the key.
	Version uint64
}

func (e *Entry) expired(now int64) bool {
	return e.ExpireAt > 0 && e.ExpireAt <= now
}

// KeySpace is a concurrent key -> Entry map.
type KeySpace struct {
	data    *cmap.Map[*Entry]
	clock   Clock
	version atomic.Uint64

	// removed holds, per stripe, the version of the last removal. It is the
	// version an absent key reports, so a key that was created and deleted
	// again never looks unchanged.
	removed []atomic.Uint64
}

// Option configures a KeySpace.
type Option func(*ksOptions)

type ksOptions struct {
	shards int
	clock  Clock
}

// WithShards sets the stripe count. It must be a power of two.
func WithShards(n int) Option {
	return func(o *ksOptions) {
		o.shards = n
	}
}

// WithClock replaces the wall clock used for expiration.
func WithClock(c Clock) Option {
	return func(o *ksOptions) {
		o.clock = c
	}
}

// New creates an empty key space.
func New(opts ...Option) *KeySpace {
	o := ksOptions{shards: DefaultShards, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	data := cmap.NewWithShards[*Entry](o.shards)
	return &KeySpace{
		data:    data,
		clock:   o.clock,
		removed: make([]atomic.Uint64, data.ShardCount()),
	}
}

func (ks *KeySpace) nowMillis() int64 {
	return ks.clock().UnixMilli()
}

func (ks *KeySpace) nextVersion() uint64 {
	return ks.version.Add(1)
}

// remove deletes key and records the removal on its stripe. The stripe
// must be write-locked.
func (ks *KeySpace) remove(key string) {
	if ks.data.Remove(key) {
		ks.removed[ks.data.ShardIndex(key)].Store(ks.nextVersion())
	}
}

func (ks *KeySpace) removedVersion(key string) uint64 {
	return ks.removed[ks.data.ShardIndex(key)].Load()
}

func (ks *KeySpace) txn(writable bool) *Txn {
	return &Txn{ks: ks, now: ks.nowMillis(), writable: writable}
}

// View runs fn with read locks held on the stripes of keys.
func (ks *KeySpace) View(keys []string, fn func(*Txn) error) error {
	unlock := ks.data.RLock(keys...)
	defer unlock()
	return fn(ks.txn(false))
}

// Update runs fn with write locks held on the stripes of keys.
func (ks *KeySpace) Update(keys []string, fn func(*Txn) error) error {
	unlock := ks.data.Lock(keys...)
	defer unlock()
	return fn(ks.txn(true))
}

// ViewAll runs fn with every stripe read-locked.
func (ks *KeySpace) ViewAll(fn func(*Txn) error) error {
	unlock := ks.data.RLockAll()
	defer unlock()
	return fn(ks.txn(false))
}

// UpdateAll runs fn with every stripe write-locked.
func (ks *KeySpace) UpdateAll(fn func(*Txn) error) error {
	unlock := ks.data.LockAll()
	defer unlock()
	return fn(ks.txn(true))
}

// Get returns the live value stored under key.
//
// Containers are returned by reference and must not be mutated outside
// Update.
func (ks *KeySpace) Get(key string) (domain.Value, bool) {
	var (
		v  domain.Value
		ok bool
	)
	_ = ks.View([]string{key}, func(txn *Txn) error {
		v, ok = txn.Get(key)
		return nil
	})
	return v, ok
}

// Set stores v under key, replacing any previous value and TTL.
func (ks *KeySpace) Set(key string, v domain.Value) {
	_ = ks.Update([]string{key}, func(txn *Txn) error {
		txn.Set(key, v)
		return nil
	})
}

// Delete removes key and reports whether a live value was present.
func (ks *KeySpace) Delete(key string) bool {
	var ok bool
	_ = ks.Update([]string{key}, func(txn *Txn) error {
		ok = txn.Delete(key)
		return nil
	})
	return ok
}

// Exists reports whether key holds a live value.
func (ks *KeySpace) Exists(key string) bool {
	var ok bool
	_ = ks.View([]string{key}, func(txn *Txn) error {
		ok = txn.Exists(key)
		return nil
	})
	return ok
}

// Size returns the number of stored entries, including expired entries not
// yet purged. Stripes are counted one at a time.
func (ks *KeySpace) Size() int {
	return ks.data.Count()
}

// PurgeExpired deletes expired entries stripe by stripe and returns how many
// were removed. limit caps the deletions; limit <= 0 means no cap.
func (ks *KeySpace) PurgeExpired(limit int) int {
	now := ks.nowMillis()
	purged := 0
	for i := 0; i < ks.data.ShardCount(); i++ {
		if limit > 0 && purged >= limit {
			break
		}
		unlock := ks.data.LockShard(i)
		n := 0
		ks.data.RangeShard(i, func(key string, e *Entry) bool {
			if e.expired(now) {
				ks.data.Remove(key)
				n++
			}
			return limit <= 0 || purged+n < limit
		})
		if n > 0 {
			ks.removed[i].Store(ks.nextVersion())
		}
		purged += n
		unlock()
	}
	return purged
}
