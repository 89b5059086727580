package engine

import (
	"math"
	"time"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// Del removes keys and returns how many existed.
func (o *Ops) Del(keys ...string) int64 {
	var n int64
	for _, k := range keys {
		if o.txn.Delete(k) {
			n++
		}
	}
	return n
}

// Exists counts the keys that exist; repeated keys count repeatedly.
func (o *Ops) Exists(keys ...string) int64 {
	var n int64
	for _, k := range keys {
		if o.txn.Exists(k) {
			n++
		}
	}
	return n
}

// Type returns the type name of key, or "none".
func (o *Ops) Type(key string) string {
	v, ok := o.txn.Get(key)
	if !ok {
		return "none"
	}
	return v.Kind().String()
}

// Expire sets a relative time to live. A non-positive ttl deletes the key.
// It reports whether the key existed.
func (o *Ops) Expire(key string, ttl time.Duration) bool {
	return o.txn.Expire(key, time.UnixMilli(o.txn.Now()).Add(ttl))
}

// Persist clears the time to live of key.
func (o *Ops) Persist(key string) bool {
	return o.txn.Persist(key)
}

// PTTL returns the remaining time to live in milliseconds, -1 for a
// persistent key and -2 for an absent one.
func (o *Ops) PTTL(key string) int64 {
	return o.txn.TTL(key)
}

// Keys returns the keys matching pattern. The caller must hold every
// stripe.
func (o *Ops) Keys(pattern string) []string {
	keys := o.txn.Keys(pattern)
	if keys == nil {
		return []string{}
	}
	return keys
}

// DBSize returns the number of live keys. The caller must hold every
// stripe.
func (o *Ops) DBSize() int64 {
	return int64(o.txn.Len())
}

// Flush removes every key. The caller must hold every stripe.
func (o *Ops) Flush() {
	o.txn.Flush()
}

// Locked API.

// Del removes keys.
func (e *Engine) Del(keys ...string) int64 {
	n, _ := update(e, keys, func(o *Ops) (int64, error) { return o.Del(keys...), nil })
	return n
}

// Exists counts the keys that exist.
func (e *Engine) Exists(keys ...string) int64 {
	n, _ := view(e, keys, func(o *Ops) (int64, error) { return o.Exists(keys...), nil })
	return n
}

// Expire sets a relative time to live on key.
func (e *Engine) Expire(key string, ttl time.Duration) bool {
	ok, _ := update(e, []string{key}, func(o *Ops) (bool, error) { return o.Expire(key, ttl), nil })
	return ok
}

// Version returns the write version of key; see keyspace.Txn.Version.
func (e *Engine) Version(key string) uint64 {
	// Write-locked so an expired entry is purged before its version is read.
	v, _ := update(e, []string{key}, func(o *Ops) (uint64, error) { return o.txn.Version(key), nil })
	return v
}

// Keys returns every key matching pattern.
func (e *Engine) Keys(pattern string) []string {
	keys, _ := viewAll(e, func(o *Ops) ([]string, error) { return o.Keys(pattern), nil })
	return keys
}

// DBSize returns the number of live keys.
func (e *Engine) DBSize() int64 {
	n, _ := viewAll(e, func(o *Ops) (int64, error) { return o.DBSize(), nil })
	return n
}

// Flush removes every key.
func (e *Engine) Flush() {
	_, _ = updateAll(e, func(o *Ops) (struct{}, error) {
		o.Flush()
		return struct{}{}, nil
	})
}

// Commands.

func init() {
	register(
		commandSpec{"DEL", -2, flagWrite, allArgs, cmdDel},
		commandSpec{"UNLINK", -2, flagWrite, allArgs, cmdDel},
		commandSpec{"EXISTS", -2, 0, allArgs, cmdExists},
		commandSpec{"TYPE", 2, 0, firstKey, cmdType},
		commandSpec{"EXPIRE", 3, flagWrite, firstKey, expireCmd(time.Second)},
		commandSpec{"PEXPIRE", 3, flagWrite, firstKey, expireCmd(time.Millisecond)},
		commandSpec{"PERSIST", 2, flagWrite, firstKey, cmdPersist},
		commandSpec{"TTL", 2, 0, firstKey, cmdTTL},
		commandSpec{"PTTL", 2, 0, firstKey, cmdPTTL},
		commandSpec{"KEYS", 2, flagAllKeys, noKeys, cmdKeys},
		commandSpec{"DBSIZE", 1, flagAllKeys, noKeys, cmdDBSize},
		commandSpec{"FLUSHALL", -1, flagWrite | flagAllKeys, noKeys, cmdFlush},
		commandSpec{"FLUSHDB", -1, flagWrite | flagAllKeys, noKeys, cmdFlush},
	)
}

func cmdDel(o *Ops, args []string) (any, error) {
	return o.Del(args...), nil
}

func cmdExists(o *Ops, args []string) (any, error) {
	return o.Exists(args...), nil
}

func cmdType(o *Ops, args []string) (any, error) {
	return Status(o.Type(args[0])), nil
}

func expireCmd(unit time.Duration) handlerFunc {
	return func(o *Ops, args []string) (any, error) {
		n, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		if n > math.MaxInt64/int64(unit) || n < math.MinInt64/int64(unit) {
			return nil, domain.ErrInvalidExpire.WithMessage("invalid expire time in 'expire' command")
		}
		return boolInt(o.Expire(args[0], time.Duration(n)*unit)), nil
	}
}

func cmdPersist(o *Ops, args []string) (any, error) {
	return boolInt(o.Persist(args[0])), nil
}

func cmdTTL(o *Ops, args []string) (any, error) {
	ms := o.PTTL(args[0])
	if ms == keyspace.TTLNoKey || ms == keyspace.TTLNoExpiry {
		return ms, nil
	}
	return (ms + 500) / 1000, nil
}

func cmdPTTL(o *Ops, args []string) (any, error) {
	return o.PTTL(args[0]), nil
}

func cmdKeys(o *Ops, args []string) (any, error) {
	return o.Keys(args[0]), nil
}

func cmdDBSize(o *Ops, _ []string) (any, error) {
	return o.DBSize(), nil
}

func cmdFlush(o *Ops, args []string) (any, error) {
	for _, a := range args {
		if !isOpt(a, "ASYNC") && !isOpt(a, "SYNC") {
			return nil, domain.ErrSyntax
		}
	}
	o.Flush()
	return OK, nil
}
