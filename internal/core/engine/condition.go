package engine

import (
	"fmt"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// Condition is a precondition on one key, evaluated at commit while the
// key is locked.
type Condition interface {
	Key() string
	Holds(txn *keyspace.Txn) bool
	String() string
}

type condition struct {
	key   string
	desc  string
	check func(v domain.Value, ok bool, txn *keyspace.Txn) bool
}

func (c *condition) Key() string    { return c.key }
func (c *condition) String() string { return c.desc }

func (c *condition) Holds(txn *keyspace.Txn) bool {
	v, ok := txn.Get(c.key)
	return c.check(v, ok, txn)
}

func newCondition(key, desc string, check func(v domain.Value, ok bool, txn *keyspace.Txn) bool) Condition {
	return &condition{key: key, desc: desc, check: check}
}

// KeyExists holds when key exists.
func KeyExists(key string) Condition {
	return newCondition(key, "exists "+key, func(_ domain.Value, ok bool, _ *keyspace.Txn) bool {
		return ok
	})
}

// KeyNotExists holds when key is absent.
func KeyNotExists(key string) Condition {
	return newCondition(key, "not exists "+key, func(_ domain.Value, ok bool, _ *keyspace.Txn) bool {
		return !ok
	})
}

// StringEqual holds when key is a string equal to value.
func StringEqual(key, value string) Condition {
	return newCondition(key, fmt.Sprintf("%s == %q", key, value), func(v domain.Value, ok bool, _ *keyspace.Txn) bool {
		s, isStr := v.(domain.String)
		return ok && isStr && string(s) == value
	})
}

// StringNotEqual holds unless key is a string equal to value.
func StringNotEqual(key, value string) Condition {
	return newCondition(key, fmt.Sprintf("%s != %q", key, value), func(v domain.Value, ok bool, _ *keyspace.Txn) bool {
		s, isStr := v.(domain.String)
		return !ok || !isStr || string(s) != value
	})
}

func hashField(v domain.Value, field string) (string, bool) {
	h, ok := v.(*domain.Hash)
	if !ok {
		return "", false
	}
	return h.Get(field)
}

// HashFieldExists holds when key is a hash with field set.
func HashFieldExists(key, field string) Condition {
	return newCondition(key, fmt.Sprintf("%s has field %s", key, field), func(v domain.Value, _ bool, _ *keyspace.Txn) bool {
		_, ok := hashField(v, field)
		return ok
	})
}

// HashFieldNotExists holds unless key is a hash with field set.
func HashFieldNotExists(key, field string) Condition {
	return newCondition(key, fmt.Sprintf("%s lacks field %s", key, field), func(v domain.Value, _ bool, _ *keyspace.Txn) bool {
		_, ok := hashField(v, field)
		return !ok
	})
}

// HashFieldEqual holds when field of the hash at key equals value.
func HashFieldEqual(key, field, value string) Condition {
	return newCondition(key, fmt.Sprintf("%s.%s == %q", key, field, value), func(v domain.Value, _ bool, _ *keyspace.Txn) bool {
		got, ok := hashField(v, field)
		return ok && got == value
	})
}

// SetContains holds when key is a set containing member.
func SetContains(key, member string) Condition {
	return newCondition(key, fmt.Sprintf("%s contains %s", key, member), func(v domain.Value, _ bool, _ *keyspace.Txn) bool {
		s, ok := v.(*domain.Set)
		return ok && s.Contains(member)
	})
}

// SetNotContains holds unless key is a set containing member.
func SetNotContains(key, member string) Condition {
	return newCondition(key, fmt.Sprintf("%s lacks %s", key, member), func(v domain.Value, _ bool, _ *keyspace.Txn) bool {
		s, ok := v.(*domain.Set)
		return !ok || !s.Contains(member)
	})
}

// SortedSetContains holds when key is a sorted set containing member.
func SortedSetContains(key, member string) Condition {
	return newCondition(key, fmt.Sprintf("%s ranks %s", key, member), func(v domain.Value, _ bool, _ *keyspace.Txn) bool {
		z, ok := v.(*domain.SortedSet)
		if !ok {
			return false
		}
		_, ok = z.Score(member)
		return ok
	})
}

// LengthEqual holds when the length of key is n; an absent key has length
// 0 and a string its byte length.
func LengthEqual(key string, n int) Condition {
	return newCondition(key, fmt.Sprintf("len(%s) == %d", key, n), func(v domain.Value, ok bool, _ *keyspace.Txn) bool {
		if !ok {
			return n == 0
		}
		return v.Len() == n
	})
}

// Unchanged holds while the write version of key is still version. Any
// write or removal of the key in between breaks it.
func Unchanged(key string, version uint64) Condition {
	return newCondition(key, fmt.Sprintf("%s@%d", key, version), func(_ domain.Value, _ bool, txn *keyspace.Txn) bool {
		return txn.Version(key) == version
	})
}

// Watch captures the current version of key as an Unchanged condition.
func (e *Engine) Watch(key string) Condition {
	return Unchanged(key, e.Version(key))
}
