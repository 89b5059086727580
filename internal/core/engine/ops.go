package engine

import (
	"math/rand/v2"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// Ops runs typed operations inside an open keyspace transaction. It is
// valid only for the duration of the callback that produced it.
type Ops struct {
	txn     *keyspace.Txn
	newRand func() *rand.Rand
}

// Txn returns the underlying keyspace transaction.
func (o *Ops) Txn() *keyspace.Txn {
	return o.txn
}

// lookup returns the live value under key, nil if absent, or ErrWrongType.
func (o *Ops) lookup(key string, kind domain.Kind) (domain.Value, error) {
	v, ok := o.txn.Get(key)
	if !ok {
		return nil, nil
	}
	if v.Kind() != kind {
		return nil, domain.ErrWrongType
	}
	return v, nil
}

// save publishes a container after an in-place mutation. A container that
// did not exist before is stored only if it is non-empty.
func (o *Ops) save(key string, v domain.Value, existed bool) {
	if existed {
		o.txn.Touch(key)
		return
	}
	if v.Len() > 0 {
		o.txn.Set(key, v)
	}
}

func (o *Ops) stringValue(key string) (string, bool, error) {
	v, err := o.lookup(key, domain.KindString)
	if err != nil || v == nil {
		return "", false, err
	}
	return string(v.(domain.String)), true, nil
}

func (o *Ops) hash(key string) (*domain.Hash, error) {
	v, err := o.lookup(key, domain.KindHash)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*domain.Hash), nil
}

func (o *Ops) hashForWrite(key string) (*domain.Hash, bool, error) {
	h, err := o.hash(key)
	if err != nil {
		return nil, false, err
	}
	if h == nil {
		return domain.NewHash(), false, nil
	}
	return h, true, nil
}

func (o *Ops) list(key string) (*domain.List, error) {
	v, err := o.lookup(key, domain.KindList)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*domain.List), nil
}

func (o *Ops) listForWrite(key string) (*domain.List, bool, error) {
	l, err := o.list(key)
	if err != nil {
		return nil, false, err
	}
	if l == nil {
		return domain.NewList(), false, nil
	}
	return l, true, nil
}

func (o *Ops) set(key string) (*domain.Set, error) {
	v, err := o.lookup(key, domain.KindSet)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*domain.Set), nil
}

func (o *Ops) setForWrite(key string) (*domain.Set, bool, error) {
	s, err := o.set(key)
	if err != nil {
		return nil, false, err
	}
	if s == nil {
		return domain.NewSet(), false, nil
	}
	return s, true, nil
}

func (o *Ops) zset(key string) (*domain.SortedSet, error) {
	v, err := o.lookup(key, domain.KindSortedSet)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*domain.SortedSet), nil
}

func (o *Ops) zsetForWrite(key string) (*domain.SortedSet, bool, error) {
	z, err := o.zset(key)
	if err != nil {
		return nil, false, err
	}
	if z == nil {
		return domain.NewSortedSet(), false, nil
	}
	return z, true, nil
}
