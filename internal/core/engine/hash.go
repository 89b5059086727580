package engine

import (
	"math"
	"strconv"

	"github.com/yndnr/meshkv/internal/core/domain"
)

// HSet stores field/value pairs and returns the number of new fields.
func (o *Ops) HSet(key string, entries ...domain.HashEntry) (int64, error) {
	h, existed, err := o.hashForWrite(key)
	if err != nil {
		return 0, err
	}
	var added int64
	for _, e := range entries {
		if h.Set(e.Field, e.Value) {
			added++
		}
	}
	o.save(key, h, existed)
	return added, nil
}

// HGet returns the value of field.
func (o *Ops) HGet(key, field string) (string, bool, error) {
	h, err := o.hash(key)
	if err != nil || h == nil {
		return "", false, err
	}
	v, ok := h.Get(field)
	return v, ok, nil
}

// HMGet returns the value of each field; missing fields are nil.
func (o *Ops) HMGet(key string, fields ...string) ([]any, error) {
	h, err := o.hash(key)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(fields))
	if h == nil {
		return out, nil
	}
	for i, f := range fields {
		if v, ok := h.Get(f); ok {
			out[i] = v
		}
	}
	return out, nil
}

// HGetAll returns every field/value pair sorted by field.
func (o *Ops) HGetAll(key string) ([]domain.HashEntry, error) {
	h, err := o.hash(key)
	if err != nil || h == nil {
		return []domain.HashEntry{}, err
	}
	return h.Entries(), nil
}

// HKeys returns the field names sorted.
func (o *Ops) HKeys(key string) ([]string, error) {
	h, err := o.hash(key)
	if err != nil || h == nil {
		return []string{}, err
	}
	return h.Fields(), nil
}

// HVals returns the values ordered by field name.
func (o *Ops) HVals(key string) ([]string, error) {
	h, err := o.hash(key)
	if err != nil || h == nil {
		return []string{}, err
	}
	return h.Values(), nil
}

// HLen returns the number of fields.
func (o *Ops) HLen(key string) (int64, error) {
	h, err := o.hash(key)
	if err != nil || h == nil {
		return 0, err
	}
	return int64(h.Len()), nil
}

// HExists reports whether field is set.
func (o *Ops) HExists(key, field string) (bool, error) {
	h, err := o.hash(key)
	if err != nil || h == nil {
		return false, err
	}
	return h.Exists(field), nil
}

// HDel removes fields and returns how many were present.
func (o *Ops) HDel(key string, fields ...string) (int64, error) {
	h, err := o.hash(key)
	if err != nil || h == nil {
		return 0, err
	}
	var removed int64
	for _, f := range fields {
		if h.Delete(f) {
			removed++
		}
	}
	if removed > 0 {
		o.save(key, h, true)
	}
	return removed, nil
}

// HIncrBy adds delta to the integer in field, starting from 0.
func (o *Ops) HIncrBy(key, field string, delta int64) (int64, error) {
	h, existed, err := o.hashForWrite(key)
	if err != nil {
		return 0, err
	}
	var cur int64
	if s, ok := h.Get(field); ok {
		if cur, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, domain.ErrHashNotInteger
		}
	}
	if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
		return 0, domain.ErrOverflow
	}
	cur += delta
	h.Set(field, formatInt(cur))
	o.save(key, h, existed)
	return cur, nil
}

// HIncrByFloat adds delta to the number in field, starting from 0. A
// negative delta decrements.
func (o *Ops) HIncrByFloat(key, field string, delta float64) (float64, error) {
	h, existed, err := o.hashForWrite(key)
	if err != nil {
		return 0, err
	}
	var cur float64
	if s, ok := h.Get(field); ok {
		cur, err = strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(cur) {
			return 0, domain.ErrHashNotFloat
		}
	}
	cur += delta
	if math.IsNaN(cur) || math.IsInf(cur, 0) {
		return 0, domain.ErrNaN
	}
	h.Set(field, formatFloat(cur))
	o.save(key, h, existed)
	return cur, nil
}

// Locked API.

// HSet stores field/value pairs.
func (e *Engine) HSet(key string, entries ...domain.HashEntry) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.HSet(key, entries...) })
}

// HGetAll returns every field/value pair of key.
func (e *Engine) HGetAll(key string) ([]domain.HashEntry, error) {
	return view(e, []string{key}, func(o *Ops) ([]domain.HashEntry, error) { return o.HGetAll(key) })
}

// HIncrBy adds delta to the integer in field.
func (e *Engine) HIncrBy(key, field string, delta int64) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.HIncrBy(key, field, delta) })
}

// HIncrByFloat adds delta to the number in field.
func (e *Engine) HIncrByFloat(key, field string, delta float64) (float64, error) {
	return update(e, []string{key}, func(o *Ops) (float64, error) { return o.HIncrByFloat(key, field, delta) })
}

// Commands.

func init() {
	register(
		commandSpec{"HSET", -4, flagWrite, firstKey, cmdHSet},
		commandSpec{"HMSET", -4, flagWrite, firstKey, cmdHMSet},
		commandSpec{"HGET", 3, 0, firstKey, cmdHGet},
		commandSpec{"HMGET", -3, 0, firstKey, cmdHMGet},
		commandSpec{"HGETALL", 2, 0, firstKey, cmdHGetAll},
		commandSpec{"HKEYS", 2, 0, firstKey, cmdHKeys},
		commandSpec{"HVALS", 2, 0, firstKey, cmdHVals},
		commandSpec{"HLEN", 2, 0, firstKey, cmdHLen},
		commandSpec{"HEXISTS", 3, 0, firstKey, cmdHExists},
		commandSpec{"HDEL", -3, flagWrite, firstKey, cmdHDel},
		commandSpec{"HINCRBY", 4, flagWrite, firstKey, cmdHIncrBy},
		commandSpec{"HINCRBYFLOAT", 4, flagWrite, firstKey, cmdHIncrByFloat},
	)
}

func hashEntries(cmd string, args []string) ([]domain.HashEntry, error) {
	if len(args)%2 != 0 {
		return nil, domain.WrongArity(cmd)
	}
	entries := make([]domain.HashEntry, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		entries = append(entries, domain.HashEntry{Field: args[i], Value: args[i+1]})
	}
	return entries, nil
}

func cmdHSet(o *Ops, args []string) (any, error) {
	entries, err := hashEntries("hset", args[1:])
	if err != nil {
		return nil, err
	}
	return o.HSet(args[0], entries...)
}

func cmdHMSet(o *Ops, args []string) (any, error) {
	entries, err := hashEntries("hmset", args[1:])
	if err != nil {
		return nil, err
	}
	if _, err := o.HSet(args[0], entries...); err != nil {
		return nil, err
	}
	return OK, nil
}

func cmdHGet(o *Ops, args []string) (any, error) {
	v, ok, err := o.HGet(args[0], args[1])
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func cmdHMGet(o *Ops, args []string) (any, error) {
	return o.HMGet(args[0], args[1:]...)
}

func cmdHGetAll(o *Ops, args []string) (any, error) {
	entries, err := o.HGetAll(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, 2*len(entries))
	for _, e := range entries {
		out = append(out, e.Field, e.Value)
	}
	return out, nil
}

func cmdHKeys(o *Ops, args []string) (any, error) {
	return o.HKeys(args[0])
}

func cmdHVals(o *Ops, args []string) (any, error) {
	return o.HVals(args[0])
}

func cmdHLen(o *Ops, args []string) (any, error) {
	return o.HLen(args[0])
}

func cmdHExists(o *Ops, args []string) (any, error) {
	ok, err := o.HExists(args[0], args[1])
	return boolInt(ok), err
}

func cmdHDel(o *Ops, args []string) (any, error) {
	return o.HDel(args[0], args[1:]...)
}

func cmdHIncrBy(o *Ops, args []string) (any, error) {
	n, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	return o.HIncrBy(args[0], args[1], n)
}

func cmdHIncrByFloat(o *Ops, args []string) (any, error) {
	f, err := parseFloat(args[2])
	if err != nil || math.IsInf(f, 0) {
		return nil, domain.ErrNotFloat
	}
	v, err := o.HIncrByFloat(args[0], args[1], f)
	if err != nil {
		return nil, err
	}
	return formatFloat(v), nil
}
