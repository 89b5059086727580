package engine

import (
	"math"
	"strconv"
	"time"

	"github.com/yndnr/meshkv/internal/core/domain"
)

// SetCond restricts when Set writes.
type SetCond uint8

const (
	SetAlways SetCond = iota
	SetIfNotExists
	SetIfExists
)

// SetOptions modifies Set.
type SetOptions struct {
	Cond    SetCond
	TTL     time.Duration
	KeepTTL bool
}

// Set stores value under key, replacing a value of any type. It reports
// false without writing when Cond does not hold.
func (o *Ops) Set(key, value string, opts SetOptions) (bool, error) {
	exists := o.txn.Exists(key)
	switch opts.Cond {
	case SetIfNotExists:
		if exists {
			return false, nil
		}
	case SetIfExists:
		if !exists {
			return false, nil
		}
	}

	if opts.KeepTTL {
		o.txn.Replace(key, domain.String(value))
	} else {
		o.txn.Set(key, domain.String(value))
	}
	if opts.TTL > 0 {
		o.txn.Expire(key, time.UnixMilli(o.txn.Now()).Add(opts.TTL))
	}
	return true, nil
}

// Get returns the string under key.
func (o *Ops) Get(key string) (string, bool, error) {
	return o.stringValue(key)
}

// GetSet stores value and returns the previous string.
func (o *Ops) GetSet(key, value string) (string, bool, error) {
	old, ok, err := o.stringValue(key)
	if err != nil {
		return "", false, err
	}
	o.txn.Set(key, domain.String(value))
	return old, ok, nil
}

// Append appends value to the string under key and returns the new length.
func (o *Ops) Append(key, value string) (int64, error) {
	old, _, err := o.stringValue(key)
	if err != nil {
		return 0, err
	}
	s := old + value
	o.txn.Replace(key, domain.String(s))
	return int64(len(s)), nil
}

// StrLen returns the byte length of the string under key.
func (o *Ops) StrLen(key string) (int64, error) {
	s, _, err := o.stringValue(key)
	return int64(len(s)), err
}

// IncrBy adds delta to the integer under key, starting from 0.
func (o *Ops) IncrBy(key string, delta int64) (int64, error) {
	s, ok, err := o.stringValue(key)
	if err != nil {
		return 0, err
	}
	var cur int64
	if ok {
		if cur, err = parseInt(s); err != nil {
			return 0, err
		}
	}
	if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
		return 0, domain.ErrOverflow
	}
	cur += delta
	o.txn.Replace(key, domain.String(formatInt(cur)))
	return cur, nil
}

// DecrBy subtracts delta from the integer under key, starting from 0.
func (o *Ops) DecrBy(key string, delta int64) (int64, error) {
	if delta == math.MinInt64 {
		return 0, domain.ErrOverflow
	}
	return o.IncrBy(key, -delta)
}

// IncrByFloat adds delta to the number under key, starting from 0.
func (o *Ops) IncrByFloat(key string, delta float64) (float64, error) {
	s, ok, err := o.stringValue(key)
	if err != nil {
		return 0, err
	}
	var cur float64
	if ok {
		if cur, err = parseFloat(s); err != nil {
			return 0, err
		}
	}
	cur += delta
	if math.IsNaN(cur) || math.IsInf(cur, 0) {
		return 0, domain.ErrNaN
	}
	o.txn.Replace(key, domain.String(formatFloat(cur)))
	return cur, nil
}

// MGet returns the string under each key; absent and non-string keys are
// nil.
func (o *Ops) MGet(keys ...string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		if s, ok, err := o.stringValue(k); err == nil && ok {
			out[i] = s
		}
	}
	return out
}

// MSet stores each key/value pair, clearing TTLs.
func (o *Ops) MSet(pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		o.txn.Set(pairs[i], domain.String(pairs[i+1]))
	}
}

// Locked API.

// Set stores value under key.
func (e *Engine) Set(key, value string, opts SetOptions) (bool, error) {
	return update(e, []string{key}, func(o *Ops) (bool, error) { return o.Set(key, value, opts) })
}

// Get returns the string under key.
func (e *Engine) Get(key string) (string, bool, error) {
	var (
		s  string
		ok bool
	)
	err := e.View([]string{key}, func(o *Ops) error {
		var err error
		s, ok, err = o.Get(key)
		return err
	})
	return s, ok, err
}

// Append appends value to the string under key.
func (e *Engine) Append(key, value string) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.Append(key, value) })
}

// IncrBy adds delta to the integer under key.
func (e *Engine) IncrBy(key string, delta int64) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.IncrBy(key, delta) })
}

// DecrBy subtracts delta from the integer under key.
func (e *Engine) DecrBy(key string, delta int64) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.DecrBy(key, delta) })
}

// IncrByFloat adds delta to the number under key.
func (e *Engine) IncrByFloat(key string, delta float64) (float64, error) {
	return update(e, []string{key}, func(o *Ops) (float64, error) { return o.IncrByFloat(key, delta) })
}

// Commands.

func init() {
	register(
		commandSpec{"SET", -3, flagWrite, firstKey, cmdSet},
		commandSpec{"SETNX", 3, flagWrite, firstKey, cmdSetNX},
		commandSpec{"GET", 2, 0, firstKey, cmdGet},
		commandSpec{"GETSET", 3, flagWrite, firstKey, cmdGetSet},
		commandSpec{"APPEND", 3, flagWrite, firstKey, cmdAppend},
		commandSpec{"STRLEN", 2, 0, firstKey, cmdStrLen},
		commandSpec{"INCR", 2, flagWrite, firstKey, cmdIncr},
		commandSpec{"DECR", 2, flagWrite, firstKey, cmdDecr},
		commandSpec{"INCRBY", 3, flagWrite, firstKey, cmdIncrBy},
		commandSpec{"DECRBY", 3, flagWrite, firstKey, cmdDecrBy},
		commandSpec{"INCRBYFLOAT", 3, flagWrite, firstKey, cmdIncrByFloat},
		commandSpec{"MGET", -2, 0, allArgs, cmdMGet},
		commandSpec{"MSET", -3, flagWrite, everyOtherKey, cmdMSet},
	)
}

func parseSetOptions(args []string) (SetOptions, error) {
	var opts SetOptions
	hasTTL := false
	for i := 0; i < len(args); i++ {
		switch {
		case isOpt(args[i], "NX") && opts.Cond == SetAlways:
			opts.Cond = SetIfNotExists
		case isOpt(args[i], "XX") && opts.Cond == SetAlways:
			opts.Cond = SetIfExists
		case isOpt(args[i], "KEEPTTL") && !hasTTL:
			opts.KeepTTL = true
		case (isOpt(args[i], "EX") || isOpt(args[i], "PX")) && !hasTTL && !opts.KeepTTL && i+1 < len(args):
			n, err := parseInt(args[i+1])
			if err != nil {
				return opts, err
			}
			if n <= 0 {
				return opts, domain.ErrInvalidExpire.WithMessage("invalid expire time in 'set' command")
			}
			unit := time.Second
			if isOpt(args[i], "PX") {
				unit = time.Millisecond
			}
			if n > math.MaxInt64/int64(unit) {
				return opts, domain.ErrInvalidExpire.WithMessage("invalid expire time in 'set' command")
			}
			opts.TTL = time.Duration(n) * unit
			hasTTL = true
			i++
		default:
			return opts, domain.ErrSyntax
		}
	}
	return opts, nil
}

func cmdSet(o *Ops, args []string) (any, error) {
	opts, err := parseSetOptions(args[2:])
	if err != nil {
		return nil, err
	}
	ok, err := o.Set(args[0], args[1], opts)
	if err != nil || !ok {
		return nil, err
	}
	return OK, nil
}

func cmdSetNX(o *Ops, args []string) (any, error) {
	ok, err := o.Set(args[0], args[1], SetOptions{Cond: SetIfNotExists})
	return boolInt(ok), err
}

func cmdGet(o *Ops, args []string) (any, error) {
	s, ok, err := o.Get(args[0])
	if err != nil || !ok {
		return nil, err
	}
	return s, nil
}

func cmdGetSet(o *Ops, args []string) (any, error) {
	s, ok, err := o.GetSet(args[0], args[1])
	if err != nil || !ok {
		return nil, err
	}
	return s, nil
}

func cmdAppend(o *Ops, args []string) (any, error) {
	return o.Append(args[0], args[1])
}

func cmdStrLen(o *Ops, args []string) (any, error) {
	return o.StrLen(args[0])
}

func cmdIncr(o *Ops, args []string) (any, error) {
	return o.IncrBy(args[0], 1)
}

func cmdDecr(o *Ops, args []string) (any, error) {
	return o.DecrBy(args[0], 1)
}

func cmdIncrBy(o *Ops, args []string) (any, error) {
	n, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return o.IncrBy(args[0], n)
}

func cmdDecrBy(o *Ops, args []string) (any, error) {
	n, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return o.DecrBy(args[0], n)
}

func cmdIncrByFloat(o *Ops, args []string) (any, error) {
	f, err := strconv.ParseFloat(args[1], 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, domain.ErrNotFloat
	}
	v, err := o.IncrByFloat(args[0], f)
	if err != nil {
		return nil, err
	}
	return formatFloat(v), nil
}

func cmdMGet(o *Ops, args []string) (any, error) {
	return o.MGet(args...), nil
}

func cmdMSet(o *Ops, args []string) (any, error) {
	if len(args)%2 != 0 {
		return nil, domain.WrongArity("mset")
	}
	o.MSet(args...)
	return OK, nil
}
