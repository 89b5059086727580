package engine

import (
	"github.com/yndnr/meshkv/internal/core/domain"
)

// End selects the head or tail of a list.
type End uint8

const (
	Left End = iota
	Right
)

func parseEnd(s string) (End, error) {
	switch {
	case isOpt(s, "LEFT"):
		return Left, nil
	case isOpt(s, "RIGHT"):
		return Right, nil
	}
	return Left, domain.ErrSyntax
}

func (o *Ops) push(key string, end End, values []string) (int64, error) {
	l, existed, err := o.listForWrite(key)
	if err != nil {
		return 0, err
	}
	var n int
	if end == Left {
		n = l.PushFront(values...)
	} else {
		n = l.PushBack(values...)
	}
	o.save(key, l, existed)
	return int64(n), nil
}

// RPush appends values to the tail.
func (o *Ops) RPush(key string, values ...string) (int64, error) {
	return o.push(key, Right, values)
}

// LPush inserts values at the head, one after another.
func (o *Ops) LPush(key string, values ...string) (int64, error) {
	return o.push(key, Left, values)
}

// LLen returns the list length.
func (o *Ops) LLen(key string) (int64, error) {
	l, err := o.list(key)
	if err != nil || l == nil {
		return 0, err
	}
	return int64(l.Len()), nil
}

// LRange returns the inclusive range [start, stop], clamped.
func (o *Ops) LRange(key string, start, stop int) ([]string, error) {
	l, err := o.list(key)
	if err != nil || l == nil {
		return []string{}, err
	}
	return l.Range(start, stop), nil
}

// LTrim keeps only the inclusive range [start, stop].
func (o *Ops) LTrim(key string, start, stop int) error {
	l, err := o.list(key)
	if err != nil || l == nil {
		return err
	}
	l.Trim(start, stop)
	o.save(key, l, true)
	return nil
}

func (o *Ops) pop(key string, end End, count int) ([]string, error) {
	l, err := o.list(key)
	if err != nil || l == nil {
		return nil, err
	}
	out := make([]string, 0, min(count, l.Len()))
	for len(out) < count {
		var (
			v  string
			ok bool
		)
		if end == Left {
			v, ok = l.PopFront()
		} else {
			v, ok = l.PopBack()
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	if len(out) > 0 {
		o.save(key, l, true)
	}
	return out, nil
}

// LPop removes up to count elements from the head. It returns nil if the
// key is absent.
func (o *Ops) LPop(key string, count int) ([]string, error) {
	return o.pop(key, Left, count)
}

// RPop removes up to count elements from the tail. It returns nil if the
// key is absent.
func (o *Ops) RPop(key string, count int) ([]string, error) {
	return o.pop(key, Right, count)
}

// LRem removes occurrences of value: count > 0 from the head, count < 0
// from the tail, 0 all of them.
func (o *Ops) LRem(key string, count int, value string) (int64, error) {
	l, err := o.list(key)
	if err != nil || l == nil {
		return 0, err
	}
	n := l.Remove(value, count)
	if n > 0 {
		o.save(key, l, true)
	}
	return int64(n), nil
}

// LSet replaces the element at index.
func (o *Ops) LSet(key string, index int, value string) error {
	l, err := o.list(key)
	if err != nil {
		return err
	}
	if l == nil {
		return domain.ErrKeyAbsent
	}
	if err := l.Set(index, value); err != nil {
		return err
	}
	o.save(key, l, true)
	return nil
}

// LIndex returns the element at index.
func (o *Ops) LIndex(key string, index int) (string, bool, error) {
	l, err := o.list(key)
	if err != nil || l == nil {
		return "", false, err
	}
	v, ok := l.Index(index)
	return v, ok, nil
}

// LMove pops an element from the from end of src and pushes it onto the to
// end of dst. src and dst may be the same key.
func (o *Ops) LMove(src, dst string, from, to End) (string, bool, error) {
	sl, err := o.list(src)
	if err != nil {
		return "", false, err
	}
	if src != dst {
		if _, err := o.list(dst); err != nil {
			return "", false, err
		}
	}
	if sl == nil {
		return "", false, nil
	}

	var v string
	if from == Left {
		v, _ = sl.PopFront()
	} else {
		v, _ = sl.PopBack()
	}

	if src == dst {
		if to == Left {
			sl.PushFront(v)
		} else {
			sl.PushBack(v)
		}
		o.save(src, sl, true)
		return v, true, nil
	}

	dl, existed, _ := o.listForWrite(dst)
	if to == Left {
		dl.PushFront(v)
	} else {
		dl.PushBack(v)
	}
	o.save(src, sl, true)
	o.save(dst, dl, existed)
	return v, true, nil
}

// RPopLPush pops the tail of src and appends it to the tail of dst.
// Repeating it until src is empty leaves dst holding src reversed.
func (o *Ops) RPopLPush(src, dst string) (string, bool, error) {
	return o.LMove(src, dst, Right, Right)
}

// Locked API.

// RPush appends values to the tail of key.
func (e *Engine) RPush(key string, values ...string) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.RPush(key, values...) })
}

// LPush inserts values at the head of key.
func (e *Engine) LPush(key string, values ...string) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.LPush(key, values...) })
}

// LRange returns the inclusive range [start, stop] of key.
func (e *Engine) LRange(key string, start, stop int) ([]string, error) {
	return view(e, []string{key}, func(o *Ops) ([]string, error) { return o.LRange(key, start, stop) })
}

// LSet replaces the element at index.
func (e *Engine) LSet(key string, index int, value string) error {
	return e.Update([]string{key}, func(o *Ops) error { return o.LSet(key, index, value) })
}

// RPopLPush moves the tail of src to the tail of dst.
func (e *Engine) RPopLPush(src, dst string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := e.Update([]string{src, dst}, func(o *Ops) error {
		var err error
		v, ok, err = o.RPopLPush(src, dst)
		return err
	})
	return v, ok, err
}

// Commands.

func init() {
	register(
		commandSpec{"RPUSH", -3, flagWrite, firstKey, cmdRPush},
		commandSpec{"LPUSH", -3, flagWrite, firstKey, cmdLPush},
		commandSpec{"LLEN", 2, 0, firstKey, cmdLLen},
		commandSpec{"LRANGE", 4, 0, firstKey, cmdLRange},
		commandSpec{"LTRIM", 4, flagWrite, firstKey, cmdLTrim},
		commandSpec{"LPOP", -2, flagWrite, firstKey, cmdLPop},
		commandSpec{"RPOP", -2, flagWrite, firstKey, cmdRPop},
		commandSpec{"LREM", 4, flagWrite, firstKey, cmdLRem},
		commandSpec{"LSET", 4, flagWrite, firstKey, cmdLSet},
		commandSpec{"LINDEX", 3, 0, firstKey, cmdLIndex},
		commandSpec{"LMOVE", 5, flagWrite, firstTwoKeys, cmdLMove},
		commandSpec{"RPOPLPUSH", 3, flagWrite, firstTwoKeys, cmdRPopLPush},
	)
}

func cmdRPush(o *Ops, args []string) (any, error) {
	return o.RPush(args[0], args[1:]...)
}

func cmdLPush(o *Ops, args []string) (any, error) {
	return o.LPush(args[0], args[1:]...)
}

func cmdLLen(o *Ops, args []string) (any, error) {
	return o.LLen(args[0])
}

func parseRange(start, stop string) (int, int, error) {
	lo, err := parseIndex(start)
	if err != nil {
		return 0, 0, err
	}
	hi, err := parseIndex(stop)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func cmdLRange(o *Ops, args []string) (any, error) {
	start, stop, err := parseRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	return o.LRange(args[0], start, stop)
}

func cmdLTrim(o *Ops, args []string) (any, error) {
	start, stop, err := parseRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	if err := o.LTrim(args[0], start, stop); err != nil {
		return nil, err
	}
	return OK, nil
}

func popCommand(o *Ops, args []string, end End) (any, error) {
	if len(args) > 2 {
		return nil, domain.ErrSyntax
	}
	if len(args) == 1 {
		out, err := o.pop(args[0], end, 1)
		if err != nil || len(out) == 0 {
			return nil, err
		}
		return out[0], nil
	}
	count, err := parseIndex(args[1])
	if err != nil || count < 0 {
		return nil, domain.ErrOutOfRange.WithMessage("value is out of range, must be positive")
	}
	out, err := o.pop(args[0], end, count)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return NullArray{}, nil
	}
	return out, nil
}

func cmdLPop(o *Ops, args []string) (any, error) {
	return popCommand(o, args, Left)
}

func cmdRPop(o *Ops, args []string) (any, error) {
	return popCommand(o, args, Right)
}

func cmdLRem(o *Ops, args []string) (any, error) {
	count, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	return o.LRem(args[0], count, args[2])
}

func cmdLSet(o *Ops, args []string) (any, error) {
	index, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	if err := o.LSet(args[0], index, args[2]); err != nil {
		return nil, err
	}
	return OK, nil
}

func cmdLIndex(o *Ops, args []string) (any, error) {
	index, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	v, ok, err := o.LIndex(args[0], index)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func moveReply(v string, ok bool, err error) (any, error) {
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func cmdLMove(o *Ops, args []string) (any, error) {
	from, err := parseEnd(args[2])
	if err != nil {
		return nil, err
	}
	to, err := parseEnd(args[3])
	if err != nil {
		return nil, err
	}
	return moveReply(o.LMove(args[0], args[1], from, to))
}

func cmdRPopLPush(o *Ops, args []string) (any, error) {
	return moveReply(o.RPopLPush(args[0], args[1]))
}
