package engine

import (
	"sort"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/pkg/glob"
)

// SetOp is a set algebra operation.
type SetOp uint8

const (
	Union SetOp = iota
	Intersect
	Difference
)

// SAdd adds members and returns how many were new.
func (o *Ops) SAdd(key string, members ...string) (int64, error) {
	s, existed, err := o.setForWrite(key)
	if err != nil {
		return 0, err
	}
	n := s.Add(members...)
	if n > 0 || !existed {
		o.save(key, s, existed)
	}
	return int64(n), nil
}

// SRem removes members and returns how many were present.
func (o *Ops) SRem(key string, members ...string) (int64, error) {
	s, err := o.set(key)
	if err != nil || s == nil {
		return 0, err
	}
	n := s.Remove(members...)
	if n > 0 {
		o.save(key, s, true)
	}
	return int64(n), nil
}

// SIsMember reports whether member is in the set.
func (o *Ops) SIsMember(key, member string) (bool, error) {
	s, err := o.set(key)
	if err != nil || s == nil {
		return false, err
	}
	return s.Contains(member), nil
}

// SMembers returns the members sorted.
func (o *Ops) SMembers(key string) ([]string, error) {
	s, err := o.set(key)
	if err != nil || s == nil {
		return []string{}, err
	}
	return s.Members(), nil
}

// SCard returns the set cardinality.
func (o *Ops) SCard(key string) (int64, error) {
	s, err := o.set(key)
	if err != nil || s == nil {
		return 0, err
	}
	return int64(s.Len()), nil
}

// combine evaluates op over the sets at keys; absent keys are empty sets.
func (o *Ops) combine(op SetOp, keys []string) (map[string]struct{}, error) {
	if len(keys) == 0 {
		return nil, domain.ErrWrongArity
	}
	sets := make([]*domain.Set, len(keys))
	for i, k := range keys {
		s, err := o.set(k)
		if err != nil {
			return nil, err
		}
		sets[i] = s
	}

	out := make(map[string]struct{})
	if sets[0] != nil {
		for _, m := range sets[0].Members() {
			out[m] = struct{}{}
		}
	}
	for _, s := range sets[1:] {
		switch op {
		case Union:
			if s != nil {
				for _, m := range s.Members() {
					out[m] = struct{}{}
				}
			}
		case Intersect:
			for m := range out {
				if s == nil || !s.Contains(m) {
					delete(out, m)
				}
			}
		case Difference:
			if s != nil {
				for m := range out {
					if s.Contains(m) {
						delete(out, m)
					}
				}
			}
		}
	}
	return out, nil
}

func sortedMembers(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SCombine returns the union, intersection or difference of the sets at
// keys, sorted.
func (o *Ops) SCombine(op SetOp, keys ...string) ([]string, error) {
	m, err := o.combine(op, keys)
	if err != nil {
		return nil, err
	}
	return sortedMembers(m), nil
}

// SCombineStore stores the result of SCombine in dst, replacing it, and
// returns its cardinality.
func (o *Ops) SCombineStore(op SetOp, dst string, keys ...string) (int64, error) {
	m, err := o.combine(op, keys)
	if err != nil {
		return 0, err
	}
	if len(m) == 0 {
		o.txn.Delete(dst)
		return 0, nil
	}
	o.txn.Set(dst, domain.NewSet(sortedMembers(m)...))
	return int64(len(m)), nil
}

// SMove moves member from src to dst and reports whether it was in src.
func (o *Ops) SMove(src, dst, member string) (bool, error) {
	ss, err := o.set(src)
	if err != nil {
		return false, err
	}
	ds, existed, err := o.setForWrite(dst)
	if err != nil {
		return false, err
	}
	if ss == nil || !ss.Contains(member) {
		return false, nil
	}
	if src == dst {
		return true, nil
	}
	ss.Remove(member)
	ds.Add(member)
	o.save(src, ss, true)
	o.save(dst, ds, existed)
	return true, nil
}

// SScan returns the members matching pattern, sorted.
func (o *Ops) SScan(key, pattern string) ([]string, error) {
	s, err := o.set(key)
	if err != nil || s == nil {
		return []string{}, err
	}
	out := []string{}
	for _, m := range s.Members() {
		if glob.Match(pattern, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// SPop removes and returns up to count random members. It returns nil if
// the key is absent.
func (o *Ops) SPop(key string, count int) ([]string, error) {
	s, err := o.set(key)
	if err != nil || s == nil {
		return nil, err
	}
	rng := o.newRand()
	out := make([]string, 0, min(count, s.Len()))
	for len(out) < count {
		m, ok := s.Random(rng)
		if !ok {
			break
		}
		s.Remove(m)
		out = append(out, m)
	}
	if len(out) > 0 {
		o.save(key, s, true)
	}
	return out, nil
}

// SRandMember returns random members without removing them. A positive
// count returns up to count distinct members; a negative count returns
// exactly -count members, possibly repeated.
func (o *Ops) SRandMember(key string, count int) ([]string, error) {
	s, err := o.set(key)
	if err != nil || s == nil {
		return []string{}, err
	}
	rng := o.newRand()
	if count < 0 {
		out := make([]string, -count)
		for i := range out {
			out[i], _ = s.Random(rng)
		}
		return out, nil
	}
	members := s.Members()
	rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	if count < len(members) {
		members = members[:count]
	}
	return members, nil
}

// Locked API.

// SAdd adds members to key.
func (e *Engine) SAdd(key string, members ...string) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.SAdd(key, members...) })
}

// SRem removes members from key.
func (e *Engine) SRem(key string, members ...string) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.SRem(key, members...) })
}

// SMembers returns the members of key.
func (e *Engine) SMembers(key string) ([]string, error) {
	return view(e, []string{key}, func(o *Ops) ([]string, error) { return o.SMembers(key) })
}

// SCombine combines the sets at keys.
func (e *Engine) SCombine(op SetOp, keys ...string) ([]string, error) {
	return view(e, keys, func(o *Ops) ([]string, error) { return o.SCombine(op, keys...) })
}

// SMove moves member from src to dst.
func (e *Engine) SMove(src, dst, member string) (bool, error) {
	return update(e, []string{src, dst}, func(o *Ops) (bool, error) { return o.SMove(src, dst, member) })
}

// Commands.

func init() {
	register(
		commandSpec{"SADD", -3, flagWrite, firstKey, cmdSAdd},
		commandSpec{"SREM", -3, flagWrite, firstKey, cmdSRem},
		commandSpec{"SISMEMBER", 3, 0, firstKey, cmdSIsMember},
		commandSpec{"SMEMBERS", 2, 0, firstKey, cmdSMembers},
		commandSpec{"SCARD", 2, 0, firstKey, cmdSCard},
		commandSpec{"SUNION", -2, 0, allArgs, setCombineCmd(Union)},
		commandSpec{"SINTER", -2, 0, allArgs, setCombineCmd(Intersect)},
		commandSpec{"SDIFF", -2, 0, allArgs, setCombineCmd(Difference)},
		commandSpec{"SUNIONSTORE", -3, flagWrite, allArgs, setStoreCmd(Union)},
		commandSpec{"SINTERSTORE", -3, flagWrite, allArgs, setStoreCmd(Intersect)},
		commandSpec{"SDIFFSTORE", -3, flagWrite, allArgs, setStoreCmd(Difference)},
		commandSpec{"SMOVE", 4, flagWrite, firstTwoKeys, cmdSMove},
		commandSpec{"SSCAN", -3, 0, firstKey, cmdSScan},
		commandSpec{"SPOP", -2, flagWrite, firstKey, cmdSPop},
		commandSpec{"SRANDMEMBER", -2, 0, firstKey, cmdSRandMember},
	)
}

func cmdSAdd(o *Ops, args []string) (any, error) {
	return o.SAdd(args[0], args[1:]...)
}

func cmdSRem(o *Ops, args []string) (any, error) {
	return o.SRem(args[0], args[1:]...)
}

func cmdSIsMember(o *Ops, args []string) (any, error) {
	ok, err := o.SIsMember(args[0], args[1])
	return boolInt(ok), err
}

func cmdSMembers(o *Ops, args []string) (any, error) {
	return o.SMembers(args[0])
}

func cmdSCard(o *Ops, args []string) (any, error) {
	return o.SCard(args[0])
}

func setCombineCmd(op SetOp) handlerFunc {
	return func(o *Ops, args []string) (any, error) {
		return o.SCombine(op, args...)
	}
}

func setStoreCmd(op SetOp) handlerFunc {
	return func(o *Ops, args []string) (any, error) {
		return o.SCombineStore(op, args[0], args[1:]...)
	}
}

func cmdSMove(o *Ops, args []string) (any, error) {
	ok, err := o.SMove(args[0], args[1], args[2])
	return boolInt(ok), err
}

func cmdSScan(o *Ops, args []string) (any, error) {
	pattern, err := scanArgs(args[1:])
	if err != nil {
		return nil, err
	}
	members, err := o.SScan(args[0], pattern)
	if err != nil {
		return nil, err
	}
	return []any{"0", members}, nil
}

func cmdSPop(o *Ops, args []string) (any, error) {
	if len(args) > 2 {
		return nil, domain.ErrSyntax
	}
	if len(args) == 1 {
		out, err := o.SPop(args[0], 1)
		if err != nil || len(out) == 0 {
			return nil, err
		}
		return out[0], nil
	}
	count, err := parseIndex(args[1])
	if err != nil || count < 0 {
		return nil, domain.ErrOutOfRange.WithMessage("value is out of range, must be positive")
	}
	out, err := o.SPop(args[0], count)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return []string{}, nil
	}
	return out, nil
}

func cmdSRandMember(o *Ops, args []string) (any, error) {
	if len(args) > 2 {
		return nil, domain.ErrSyntax
	}
	if len(args) == 1 {
		out, err := o.SRandMember(args[0], 1)
		if err != nil || len(out) == 0 {
			return nil, err
		}
		return out[0], nil
	}
	count, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	return o.SRandMember(args[0], count)
}
