package engine

import (
	"math"
	"slices"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/pkg/glob"
)

// ZAddOptions modifies ZAdd.
type ZAddOptions struct {
	NX bool // only add new members
	XX bool // only update existing members
	CH bool // count changed scores as well as added members
}

// Order is a sort direction.
type Order uint8

const (
	Ascending Order = iota
	Descending
)

// Limit selects a window of a range result. A negative Count means no
// upper bound.
type Limit struct {
	Offset int
	Count  int
}

// NoLimit selects the whole range.
var NoLimit = Limit{Count: -1}

func (l Limit) apply(entries []domain.ZEntry) []domain.ZEntry {
	if l.Offset < 0 || l.Offset >= len(entries) {
		return []domain.ZEntry{}
	}
	entries = entries[l.Offset:]
	if l.Count >= 0 && l.Count < len(entries) {
		entries = entries[:l.Count]
	}
	return entries
}

// Aggregate combines the scores of a member present in several sources.
type Aggregate uint8

const (
	AggregateSum Aggregate = iota
	AggregateMin
	AggregateMax
)

func (a Aggregate) combine(x, y float64) float64 {
	switch a {
	case AggregateMin:
		return math.Min(x, y)
	case AggregateMax:
		return math.Max(x, y)
	}
	s := x + y
	if math.IsNaN(s) {
		return 0
	}
	return s
}

// ZAdd sets member scores and returns the number of added members, or of
// added and changed members with CH.
func (o *Ops) ZAdd(key string, entries []domain.ZEntry, opts ZAddOptions) (int64, error) {
	if opts.NX && opts.XX {
		return 0, domain.ErrSyntax.WithMessage("XX and NX options at the same time are not compatible")
	}
	z, existed, err := o.zsetForWrite(key)
	if err != nil {
		return 0, err
	}
	var added, changed int64
	for _, e := range entries {
		old, ok := z.Score(e.Member)
		if (opts.NX && ok) || (opts.XX && !ok) {
			continue
		}
		if z.Add(e.Member, e.Score) {
			added++
		} else if old != e.Score {
			changed++
		}
	}
	if added+changed > 0 {
		o.save(key, z, existed)
	}
	if opts.CH {
		return added + changed, nil
	}
	return added, nil
}

// ZIncrBy adds delta to the score of member, creating it at delta. A
// negative delta decrements.
func (o *Ops) ZIncrBy(key, member string, delta float64) (float64, error) {
	z, existed, err := o.zsetForWrite(key)
	if err != nil {
		return 0, err
	}
	cur, _ := z.Score(member)
	if next := cur + delta; math.IsNaN(next) {
		return 0, domain.ErrNaN.WithMessage("resulting score is not a number (NaN)")
	}
	score := z.Incr(member, delta)
	o.save(key, z, existed)
	return score, nil
}

// ZRem removes members and returns how many were present.
func (o *Ops) ZRem(key string, members ...string) (int64, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, err
	}
	n := z.Remove(members...)
	if n > 0 {
		o.save(key, z, true)
	}
	return int64(n), nil
}

// ZScore returns the score of member.
func (o *Ops) ZScore(key, member string) (float64, bool, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, false, err
	}
	s, ok := z.Score(member)
	return s, ok, nil
}

// ZCard returns the number of members.
func (o *Ops) ZCard(key string) (int64, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, err
	}
	return int64(z.Len()), nil
}

// ZCount returns the number of members with a score in r.
func (o *Ops) ZCount(key string, r domain.ScoreRange) (int64, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, err
	}
	return int64(z.Count(r)), nil
}

// ZRank returns the ascending rank of member.
func (o *Ops) ZRank(key, member string) (int64, bool, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, false, err
	}
	r, ok := z.Rank(member)
	return int64(r), ok, nil
}

// ZRevRank returns the descending rank of member.
func (o *Ops) ZRevRank(key, member string) (int64, bool, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, false, err
	}
	r, ok := z.Rank(member)
	return int64(z.Len() - 1 - r), ok, nil
}

// ZRange returns the entries at ascending ranks [start, stop].
func (o *Ops) ZRange(key string, start, stop int) ([]domain.ZEntry, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return []domain.ZEntry{}, err
	}
	return z.Range(start, stop), nil
}

// ZRevRange returns the entries at descending ranks [start, stop].
func (o *Ops) ZRevRange(key string, start, stop int) ([]domain.ZEntry, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return []domain.ZEntry{}, err
	}
	all := z.Entries()
	slices.Reverse(all)
	lo, hi, ok := domain.NormalizeRange(start, stop, len(all))
	if !ok {
		return []domain.ZEntry{}, nil
	}
	return all[lo : hi+1], nil
}

// ZRangeByScore returns the entries with a score in r in the given order,
// windowed by limit.
func (o *Ops) ZRangeByScore(key string, r domain.ScoreRange, order Order, limit Limit) ([]domain.ZEntry, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return []domain.ZEntry{}, err
	}
	entries := z.RangeByScore(r)
	if order == Descending {
		slices.Reverse(entries)
	}
	return limit.apply(entries), nil
}

// ZRemRangeByScore removes the entries with a score in r.
func (o *Ops) ZRemRangeByScore(key string, r domain.ScoreRange) (int64, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, err
	}
	n := z.RemoveRangeByScore(r)
	if n > 0 {
		o.save(key, z, true)
	}
	return int64(n), nil
}

// ZRemRangeByRank removes the entries at ascending ranks [start, stop].
func (o *Ops) ZRemRangeByRank(key string, start, stop int) (int64, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return 0, err
	}
	n := z.RemoveRangeByRank(start, stop)
	if n > 0 {
		o.save(key, z, true)
	}
	return int64(n), nil
}

// zsource reads a sorted set or plain set as member -> score; plain set
// members score 1.
func (o *Ops) zsource(key string) (map[string]float64, error) {
	v, ok := o.txn.Get(key)
	if !ok {
		return map[string]float64{}, nil
	}
	switch v := v.(type) {
	case *domain.SortedSet:
		out := make(map[string]float64, v.Len())
		for _, e := range v.Entries() {
			out[e.Member] = e.Score
		}
		return out, nil
	case *domain.Set:
		out := make(map[string]float64, v.Len())
		for _, m := range v.Members() {
			out[m] = 1
		}
		return out, nil
	}
	return nil, domain.ErrWrongType
}

// ZCombine computes the union, intersection or difference of the sources
// at keys. Scores are multiplied by weights (nil means all 1) and merged
// with agg. Difference keeps the scores of the first source.
func (o *Ops) ZCombine(op SetOp, keys []string, weights []float64, agg Aggregate) ([]domain.ZEntry, error) {
	if len(keys) == 0 {
		return nil, domain.ErrWrongArity
	}
	if weights != nil && len(weights) != len(keys) {
		return nil, domain.ErrSyntax
	}
	weight := func(i int, score float64) float64 {
		if weights == nil {
			return score
		}
		w := score * weights[i]
		if math.IsNaN(w) {
			return 0
		}
		return w
	}

	sources := make([]map[string]float64, len(keys))
	for i, k := range keys {
		src, err := o.zsource(k)
		if err != nil {
			return nil, err
		}
		sources[i] = src
	}

	acc := make(map[string]float64, len(sources[0]))
	for m, s := range sources[0] {
		acc[m] = weight(0, s)
	}
	for j, src := range sources[1:] {
		i := j + 1
		switch op {
		case Union:
			for m, s := range src {
				if cur, ok := acc[m]; ok {
					acc[m] = agg.combine(cur, weight(i, s))
				} else {
					acc[m] = weight(i, s)
				}
			}
		case Intersect:
			for m, cur := range acc {
				s, ok := src[m]
				if !ok {
					delete(acc, m)
					continue
				}
				acc[m] = agg.combine(cur, weight(i, s))
			}
		case Difference:
			for m := range src {
				delete(acc, m)
			}
		}
	}

	z := domain.NewSortedSet()
	for m, s := range acc {
		z.Add(m, s)
	}
	return z.Entries(), nil
}

// ZCombineStore stores the result of ZCombine in dst, replacing it, and
// returns its cardinality.
func (o *Ops) ZCombineStore(op SetOp, dst string, keys []string, weights []float64, agg Aggregate) (int64, error) {
	entries, err := o.ZCombine(op, keys, weights, agg)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		o.txn.Delete(dst)
		return 0, nil
	}
	z := domain.NewSortedSet()
	for _, e := range entries {
		z.Add(e.Member, e.Score)
	}
	o.txn.Set(dst, z)
	return int64(z.Len()), nil
}

// ZScan returns the entries whose member matches pattern, ascending.
func (o *Ops) ZScan(key, pattern string) ([]domain.ZEntry, error) {
	z, err := o.zset(key)
	if err != nil || z == nil {
		return []domain.ZEntry{}, err
	}
	out := []domain.ZEntry{}
	for _, e := range z.Entries() {
		if glob.Match(pattern, e.Member) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Locked API.

// ZAdd sets member scores in key.
func (e *Engine) ZAdd(key string, entries []domain.ZEntry, opts ZAddOptions) (int64, error) {
	return update(e, []string{key}, func(o *Ops) (int64, error) { return o.ZAdd(key, entries, opts) })
}

// ZIncrBy adds delta to the score of member.
func (e *Engine) ZIncrBy(key, member string, delta float64) (float64, error) {
	return update(e, []string{key}, func(o *Ops) (float64, error) { return o.ZIncrBy(key, member, delta) })
}

// ZScore returns the score of member.
func (e *Engine) ZScore(key, member string) (float64, bool, error) {
	var (
		s  float64
		ok bool
	)
	err := e.View([]string{key}, func(o *Ops) error {
		var err error
		s, ok, err = o.ZScore(key, member)
		return err
	})
	return s, ok, err
}

// ZRangeByScore returns the entries of key with a score in r.
func (e *Engine) ZRangeByScore(key string, r domain.ScoreRange, order Order, limit Limit) ([]domain.ZEntry, error) {
	return view(e, []string{key}, func(o *Ops) ([]domain.ZEntry, error) { return o.ZRangeByScore(key, r, order, limit) })
}

// ZCombineStore combines the sources at keys into dst.
func (e *Engine) ZCombineStore(op SetOp, dst string, keys []string, weights []float64, agg Aggregate) (int64, error) {
	locked := append([]string{dst}, keys...)
	return update(e, locked, func(o *Ops) (int64, error) { return o.ZCombineStore(op, dst, keys, weights, agg) })
}

// Commands.

func init() {
	register(
		commandSpec{"ZADD", -4, flagWrite, firstKey, cmdZAdd},
		commandSpec{"ZREM", -3, flagWrite, firstKey, cmdZRem},
		commandSpec{"ZSCORE", 3, 0, firstKey, cmdZScore},
		commandSpec{"ZINCRBY", 4, flagWrite, firstKey, cmdZIncrBy},
		commandSpec{"ZCARD", 2, 0, firstKey, cmdZCard},
		commandSpec{"ZCOUNT", 4, 0, firstKey, cmdZCount},
		commandSpec{"ZRANK", 3, 0, firstKey, cmdZRank},
		commandSpec{"ZREVRANK", 3, 0, firstKey, cmdZRevRank},
		commandSpec{"ZRANGE", -4, 0, firstKey, cmdZRange},
		commandSpec{"ZREVRANGE", -4, 0, firstKey, cmdZRevRange},
		commandSpec{"ZRANGEBYSCORE", -4, 0, firstKey, zRangeByScoreCmd(Ascending)},
		commandSpec{"ZREVRANGEBYSCORE", -4, 0, firstKey, zRangeByScoreCmd(Descending)},
		commandSpec{"ZREMRANGEBYSCORE", 4, flagWrite, firstKey, cmdZRemRangeByScore},
		commandSpec{"ZREMRANGEBYRANK", 4, flagWrite, firstKey, cmdZRemRangeByRank},
		commandSpec{"ZUNIONSTORE", -4, flagWrite, numKeysKeys, zStoreCmd(Union)},
		commandSpec{"ZINTERSTORE", -4, flagWrite, numKeysKeys, zStoreCmd(Intersect)},
		commandSpec{"ZDIFFSTORE", -4, flagWrite, numKeysKeys, zStoreCmd(Difference)},
		commandSpec{"ZSCAN", -3, 0, firstKey, cmdZScan},
	)
}

func withScores(entries []domain.ZEntry, scores bool) []string {
	if !scores {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.Member
		}
		return out
	}
	out := make([]string, 0, 2*len(entries))
	for _, e := range entries {
		out = append(out, e.Member, formatFloat(e.Score))
	}
	return out
}

func cmdZAdd(o *Ops, args []string) (any, error) {
	var (
		opts ZAddOptions
		incr bool
	)
	i := 1
options:
	for ; i < len(args); i++ {
		switch {
		case isOpt(args[i], "NX"):
			opts.NX = true
		case isOpt(args[i], "XX"):
			opts.XX = true
		case isOpt(args[i], "CH"):
			opts.CH = true
		case isOpt(args[i], "INCR"):
			incr = true
		default:
			break options
		}
	}
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return nil, domain.ErrSyntax
	}
	entries := make([]domain.ZEntry, 0, len(rest)/2)
	for j := 0; j < len(rest); j += 2 {
		score, err := parseFloat(rest[j])
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.ZEntry{Member: rest[j+1], Score: score})
	}

	if incr {
		if len(entries) != 1 {
			return nil, domain.ErrSyntax.WithMessage("INCR option supports a single increment-element pair")
		}
		if opts.NX && opts.XX {
			return nil, domain.ErrSyntax.WithMessage("XX and NX options at the same time are not compatible")
		}
		_, exists, err := o.ZScore(args[0], entries[0].Member)
		if err != nil {
			return nil, err
		}
		if (opts.NX && exists) || (opts.XX && !exists) {
			return nil, nil
		}
		score, err := o.ZIncrBy(args[0], entries[0].Member, entries[0].Score)
		if err != nil {
			return nil, err
		}
		return formatFloat(score), nil
	}
	return o.ZAdd(args[0], entries, opts)
}

func cmdZRem(o *Ops, args []string) (any, error) {
	return o.ZRem(args[0], args[1:]...)
}

func cmdZScore(o *Ops, args []string) (any, error) {
	s, ok, err := o.ZScore(args[0], args[1])
	if err != nil || !ok {
		return nil, err
	}
	return formatFloat(s), nil
}

func cmdZIncrBy(o *Ops, args []string) (any, error) {
	delta, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	s, err := o.ZIncrBy(args[0], args[2], delta)
	if err != nil {
		return nil, err
	}
	return formatFloat(s), nil
}

func cmdZCard(o *Ops, args []string) (any, error) {
	return o.ZCard(args[0])
}

func cmdZCount(o *Ops, args []string) (any, error) {
	r, err := parseScoreRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	return o.ZCount(args[0], r)
}

func rankReply(r int64, ok bool, err error) (any, error) {
	if err != nil || !ok {
		return nil, err
	}
	return r, nil
}

func cmdZRank(o *Ops, args []string) (any, error) {
	return rankReply(o.ZRank(args[0], args[1]))
}

func cmdZRevRank(o *Ops, args []string) (any, error) {
	return rankReply(o.ZRevRank(args[0], args[1]))
}

// parseRangeOptions parses trailing WITHSCORES and LIMIT options. LIMIT is
// accepted only when allowLimit is set.
func parseRangeOptions(args []string, allowLimit bool) (scores bool, limit Limit, rev bool, byScore bool, err error) {
	limit = NoLimit
	for i := 0; i < len(args); i++ {
		switch {
		case isOpt(args[i], "WITHSCORES"):
			scores = true
		case isOpt(args[i], "REV"):
			rev = true
		case isOpt(args[i], "BYSCORE"):
			byScore = true
		case isOpt(args[i], "LIMIT") && i+2 < len(args):
			off, err1 := parseIndex(args[i+1])
			cnt, err2 := parseIndex(args[i+2])
			if err1 != nil || err2 != nil {
				return false, limit, false, false, domain.ErrNotNumeric
			}
			limit = Limit{Offset: off, Count: cnt}
			i += 2
		default:
			return false, limit, false, false, domain.ErrSyntax
		}
	}
	if !allowLimit && !byScore && limit != NoLimit {
		return false, limit, false, false, domain.ErrSyntax.WithMessage("syntax error, LIMIT is only supported in combination with BYSCORE")
	}
	return scores, limit, rev, byScore, nil
}

func cmdZRange(o *Ops, args []string) (any, error) {
	scores, limit, rev, byScore, err := parseRangeOptions(args[3:], false)
	if err != nil {
		return nil, err
	}
	if byScore {
		lo, hi := args[1], args[2]
		order := Ascending
		if rev {
			lo, hi = hi, lo
			order = Descending
		}
		r, err := parseScoreRange(lo, hi)
		if err != nil {
			return nil, err
		}
		entries, err := o.ZRangeByScore(args[0], r, order, limit)
		if err != nil {
			return nil, err
		}
		return withScores(entries, scores), nil
	}

	start, stop, err := parseRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	var entries []domain.ZEntry
	if rev {
		entries, err = o.ZRevRange(args[0], start, stop)
	} else {
		entries, err = o.ZRange(args[0], start, stop)
	}
	if err != nil {
		return nil, err
	}
	return withScores(entries, scores), nil
}

func cmdZRevRange(o *Ops, args []string) (any, error) {
	scores, _, _, _, err := parseRangeOptions(args[3:], false)
	if err != nil {
		return nil, err
	}
	start, stop, err := parseRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	entries, err := o.ZRevRange(args[0], start, stop)
	if err != nil {
		return nil, err
	}
	return withScores(entries, scores), nil
}

// zRangeByScoreCmd serves ZRANGEBYSCORE key min max and ZREVRANGEBYSCORE
// key max min.
func zRangeByScoreCmd(order Order) handlerFunc {
	return func(o *Ops, args []string) (any, error) {
		scores, limit, _, _, err := parseRangeOptions(args[3:], true)
		if err != nil {
			return nil, err
		}
		lo, hi := args[1], args[2]
		if order == Descending {
			lo, hi = hi, lo
		}
		r, err := parseScoreRange(lo, hi)
		if err != nil {
			return nil, err
		}
		entries, err := o.ZRangeByScore(args[0], r, order, limit)
		if err != nil {
			return nil, err
		}
		return withScores(entries, scores), nil
	}
}

func cmdZRemRangeByScore(o *Ops, args []string) (any, error) {
	r, err := parseScoreRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	return o.ZRemRangeByScore(args[0], r)
}

func cmdZRemRangeByRank(o *Ops, args []string) (any, error) {
	start, stop, err := parseRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	return o.ZRemRangeByRank(args[0], start, stop)
}

// zStoreCmd serves "dst numkeys key [key ...] [WEIGHTS w ...] [AGGREGATE
// SUM|MIN|MAX]". ZDIFFSTORE takes no options.
func zStoreCmd(op SetOp) handlerFunc {
	return func(o *Ops, args []string) (any, error) {
		n, err := parseIndex(args[1])
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, domain.ErrInvalidArgument.WithMessage("at least 1 input key is needed")
		}
		if n > len(args)-2 {
			return nil, domain.ErrSyntax
		}
		keys := args[2 : 2+n]
		rest := args[2+n:]

		var (
			weights []float64
			agg     = AggregateSum
		)
		for i := 0; i < len(rest); i++ {
			switch {
			case op != Difference && isOpt(rest[i], "WEIGHTS") && i+n < len(rest):
				weights = make([]float64, n)
				for j := 0; j < n; j++ {
					w, err := parseFloat(rest[i+1+j])
					if err != nil {
						return nil, domain.ErrNotFloat.WithMessage("weight value is not a float")
					}
					weights[j] = w
				}
				i += n
			case op != Difference && isOpt(rest[i], "AGGREGATE") && i+1 < len(rest):
				switch {
				case isOpt(rest[i+1], "SUM"):
					agg = AggregateSum
				case isOpt(rest[i+1], "MIN"):
					agg = AggregateMin
				case isOpt(rest[i+1], "MAX"):
					agg = AggregateMax
				default:
					return nil, domain.ErrSyntax
				}
				i++
			default:
				return nil, domain.ErrSyntax
			}
		}
		return o.ZCombineStore(op, args[0], keys, weights, agg)
	}
}

func cmdZScan(o *Ops, args []string) (any, error) {
	pattern, err := scanArgs(args[1:])
	if err != nil {
		return nil, err
	}
	entries, err := o.ZScan(args[0], pattern)
	if err != nil {
		return nil, err
	}
	return []any{"0", withScores(entries, true)}, nil
}
