package domain

import (
	"cmp"
	"math"
	"slices"
	"sort"
)

// ZEntry is a member of a sorted set with its score.
type ZEntry struct {
	Member string
	Score  float64
}

func compareZEntry(a, b ZEntry) int {
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Member, b.Member)
}

// ScoreRange is a score interval; either bound may be exclusive or infinite.
type ScoreRange struct {
	Min, Max                   float64
	MinExclusive, MaxExclusive bool
}

// AllScores covers every finite and infinite score.
var AllScores = ScoreRange{Min: math.Inf(-1), Max: math.Inf(1)}

func (r ScoreRange) aboveMin(score float64) bool {
	if r.MinExclusive {
		return score > r.Min
	}
	return score >= r.Min
}

func (r ScoreRange) belowMax(score float64) bool {
	if r.MaxExclusive {
		return score < r.Max
	}
	return score <= r.Max
}

// Contains reports whether score lies inside the interval.
func (r ScoreRange) Contains(score float64) bool {
	return r.aboveMin(score) && r.belowMax(score)
}

// SortedSet keeps unique members ordered by (score, member).
type SortedSet struct {
	scores  map[string]float64
	ordered []ZEntry
}

// NewSortedSet creates an empty sorted set.
func NewSortedSet() *SortedSet {
	return &SortedSet{scores: make(map[string]float64)}
}

// Kind implements Value.
func (z *SortedSet) Kind() Kind { return KindSortedSet }

// Len implements Value.
func (z *SortedSet) Len() int { return len(z.ordered) }

// Add sets the score of member and reports whether the member is new.
func (z *SortedSet) Add(member string, score float64) bool {
	old, exists := z.scores[member]
	if exists {
		if old == score {
			return false
		}
		z.unlink(ZEntry{Member: member, Score: old})
	}
	z.scores[member] = score
	e := ZEntry{Member: member, Score: score}
	i, _ := slices.BinarySearchFunc(z.ordered, e, compareZEntry)
	z.ordered = slices.Insert(z.ordered, i, e)
	return !exists
}

func (z *SortedSet) unlink(e ZEntry) {
	if i, found := slices.BinarySearchFunc(z.ordered, e, compareZEntry); found {
		z.ordered = slices.Delete(z.ordered, i, i+1)
	}
}

// Incr adds delta to the score of member, creating it at delta, and
// returns the new score.
func (z *SortedSet) Incr(member string, delta float64) float64 {
	score := z.scores[member] + delta
	z.Add(member, score)
	return score
}

// Score returns the score of member.
func (z *SortedSet) Score(member string) (float64, bool) {
	s, ok := z.scores[member]
	return s, ok
}

// Remove deletes members and returns how many were present.
func (z *SortedSet) Remove(members ...string) int {
	removed := 0
	for _, m := range members {
		s, ok := z.scores[m]
		if !ok {
			continue
		}
		z.unlink(ZEntry{Member: m, Score: s})
		delete(z.scores, m)
		removed++
	}
	return removed
}

// Rank returns the 0-based ascending position of member.
func (z *SortedSet) Rank(member string) (int, bool) {
	s, ok := z.scores[member]
	if !ok {
		return 0, false
	}
	i, _ := slices.BinarySearchFunc(z.ordered, ZEntry{Member: member, Score: s}, compareZEntry)
	return i, true
}

// Range returns the entries at ascending ranks [start, stop]; negative
// ranks count from the highest.
func (z *SortedSet) Range(start, stop int) []ZEntry {
	lo, hi, ok := NormalizeRange(start, stop, len(z.ordered))
	if !ok {
		return []ZEntry{}
	}
	return slices.Clone(z.ordered[lo : hi+1])
}

func (z *SortedSet) bounds(r ScoreRange) (lo, hi int) {
	lo = sort.Search(len(z.ordered), func(i int) bool { return r.aboveMin(z.ordered[i].Score) })
	hi = sort.Search(len(z.ordered), func(i int) bool { return !r.belowMax(z.ordered[i].Score) })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// RangeByScore returns the entries whose score lies in r, ascending.
func (z *SortedSet) RangeByScore(r ScoreRange) []ZEntry {
	lo, hi := z.bounds(r)
	return slices.Clone(z.ordered[lo:hi])
}

// Count returns the number of entries whose score lies in r.
func (z *SortedSet) Count(r ScoreRange) int {
	lo, hi := z.bounds(r)
	return hi - lo
}

// RemoveRangeByScore deletes the entries whose score lies in r.
func (z *SortedSet) RemoveRangeByScore(r ScoreRange) int {
	lo, hi := z.bounds(r)
	for _, e := range z.ordered[lo:hi] {
		delete(z.scores, e.Member)
	}
	z.ordered = slices.Delete(z.ordered, lo, hi)
	return hi - lo
}

// RemoveRangeByRank deletes the entries at ranks [start, stop].
func (z *SortedSet) RemoveRangeByRank(start, stop int) int {
	lo, hi, ok := NormalizeRange(start, stop, len(z.ordered))
	if !ok {
		return 0
	}
	for _, e := range z.ordered[lo : hi+1] {
		delete(z.scores, e.Member)
	}
	z.ordered = slices.Delete(z.ordered, lo, hi+1)
	return hi - lo + 1
}

// Entries returns every entry in ascending order.
func (z *SortedSet) Entries() []ZEntry {
	return slices.Clone(z.ordered)
}
