package domain

import (
	"math"
	"testing"
)

func members(entries []ZEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Member
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSortedSet_Order(t *testing.T) {
	z := NewSortedSet()
	z.Add("c", 2)
	z.Add("a", 2)
	z.Add("b", 1)
	if !z.Add("d", 0) {
		t.Error("Add(new) = false, want true")
	}
	if z.Add("d", 3) {
		t.Error("Add(update) = true, want false")
	}

	want := []string{"b", "a", "c", "d"}
	if got := members(z.Entries()); !equalStrings(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
	if r, ok := z.Rank("a"); !ok || r != 1 {
		t.Errorf("Rank(a) = %d, %v, want 1, true", r, ok)
	}
	if _, ok := z.Rank("zz"); ok {
		t.Error("Rank(missing) should fail")
	}
}

func TestSortedSet_Incr(t *testing.T) {
	z := NewSortedSet()
	z.Add("Linus", 2)
	if s := z.Incr("Linus", 100); s != 102 {
		t.Errorf("Incr() = %v, want 102", s)
	}
	if s := z.Incr("new", -1.5); s != -1.5 {
		t.Errorf("Incr(new) = %v, want -1.5", s)
	}
	if s, _ := z.Score("Linus"); s != 102 {
		t.Errorf("Score() = %v, want 102", s)
	}
	if z.Len() != 2 {
		t.Errorf("Len() = %d, want 2", z.Len())
	}
}

func TestSortedSet_RangeByScore(t *testing.T) {
	z := NewSortedSet()
	for i, m := range []string{"a", "b", "c", "d", "e"} {
		z.Add(m, float64(i+1))
	}
	tests := []struct {
		name string
		r    ScoreRange
		want []string
	}{
		{"inclusive", ScoreRange{Min: 2, Max: 4}, []string{"b", "c", "d"}},
		{"exclusive min", ScoreRange{Min: 2, Max: 4, MinExclusive: true}, []string{"c", "d"}},
		{"exclusive both", ScoreRange{Min: 2, Max: 4, MinExclusive: true, MaxExclusive: true}, []string{"c"}},
		{"infinite", AllScores, []string{"a", "b", "c", "d", "e"}},
		{"empty", ScoreRange{Min: 4, Max: 2}, []string{}},
		{"upper open", ScoreRange{Min: 4, Max: math.Inf(1)}, []string{"d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := members(z.RangeByScore(tt.r)); !equalStrings(got, tt.want) {
				t.Errorf("RangeByScore() = %v, want %v", got, tt.want)
			}
			if n := z.Count(tt.r); n != len(tt.want) {
				t.Errorf("Count() = %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestSortedSet_Remove(t *testing.T) {
	z := NewSortedSet()
	for i := 0; i < 12; i++ {
		z.Add(string(rune('a'+i)), float64(i+1))
	}
	if n := z.Remove("a", "missing"); n != 1 {
		t.Errorf("Remove() = %d, want 1", n)
	}
	if n := z.RemoveRangeByScore(ScoreRange{Min: 0, Max: 11}); n != 10 {
		t.Errorf("RemoveRangeByScore() = %d, want 10", n)
	}
	if got := members(z.Entries()); !equalStrings(got, []string{"l"}) {
		t.Errorf("Entries() = %v, want [l]", got)
	}
	if _, ok := z.Score("b"); ok {
		t.Error("removed member still has a score")
	}
}

func TestSortedSet_RangeByRank(t *testing.T) {
	z := NewSortedSet()
	for i, m := range []string{"a", "b", "c", "d"} {
		z.Add(m, float64(i))
	}
	if got := members(z.Range(-2, -1)); !equalStrings(got, []string{"c", "d"}) {
		t.Errorf("Range(-2, -1) = %v", got)
	}
	if n := z.RemoveRangeByRank(0, 1); n != 2 {
		t.Errorf("RemoveRangeByRank() = %d, want 2", n)
	}
	if got := members(z.Entries()); !equalStrings(got, []string{"c", "d"}) {
		t.Errorf("Entries() = %v", got)
	}
}
