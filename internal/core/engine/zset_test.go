package engine

import (
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/yndnr/meshkv/internal/core/domain"
)

var programmers = []string{
	"Ada Lovelace", "Linus Torvalds", "Grace Hopper", "Alan Turing",
	"Dennis Ritchie", "Ken Thompson", "Barbara Liskov", "Donald Knuth",
	"Margaret Hamilton", "John McCarthy", "Bjarne Stroustrup", "Guido van Rossum",
}

func seedProgrammers(t *testing.T, e *Engine) {
	t.Helper()
	for i, p := range programmers {
		score := i + 1
		if p == "Ada Lovelace" {
			score = 12
		}
		if p == "Guido van Rossum" {
			score = 1
		}
		do(t, e, "ZADD", "prog", strconv.Itoa(score), p)
	}
}

func TestZSet_ReAddUpdatesScore(t *testing.T) {
	e := newTestEngine()
	if got := do(t, e, "ZADD", "z", "1", "m"); got != int64(1) {
		t.Errorf("ZADD new = %v, want 1", got)
	}
	if got := do(t, e, "ZADD", "z", "5", "m"); got != int64(0) {
		t.Errorf("ZADD update = %v, want 0", got)
	}
	if got := do(t, e, "ZCARD", "z"); got != int64(1) {
		t.Errorf("ZCARD = %v, want 1", got)
	}
	if got := do(t, e, "ZSCORE", "z", "m"); got != "5" {
		t.Errorf("ZSCORE = %v, want 5", got)
	}
	if got := do(t, e, "ZADD", "z", "CH", "6", "m", "1", "n"); got != int64(2) {
		t.Errorf("ZADD CH = %v, want 2", got)
	}
	if got := do(t, e, "ZADD", "z", "NX", "9", "m"); got != int64(0) {
		t.Errorf("ZADD NX existing = %v, want 0", got)
	}
	if got := do(t, e, "ZADD", "z", "XX", "9", "new"); got != int64(0) {
		t.Errorf("ZADD XX new = %v, want 0", got)
	}
	if err := doErr(t, e, "ZADD", "z", "NX", "XX", "1", "m"); !errors.Is(err, domain.ErrSyntax) {
		t.Errorf("ZADD NX XX error = %v", err)
	}
	if err := doErr(t, e, "ZADD", "z", "nan", "m"); !errors.Is(err, domain.ErrNotFloat) {
		t.Errorf("ZADD nan error = %v", err)
	}
}

func TestZSet_RankAndRanges(t *testing.T) {
	e := newTestEngine()
	seedProgrammers(t, e)

	if got := do(t, e, "ZRANK", "prog", "Linus Torvalds"); got != int64(1) {
		t.Errorf("ZRANK = %v, want 1", got)
	}
	if got := do(t, e, "ZREVRANK", "prog", "Ada Lovelace"); got != int64(0) {
		t.Errorf("ZREVRANK = %v, want 0", got)
	}
	if got := do(t, e, "ZRANK", "prog", "nobody"); got != nil {
		t.Errorf("ZRANK missing = %v, want nil", got)
	}

	first := do(t, e, "ZRANGE", "prog", "0", "1").([]string)
	if !slices.Equal(first, []string{"Guido van Rossum", "Linus Torvalds"}) {
		t.Errorf("ZRANGE 0 1 = %v", first)
	}
	top := do(t, e, "ZREVRANGE", "prog", "0", "0", "WITHSCORES").([]string)
	if !slices.Equal(top, []string{"Ada Lovelace", "12"}) {
		t.Errorf("ZREVRANGE WITHSCORES = %v", top)
	}

	got := do(t, e, "ZRANGEBYSCORE", "prog", "2", "4", "WITHSCORES").([]string)
	want := []string{"Linus Torvalds", "2", "Grace Hopper", "3", "Alan Turing", "4"}
	if !slices.Equal(got, want) {
		t.Errorf("ZRANGEBYSCORE WITHSCORES = %v, want %v", got, want)
	}
	got = do(t, e, "ZREVRANGEBYSCORE", "prog", "(4", "-inf", "LIMIT", "0", "2").([]string)
	if !slices.Equal(got, []string{"Grace Hopper", "Linus Torvalds"}) {
		t.Errorf("ZREVRANGEBYSCORE = %v", got)
	}
	got = do(t, e, "ZRANGE", "prog", "(10", "+inf", "BYSCORE").([]string)
	if !slices.Equal(got, []string{"Bjarne Stroustrup", "Ada Lovelace"}) {
		t.Errorf("ZRANGE BYSCORE = %v", got)
	}
	if got := do(t, e, "ZCOUNT", "prog", "-inf", "+inf"); got != int64(12) {
		t.Errorf("ZCOUNT = %v, want 12", got)
	}
	if err := doErr(t, e, "ZRANGEBYSCORE", "prog", "x", "1"); !errors.Is(err, domain.ErrNotFloat) {
		t.Errorf("bad bound error = %v", err)
	}
}

func TestZSet_IncrAndRemove(t *testing.T) {
	e := newTestEngine()
	seedProgrammers(t, e)

	if got := do(t, e, "ZINCRBY", "prog", "100", "Linus Torvalds"); got != "102" {
		t.Errorf("ZINCRBY = %v, want 102", got)
	}
	if got := do(t, e, "ZINCRBY", "prog", "-100", "Linus Torvalds"); got != "2" {
		t.Errorf("ZINCRBY decrement = %v, want 2", got)
	}
	if got := do(t, e, "ZREMRANGEBYSCORE", "prog", "0", "11"); got != int64(11) {
		t.Errorf("ZREMRANGEBYSCORE = %v, want 11", got)
	}
	got := do(t, e, "ZRANGE", "prog", "0", "-1", "WITHSCORES").([]string)
	if !slices.Equal(got, []string{"Ada Lovelace", "12"}) {
		t.Errorf("remaining = %v", got)
	}
	if got := do(t, e, "ZREM", "prog", "Ada Lovelace"); got != int64(1) {
		t.Errorf("ZREM = %v, want 1", got)
	}
	if got := do(t, e, "EXISTS", "prog"); got != int64(0) {
		t.Errorf("empty zset should be removed")
	}
}

func TestZSet_CombineStore(t *testing.T) {
	e := newTestEngine()
	do(t, e, "ZADD", "A", "3", "x", "1", "a")
	do(t, e, "ZADD", "B", "9", "x", "2", "b")
	do(t, e, "SADD", "S", "x", "s")

	if got := do(t, e, "ZUNIONSTORE", "u", "2", "A", "B"); got != int64(3) {
		t.Errorf("ZUNIONSTORE = %v, want 3", got)
	}
	if got := do(t, e, "ZSCORE", "u", "x"); got != "12" {
		t.Errorf("ZSCORE union x = %v, want 12", got)
	}

	do(t, e, "ZINTERSTORE", "i", "2", "A", "B", "WEIGHTS", "2", "2")
	if got := do(t, e, "ZRANGE", "i", "0", "-1", "WITHSCORES"); !slices.Equal(got.([]string), []string{"x", "24"}) {
		t.Errorf("ZINTERSTORE weighted = %v", got)
	}
	do(t, e, "ZINTERSTORE", "m", "2", "A", "B", "AGGREGATE", "MAX")
	if got := do(t, e, "ZSCORE", "m", "x"); got != "9" {
		t.Errorf("ZINTERSTORE MAX = %v, want 9", got)
	}

	if got := do(t, e, "ZUNIONSTORE", "us", "2", "A", "S"); got != int64(3) {
		t.Errorf("ZUNIONSTORE with set = %v, want 3", got)
	}
	if got := do(t, e, "ZSCORE", "us", "s"); got != "1" {
		t.Errorf("set member score = %v, want 1", got)
	}

	if got := do(t, e, "ZDIFFSTORE", "d", "2", "A", "B"); got != int64(1) {
		t.Errorf("ZDIFFSTORE = %v, want 1", got)
	}
	if got := do(t, e, "ZSCORE", "d", "a"); got != "1" {
		t.Errorf("ZDIFFSTORE keeps first score: %v", got)
	}

	if err := doErr(t, e, "ZUNIONSTORE", "u", "0", "A"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("numkeys 0 error = %v", err)
	}
	do(t, e, "SET", "str", "v")
	if err := doErr(t, e, "ZUNIONSTORE", "u", "2", "A", "str"); !errors.Is(err, domain.ErrWrongType) {
		t.Errorf("string source error = %v", err)
	}
}

func TestZSet_Scan(t *testing.T) {
	e := newTestEngine()
	seedProgrammers(t, e)
	scan := do(t, e, "ZSCAN", "prog", "0", "MATCH", "*Hopper").([]any)
	if !slices.Equal(scan[1].([]string), []string{"Grace Hopper", "3"}) {
		t.Errorf("ZSCAN = %v", scan)
	}
}

func TestZSet_TypedAPI(t *testing.T) {
	e := newTestEngine()
	if _, err := e.ZAdd("z", []domain.ZEntry{{Member: "a", Score: 1}, {Member: "b", Score: 2}}, ZAddOptions{}); err != nil {
		t.Fatalf("ZAdd() error = %v", err)
	}
	entries, err := e.ZRangeByScore("z", domain.AllScores, Descending, Limit{Offset: 0, Count: 1})
	if err != nil || len(entries) != 1 || entries[0].Member != "b" {
		t.Errorf("ZRangeByScore() = %v, %v", entries, err)
	}
	if s, ok, _ := e.ZScore("z", "a"); !ok || s != 1 {
		t.Errorf("ZScore() = %v, %v", s, ok)
	}
}

func TestZSet_CombineWithoutKeys(t *testing.T) {
	e := newTestEngine()
	do(t, e, "ZADD", "dst", "1", "keep")

	if _, err := e.ZCombineStore(Union, "dst", nil, nil, AggregateSum); !errors.Is(err, domain.ErrWrongArity) {
		t.Errorf("ZCombineStore(no keys) error = %v, want ErrWrongArity", err)
	}
	if got := do(t, e, "ZCARD", "dst"); got != int64(1) {
		t.Errorf("ZCARD dst = %v, want 1", got)
	}
}
