package engine

import (
	"errors"
	"slices"
	"testing"

	"github.com/yndnr/meshkv/internal/core/domain"
)

func alphabet() []string {
	out := make([]string, 26)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestList_Walkthrough(t *testing.T) {
	e := newTestEngine()
	letters := alphabet()

	if got := do(t, e, "RPUSH", append([]string{"l"}, letters...)...); got != int64(26) {
		t.Errorf("RPUSH = %v, want 26", got)
	}
	if got := do(t, e, "LRANGE", "l", "-5", "-1"); !slices.Equal(got.([]string), letters[21:]) {
		t.Errorf("LRANGE -5 -1 = %v", got)
	}
	if got := do(t, e, "LRANGE", "l", "0", "4"); !slices.Equal(got.([]string), letters[:5]) {
		t.Errorf("LRANGE 0 4 = %v", got)
	}
	if got := do(t, e, "LINDEX", "l", "3"); got != "d" {
		t.Errorf("LINDEX 3 = %v, want d", got)
	}
	if got := do(t, e, "LPOP", "l"); got != "a" {
		t.Errorf("LPOP = %v, want a", got)
	}
	if got := do(t, e, "RPOP", "l"); got != "z" {
		t.Errorf("RPOP = %v, want z", got)
	}
	if got := do(t, e, "LREM", "l", "0", "c"); got != int64(1) {
		t.Errorf("LREM = %v, want 1", got)
	}
	do(t, e, "LSET", "l", "1", "c")
	if got := do(t, e, "LRANGE", "l", "0", "2"); !slices.Equal(got.([]string), []string{"b", "c", "e"}) {
		t.Errorf("after LSET = %v", got)
	}
	do(t, e, "LTRIM", "l", "0", "1")
	if got := do(t, e, "LLEN", "l"); got != int64(2) {
		t.Errorf("LLEN after LTRIM = %v, want 2", got)
	}
}

func TestList_Errors(t *testing.T) {
	e := newTestEngine()
	do(t, e, "RPUSH", "l", "a")

	if err := doErr(t, e, "LSET", "l", "5", "x"); !errors.Is(err, domain.ErrOutOfRange) {
		t.Errorf("LSET out of range error = %v", err)
	}
	if err := doErr(t, e, "LSET", "nope", "0", "x"); !errors.Is(err, domain.ErrKeyAbsent) {
		t.Errorf("LSET absent error = %v", err)
	}
	if got := do(t, e, "LPOP", "nope"); got != nil {
		t.Errorf("LPOP absent = %v, want nil", got)
	}
	if got := do(t, e, "LPOP", "nope", "2"); got != (NullArray{}) {
		t.Errorf("LPOP absent with count = %v, want NullArray", got)
	}
	if got := do(t, e, "LINDEX", "l", "9"); got != nil {
		t.Errorf("LINDEX out of range = %v, want nil", got)
	}
}

func TestList_PopCount(t *testing.T) {
	e := newTestEngine()
	do(t, e, "RPUSH", "l", "a", "b", "c")
	if got := do(t, e, "RPOP", "l", "2"); !slices.Equal(got.([]string), []string{"c", "b"}) {
		t.Errorf("RPOP 2 = %v", got)
	}
	if got := do(t, e, "LPOP", "l", "5"); !slices.Equal(got.([]string), []string{"a"}) {
		t.Errorf("LPOP 5 = %v", got)
	}
	if got := do(t, e, "EXISTS", "l"); got != int64(0) {
		t.Errorf("list should be removed when emptied")
	}
}

func TestList_RPopLPushReverses(t *testing.T) {
	e := newTestEngine()
	letters := alphabet()
	do(t, e, "RPUSH", append([]string{"src"}, letters...)...)

	var popped []string
	for range letters {
		popped = append(popped, do(t, e, "RPOPLPUSH", "src", "dst").(string))
	}
	if got := do(t, e, "RPOPLPUSH", "src", "dst"); got != nil {
		t.Errorf("RPOPLPUSH on empty src = %v, want nil", got)
	}

	reversed := slices.Clone(letters)
	slices.Reverse(reversed)
	if !slices.Equal(popped, reversed) {
		t.Errorf("popped = %v, want %v", popped, reversed)
	}
	if got := do(t, e, "LRANGE", "dst", "0", "-1"); !slices.Equal(got.([]string), reversed) {
		t.Errorf("dst = %v, want %v", got, reversed)
	}
	if got := do(t, e, "EXISTS", "src"); got != int64(0) {
		t.Errorf("src should be empty")
	}
}

func TestList_LMove(t *testing.T) {
	e := newTestEngine()
	do(t, e, "RPUSH", "a", "1", "2", "3")
	do(t, e, "RPUSH", "b", "x")

	if got := do(t, e, "LMOVE", "a", "b", "LEFT", "LEFT"); got != "1" {
		t.Errorf("LMOVE = %v, want 1", got)
	}
	if got := do(t, e, "LRANGE", "b", "0", "-1"); !slices.Equal(got.([]string), []string{"1", "x"}) {
		t.Errorf("b = %v", got)
	}
	if got := do(t, e, "LMOVE", "a", "a", "RIGHT", "LEFT"); got != "3" {
		t.Errorf("LMOVE rotate = %v, want 3", got)
	}
	if got := do(t, e, "LRANGE", "a", "0", "-1"); !slices.Equal(got.([]string), []string{"3", "2"}) {
		t.Errorf("a = %v", got)
	}

	do(t, e, "SET", "s", "v")
	if err := doErr(t, e, "LMOVE", "a", "s", "LEFT", "LEFT"); !errors.Is(err, domain.ErrWrongType) {
		t.Errorf("LMOVE into string error = %v", err)
	}
	if got := do(t, e, "LLEN", "a"); got != int64(2) {
		t.Errorf("source mutated by failed LMOVE: len = %v", got)
	}
}
