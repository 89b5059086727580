package repl

import (
	"slices"
	"testing"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"SET k v", []string{"SET", "k", "v"}, false},
		{"  GET   k  ", []string{"GET", "k"}, false},
		{`SET k "hello world"`, []string{"SET", "k", "hello world"}, false},
		{`SET k 'it''s'`, nil, true},
		{`SET k 'a "b" c'`, []string{"SET", "k", `a "b" c`}, false},
		{`SET k "line\nbreak"`, []string{"SET", "k", "line\nbreak"}, false},
		{`SET k "\x41\x42"`, []string{"SET", "k", "AB"}, false},
		{`SET k "q\"q"`, []string{"SET", "k", `q"q`}, false},
		{`SET k ""`, []string{"SET", "k", ""}, false},
		{`SET k 'no backslash \n'`, []string{"SET", "k", `no backslash \n`}, false},
		{`SET k "open`, nil, true},
		{`SET k "a"b`, nil, true},
		{"", nil, false},
	}
	for _, tt := range tests {
		got, err := SplitArgs(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitArgs(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
