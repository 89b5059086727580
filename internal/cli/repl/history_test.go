package repl

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestHistory_Add(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3
	for _, line := range []string{"a", "b", "b", "c", "d"} {
		h.Add(line)
	}
	if got := h.Entries(); !slices.Equal(got, []string{"b", "c", "d"}) {
		t.Errorf("Entries() = %v, want [b c d]", got)
	}
}

func TestHistory_Get(t *testing.T) {
	h := NewHistory("")
	h.Add("first")
	h.Add("second")

	tests := []struct {
		index int
		want  string
	}{
		{0, "second"},
		{1, "first"},
		{2, ""},
		{-1, ""},
	}
	for _, tt := range tests {
		if got := h.Get(tt.index); got != tt.want {
			t.Errorf("Get(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "history")

	h := NewHistory(file)
	h.Add("SET k v")
	h.Add("GET k")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	loaded := NewHistory(file)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded.Entries(); !slices.Equal(got, []string{"SET k v", "GET k"}) {
		t.Errorf("Entries() = %v, want saved lines", got)
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "missing"))
	if err := h.Load(); err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}
	if err := NewHistory("").Save(); err != nil {
		t.Errorf("Save() without file error = %v, want nil", err)
	}
}
