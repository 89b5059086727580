package tlsroots

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/meshkv/internal/infra/tlsroots/tlstest"
)

func TestLoadCAFile(t *testing.T) {
	dir := t.TempDir()
	files := tlstest.WriteSelfSigned(t, dir, time.Hour)

	notPEM := filepath.Join(dir, "junk.pem")
	if err := os.WriteFile(notPEM, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"bundle", files.CertFile, nil},
		{"key only", files.KeyFile, ErrNoCertsFound},
		{"not pem", notPEM, ErrNoCertsFound},
		{"missing", filepath.Join(dir, "missing.pem"), os.ErrNotExist},
	}
	for _, tt := range tests {
		pool, err := LoadCAFile(tt.path)
		if tt.wantErr == nil {
			if err != nil || pool == nil {
				t.Errorf("%s: LoadCAFile() = %v, %v, want pool", tt.name, pool, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: LoadCAFile() error = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestAppendPEM_SkipsOtherBlocks(t *testing.T) {
	dir := t.TempDir()
	files := tlstest.WriteSelfSigned(t, dir, time.Hour)
	cert, _ := os.ReadFile(files.CertFile)
	key, _ := os.ReadFile(files.KeyFile)

	pool, err := LoadCAFile(files.CertFile)
	if err != nil {
		t.Fatal(err)
	}
	data := append(append(append([]byte{}, key...), cert...), cert...)
	n, err := AppendPEM(pool, data)
	if err != nil {
		t.Fatalf("AppendPEM() error = %v", err)
	}
	if n != 2 {
		t.Errorf("AppendPEM() = %d, want 2", n)
	}
}
