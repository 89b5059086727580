package command

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/core/pubsub"
	"github.com/yndnr/meshkv/internal/infra/tlsroots"
	"github.com/yndnr/meshkv/internal/infra/tlsroots/tlstest"
	"github.com/yndnr/meshkv/internal/server/httpserver/handler"
	"github.com/yndnr/meshkv/internal/server/redisserver"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// syncBuffer is a bytes.Buffer safe for one writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	resp   string
	http   string
	router *pubsub.Router
	config string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng := engine.New(keyspace.New(keyspace.WithShards(4)))
	router := pubsub.NewRouter()

	cfg := redisserver.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	srv := redisserver.New(cfg, eng, router, nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	api := httptest.NewServer(handler.New(handler.Config{Keys: eng, PubSub: router, Clients: srv}))
	t.Cleanup(api.Close)

	return &fixture{
		resp:   srv.Addr().String(),
		http:   api.URL,
		router: router,
		config: filepath.Join(t.TempDir(), "cli.yaml"),
	}
}

// run executes the CLI with the fixture's addresses and returns stdout.
func (f *fixture) run(ctx context.Context, out *syncBuffer, stdin string, args ...string) error {
	app := App()
	app.Writer = out
	app.ErrWriter = out
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"meshkv-cli", "--config", f.config, "--server", f.resp, "--http", f.http}, args...)
	return app.RunContext(ctx, full)
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	var out syncBuffer
	require.NoError(t, f.run(context.Background(), &out, "", args...))
	return out.String()
}

func TestExec(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"exec", "SET", "greeting", "hello world"}, "\"OK\"\n"},
		{[]string{"exec", "GET", "greeting"}, "\"hello world\"\n"},
		{[]string{"exec", "GET", "missing"}, "(nil)\n"},
		{[]string{"exec", "SADD", "s", "a", "b"}, "(integer) 2\n"},
		{[]string{"-o", "json", "exec", "ZADD", "z", "1", "x"}, "1\n"},
		{[]string{"--output", "yaml", "exec", "GET", "greeting"}, "hello world\n"},
	}
	for _, tt := range tests {
		if got := f.mustRun(t, tt.args...); got != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestExec_ServerError(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "exec", "SET", "k", "v")

	var out syncBuffer
	err := f.run(context.Background(), &out, "", "exec", "LPUSH", "k", "x")
	if !errors.Is(err, ErrReply) {
		t.Errorf("error = %v, want ErrReply", err)
	}
	if !strings.HasPrefix(out.String(), "(error) WRONGTYPE") {
		t.Errorf("output = %q, want WRONGTYPE error", out.String())
	}
}

func TestExec_Usage(t *testing.T) {
	f := newFixture(t)
	var out syncBuffer
	err := f.run(context.Background(), &out, "", "exec")
	var exit cli.ExitCoder
	if !errors.As(err, &exit) || exit.ExitCode() != 2 {
		t.Errorf("error = %v, want exit code 2", err)
	}
}

func TestBadOutputFormat(t *testing.T) {
	f := newFixture(t)
	var out syncBuffer
	if err := f.run(context.Background(), &out, "", "-o", "table", "exec", "PING"); err == nil {
		t.Error("unknown output format accepted")
	}
}

func TestProfileFromPreferences(t *testing.T) {
	f := newFixture(t)
	prefs := "output: json\nprofiles:\n  local:\n    server: " + f.resp + "\n"
	require.NoError(t, os.WriteFile(f.config, []byte(prefs), 0o600))

	app := App()
	var out syncBuffer
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run([]string{"meshkv-cli", "--config", f.config, "--profile", "local", "exec", "ECHO", "hi"})
	require.NoError(t, err)
	if out.String() != "\"hi\"\n" {
		t.Errorf("output = %q, want JSON string from preferences format", out.String())
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var subOut syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- f.run(ctx, &subOut, "", "subscribe", "--pattern", "--count", "2", "news.*")
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(subOut.String(), "Reading messages")
	}, 3*time.Second, 10*time.Millisecond)

	if got := f.mustRun(t, "publish", "news.tech", "go 1.24"); got != "(integer) 1\n" {
		t.Errorf("publish = %q, want (integer) 1", got)
	}
	if got := f.mustRun(t, "publish", "--via-http", "news.sport", "goal"); got != "(integer) 1\n" {
		t.Errorf("publish --via-http = %q, want (integer) 1", got)
	}
	if got := f.mustRun(t, "publish", "weather", "rain"); got != "(integer) 0\n" {
		t.Errorf("publish to unmatched channel = %q, want (integer) 0", got)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("subscribe did not exit after --count messages")
	}

	out := subOut.String()
	for _, want := range []string{
		"1) \"pmessage\"\n2) \"news.*\"\n3) \"news.tech\"\n4) \"go 1.24\"",
		"3) \"news.sport\"\n4) \"goal\"",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("subscribe output missing %q\n%s", want, out)
		}
	}
}

func TestSubscribe_JSONAndCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	var subOut syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- f.run(ctx, &subOut, "", "-o", "json", "subscribe", "alerts")
	}()
	require.Eventually(t, func() bool {
		return f.router.NumSub("alerts")[0] == 1
	}, 3*time.Second, 10*time.Millisecond)

	f.router.Publish("alerts", "disk full")
	require.Eventually(t, func() bool {
		return strings.Contains(subOut.String(), `"message": "disk full"`)
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("subscribe did not exit on cancel")
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "exec", "SET", "a", "1")

	out := f.mustRun(t, "-o", "json", "info")
	var info handler.InfoResponse
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	if info.Keys != 1 {
		t.Errorf("Keys = %d, want 1", info.Keys)
	}
	if info.Clients == nil {
		t.Error("Clients = nil, want RESP client count")
	}

	plain := f.mustRun(t, "info")
	if !strings.Contains(plain, "build.version") {
		t.Errorf("plain info = %q, want flattened build fields", plain)
	}
}

func TestREPL(t *testing.T) {
	f := newFixture(t)
	var out syncBuffer
	err := f.run(context.Background(), &out, "SET k v\nGET k\nexit\n", "repl", "--no-history")
	require.NoError(t, err)
	if !strings.Contains(out.String(), f.resp+"> \"v\"") {
		t.Errorf("repl output = %q", out.String())
	}
}

func TestWalkthrough(t *testing.T) {
	f := newFixture(t)

	out := f.mustRun(t, "walkthrough", "--demo", "counters", "--demo", "transactions")
	if !strings.HasPrefix(out, "== counters ==\n") || !strings.Contains(out, "\n\n== transactions ==\n") {
		t.Errorf("walkthrough output = %q", out)
	}
	if !strings.Contains(out, "Gamma key is 1 and result is true") {
		t.Errorf("walkthrough output missing transaction line:\n%s", out)
	}

	var sections []struct {
		Name  string   `json:"name"`
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "-o", "json", "walkthrough")), &sections))
	if len(sections) != 9 {
		t.Errorf("len(sections) = %d, want 9", len(sections))
	}

	var errOut syncBuffer
	err := f.run(context.Background(), &errOut, "", "walkthrough", "--demo", "nope")
	var exit cli.ExitCoder
	if !errors.As(err, &exit) {
		t.Errorf("unknown demo error = %v, want exit error", err)
	}
}

func TestTLS(t *testing.T) {
	files := tlstest.WriteSelfSigned(t, t.TempDir(), time.Hour)
	kp, err := tlsroots.LoadKeyPair(files.CertFile, files.KeyFile)
	require.NoError(t, err)

	eng := engine.New(keyspace.New(keyspace.WithShards(4)))
	router := pubsub.NewRouter()

	cfg := redisserver.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.TLS = kp.ServerConfig(nil)
	srv := redisserver.New(cfg, eng, router, nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	api := httptest.NewUnstartedServer(handler.New(handler.Config{Keys: eng, PubSub: router, Clients: srv}))
	cert, _ := kp.GetCertificate(nil)
	api.TLS = &tls.Config{Certificates: []tls.Certificate{*cert}}
	api.StartTLS()
	t.Cleanup(api.Close)

	run := func(args ...string) (string, error) {
		app := App()
		var out syncBuffer
		app.Writer = &out
		app.ErrWriter = &out
		app.ExitErrHandler = func(*cli.Context, error) {}
		full := append([]string{"meshkv-cli", "--config", filepath.Join(t.TempDir(), "cli.yaml"),
			"--server", srv.Addr().String(), "--http", strings.TrimPrefix(api.URL, "https://"),
			"--timeout", "2s"}, args...)
		err := app.RunContext(context.Background(), full)
		return out.String(), err
	}

	out, err := run("--tls-ca", files.CertFile, "exec", "SET", "k", "v")
	require.NoError(t, err)
	if out != "\"OK\"\n" {
		t.Errorf("exec over TLS = %q, want \"OK\"", out)
	}

	out, err = run("--tls-ca", files.CertFile, "-o", "json", "info")
	require.NoError(t, err)
	var info handler.InfoResponse
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	if info.Keys != 1 {
		t.Errorf("info over TLS: Keys = %d, want 1", info.Keys)
	}

	// Without the CA the self-signed certificate is rejected.
	if _, err := run("--tls", "exec", "PING"); err == nil {
		t.Error("exec with untrusted certificate succeeded")
	}
	if _, err := run("--tls-ca", filepath.Join(t.TempDir(), "missing.pem"), "exec", "PING"); err == nil {
		t.Error("missing CA file accepted")
	}
}
