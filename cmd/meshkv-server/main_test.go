package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/meshkv/internal/infra/confloader"
	"github.com/yndnr/meshkv/internal/infra/tlsroots"
	"github.com/yndnr/meshkv/internal/infra/tlsroots/tlstest"
	"github.com/yndnr/meshkv/internal/server/config"
	"github.com/yndnr/meshkv/internal/telemetry/logger"
)

const testConfigYAML = `
server:
  redis:
    addr: "127.0.0.1:0"
  http:
    addr: "127.0.0.1:0"
storage:
  shards: 8
  expiry_interval: 20ms
log:
  level: %s
`

func writeServerConfig(t *testing.T, path, level string) {
	t.Helper()
	content := strings.Replace(testConfigYAML, "%s", level, 1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshkv.yaml")
	writeServerConfig(t, path, "info")
	t.Setenv("MESHKV_STORAGE_SHARDS", "16")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run([]string{"meshkv-server", "check-config", "--config", path, "--http-addr", "127.0.0.1:9999"})
	require.NoError(t, err)

	got := out.String()
	for _, want := range []string{"redis=127.0.0.1:0", "http=127.0.0.1:9999", "shards=16"} {
		if !strings.Contains(got, want) {
			t.Errorf("check-config output = %q, missing %q", got, want)
		}
	}
}

func TestCheckConfig_Invalid(t *testing.T) {
	t.Setenv("MESHKV_STORAGE_SHARDS", "12")

	app := newApp()
	app.Writer = io.Discard
	err := app.Run([]string{"meshkv-server", "check-config"})
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("check-config error = %v, want invalid configuration", err)
	}
}

type running struct {
	inst   *instance
	cancel context.CancelFunc
	done   chan error
}

func startInstance(t *testing.T, cfg *config.ServerConfig, loader *confloader.Loader) *running {
	t.Helper()
	inst, err := newInstance(cfg, quietLogger())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{inst: inst, cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- inst.serve(ctx, loader) }()

	require.Eventually(t, func() bool {
		return inst.redis.Addr() != nil && inst.http.Addr() != nil
	}, 3*time.Second, 10*time.Millisecond)
	t.Cleanup(r.stop)
	return r
}

func (r *running) stop() {
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
	}
}

func TestInstance_Serve(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Redis.Addr = "127.0.0.1:0"
	cfg.Server.HTTP.Addr = "127.0.0.1:0"
	cfg.Storage.ExpiryInterval = 10 * time.Millisecond
	require.NoError(t, config.Verify(cfg))

	r := startInstance(t, cfg, nil)
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: r.inst.redis.Addr().String(), Protocol: 2})
	defer rdb.Close()

	require.NoError(t, rdb.Set(ctx, "greeting", "hello", 0).Err())
	require.NoError(t, rdb.Set(ctx, "short", "x", 20*time.Millisecond).Err())
	if got := rdb.Get(ctx, "greeting").Val(); got != "hello" {
		t.Errorf("GET greeting = %q, want hello", got)
	}

	// The background sweep removes the expired key without any access.
	require.Eventually(t, func() bool { return r.inst.engine.KeyCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + r.inst.http.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`meshkv_commands_total{command="SET",status="ok"} 2`,
		"meshkv_keys 1",
		"meshkv_expired_keys_total 1",
		"meshkv_connections_active 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	r.cancel()
	select {
	case err := <-r.done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after cancel")
	}
	if err := rdb.Ping(ctx).Err(); err == nil {
		t.Error("RESP listener still answering after shutdown")
	}
}

func TestInstance_StartFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Redis.Addr = "127.0.0.1:0"
	cfg.Server.HTTP.Addr = "256.0.0.1:80"

	inst, err := newInstance(cfg, quietLogger())
	require.NoError(t, err)
	if err := inst.serve(context.Background(), nil); err == nil {
		t.Fatal("serve() error = nil for unusable http address")
	}
	if inst.redis.Clients() != 0 {
		t.Errorf("Clients() = %d after failed start", inst.redis.Clients())
	}
}

func TestInstance_ReloadLogLevel(t *testing.T) {
	t.Cleanup(func() { logger.SetLevel("info") })
	logger.SetLevel("info")

	path := filepath.Join(t.TempDir(), "meshkv.yaml")
	writeServerConfig(t, path, "info")

	loader := confloader.NewLoader(confloader.WithConfigFile(path))
	cfg, err := loadConfig(loader)
	require.NoError(t, err)
	startInstance(t, cfg, loader)

	// Let the watcher register before the file changes.
	time.Sleep(100 * time.Millisecond)
	writeServerConfig(t, path, "debug")

	require.Eventually(t, func() bool { return logger.GetLevel() == "debug" }, 3*time.Second, 20*time.Millisecond)

	// An invalid file is rejected and leaves the level alone.
	writeServerConfig(t, path, "verbose")
	time.Sleep(300 * time.Millisecond)
	if got := logger.GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q after invalid reload, want debug", got)
	}
}

func TestCheckConfig_MissingCertificate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MESHKV_SERVER_REDIS_TLS", "true")
	t.Setenv("MESHKV_SERVER_TLS_CERT_FILE", filepath.Join(dir, "none.crt"))
	t.Setenv("MESHKV_SERVER_TLS_KEY_FILE", filepath.Join(dir, "none.key"))

	app := newApp()
	app.Writer = io.Discard
	err := app.Run([]string{"meshkv-server", "check-config"})
	if err == nil || !strings.Contains(err.Error(), "key pair") {
		t.Errorf("check-config error = %v, want key pair error", err)
	}
}

func TestInstance_ServeTLS(t *testing.T) {
	dir := t.TempDir()
	files := tlstest.WriteSelfSigned(t, dir, time.Hour)

	cfg := config.Default()
	cfg.Server.Redis.Addr = "127.0.0.1:0"
	cfg.Server.HTTP.Addr = "127.0.0.1:0"
	cfg.Server.Redis.TLS = true
	cfg.Server.HTTP.TLS = true
	cfg.Server.TLS.CertFile = files.CertFile
	cfg.Server.TLS.KeyFile = files.KeyFile
	require.NoError(t, config.Verify(cfg))

	r := startInstance(t, cfg, nil)
	ctx := context.Background()

	roots, err := tlsroots.LoadCAFile(files.CertFile)
	require.NoError(t, err)
	clientTLS := tlsroots.ClientConfig(roots, false)

	rdb := redis.NewClient(&redis.Options{Addr: r.inst.redis.Addr().String(), Protocol: 2, TLSConfig: clientTLS})
	defer rdb.Close()
	require.NoError(t, rdb.Set(ctx, "secure", "yes", 0).Err())
	if got := rdb.Get(ctx, "secure").Val(); got != "yes" {
		t.Errorf("GET secure = %q, want yes", got)
	}

	plain := redis.NewClient(&redis.Options{Addr: r.inst.redis.Addr().String(), Protocol: 2, MaxRetries: -1, DialTimeout: time.Second, ReadTimeout: time.Second})
	defer plain.Close()
	if err := plain.Ping(ctx).Err(); err == nil {
		t.Error("plaintext PING on TLS listener succeeded")
	}

	hc := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}, Timeout: 5 * time.Second}
	resp, err := hc.Get("https://" + r.inst.http.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want 200", resp.StatusCode)
	}

	// Renewed certificates are picked up without a restart.
	time.Sleep(100 * time.Millisecond)
	renewed := tlstest.WriteSelfSigned(t, dir, 72*time.Hour)
	require.Eventually(t, func() bool {
		return r.inst.certs.NotAfter().Equal(renewed.NotAfter)
	}, 3*time.Second, 20*time.Millisecond)
}
