package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/core/pubsub"
	"github.com/yndnr/meshkv/internal/server/httpserver/handler"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
	"github.com/yndnr/meshkv/internal/telemetry/metric"
)

type fixture struct {
	eng    *engine.Engine
	router *pubsub.Router
	srv    *httptest.Server
}

func newFixture(t *testing.T, mutate func(*RouterConfig)) *fixture {
	t.Helper()
	reg := metric.NewRegistry()
	f := &fixture{
		eng:    engine.New(keyspace.New(), engine.WithObserver(reg)),
		router: pubsub.NewRouter(pubsub.WithObserver(reg)),
	}
	cfg := &RouterConfig{
		Keys:    f.eng,
		PubSub:  f.router,
		Metrics: reg.Handler(),
		Logger:  quietLogger,
	}
	if mutate != nil {
		mutate(cfg)
	}
	f.srv = httptest.NewServer(NewRouter(cfg))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (f *fixture) dialStream(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/pubsub/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitSubscribers polls until the router holds n subscriptions; the
// websocket handler subscribes after the upgrade response is sent.
func (f *fixture) waitSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.router.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, body := f.get(t, path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("GET %s missing X-Request-ID", path)
		}
		var env handler.Response
		require.NoError(t, json.Unmarshal(body, &env))
		if env.Code != "OK" {
			t.Errorf("GET %s code = %q, want OK", path, env.Code)
		}
	}
}

func TestRouter_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.get(t, "/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Error-Code"); got != "KV-HTTP-4040" {
		t.Errorf("X-Error-Code = %q, want KV-HTTP-4040", got)
	}
}

func TestRouter_Metrics(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.Exec(engine.Command{Name: "SET", Args: []string{"k", "v"}})

	resp, body := f.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), `meshkv_commands_total{command="SET",status="ok"} 1`) {
		t.Errorf("metrics output missing SET counter:\n%s", body)
	}
}

func TestRouter_MetricsAllowList(t *testing.T) {
	f := newFixture(t, func(cfg *RouterConfig) {
		cfg.MetricsAllowList = []string{"10.9.9.9"}
	})

	resp, _ := f.get(t, "/metrics")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	resp, _ = f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	f := newFixture(t, func(cfg *RouterConfig) { cfg.RateLimit = 1 })

	resp, _ := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", resp.StatusCode)
	}
	resp, _ = f.get(t, "/healthz")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", resp.StatusCode)
	}
}

func TestRouter_PublishAndStream(t *testing.T) {
	f := newFixture(t, nil)

	literal := f.dialStream(t, "channel=news.tech")
	pattern := f.dialStream(t, "channel=news.*")
	f.waitSubscribers(t, 2)

	resp, err := http.Post(f.srv.URL+"/v1/pubsub/publish/news.tech", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Data handler.PublishResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if env.Data.Receivers != 2 {
		t.Errorf("receivers = %d, want 2", env.Data.Receivers)
	}

	for name, conn := range map[string]*websocket.Conn{"literal": literal, "pattern": pattern} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg handler.StreamMessage
		require.NoError(t, conn.ReadJSON(&msg), name)
		if msg.Channel != "news.tech" || msg.Message != "hello" {
			t.Errorf("%s frame = %+v, want channel news.tech message hello", name, msg)
		}
		wantPattern := ""
		if name == "pattern" {
			wantPattern = "news.*"
		}
		if msg.Pattern != wantPattern {
			t.Errorf("%s frame pattern = %q, want %q", name, msg.Pattern, wantPattern)
		}
	}
}

func TestRouter_StreamLiteralMode(t *testing.T) {
	f := newFixture(t, nil)

	conn := f.dialStream(t, "channel=a*&mode=literal")
	f.waitSubscribers(t, 1)

	if n := f.router.Publish("abc", "x"); n != 0 {
		t.Errorf("Publish(abc) = %d, want 0", n)
	}
	if n := f.router.Publish("a*", "y"); n != 1 {
		t.Errorf("Publish(a*) = %d, want 1", n)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg handler.StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	if msg.Channel != "a*" || msg.Message != "y" || msg.Pattern != "" {
		t.Errorf("frame = %+v, want literal delivery on a*", msg)
	}
}

func TestRouter_StreamUnsubscribesOnClose(t *testing.T) {
	f := newFixture(t, nil)

	conn := f.dialStream(t, "channel=room")
	f.waitSubscribers(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	f.waitSubscribers(t, 0)
}

func TestRouter_StreamRejectsBadRequests(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"channel=x&mode=bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, _ := f.get(t, "/v1/pubsub/ws?"+tt.query)
		if resp.StatusCode != tt.want {
			t.Errorf("query %q status = %d, want %d", tt.query, resp.StatusCode, tt.want)
		}
	}

	// A plain GET with valid parameters is not a websocket handshake.
	resp, _ := f.get(t, "/v1/pubsub/ws?channel=x")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-upgrade status = %d, want 400", resp.StatusCode)
	}
	if n := f.router.Count(); n != 0 {
		t.Errorf("router.Count() = %d, want 0", n)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := pubsub.NewRouter()
	s := New(cfg, NewRouter(&RouterConfig{Keys: engine.New(keyspace.New()), PubSub: router, Logger: quietLogger}), quietLogger)
	require.NoError(t, s.Start(ctx))
	require.NotNil(t, s.Addr())

	base := "http://" + s.Addr().String()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	// An open stream must not block shutdown once ctx is cancelled.
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/v1/pubsub/ws?channel=c", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return router.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := s.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
	require.Eventually(t, func() bool { return router.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_Disabled(t *testing.T) {
	s := New(&Config{Enabled: false}, http.NotFoundHandler(), nil)
	require.NoError(t, s.Start(context.Background()))
	if s.Addr() != nil {
		t.Errorf("Addr() = %v, want nil", s.Addr())
	}
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestRouterConfigFrom(t *testing.T) {
	cfg := &Config{RateLimit: 5, CORSAllowedOrigins: []string{"http://a"}, MetricsAllowList: []string{"10.0.0.0/8"}}
	rc := RouterConfigFrom(cfg)
	if rc.RateLimit != 5 || len(rc.CORSAllowedOrigins) != 1 || len(rc.MetricsAllowList) != 1 {
		t.Errorf("RouterConfigFrom() = %+v, want transport fields copied", rc)
	}
}
