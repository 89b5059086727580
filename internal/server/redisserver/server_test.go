package redisserver

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/core/pubsub"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

type countingObserver struct {
	mu                    sync.Mutex
	opened, closed, limit int
}

func (o *countingObserver) ConnOpened()         { o.mu.Lock(); o.opened++; o.mu.Unlock() }
func (o *countingObserver) ConnClosed()         { o.mu.Lock(); o.closed++; o.mu.Unlock() }
func (o *countingObserver) CommandRateLimited() { o.mu.Lock(); o.limit++; o.mu.Unlock() }

func (o *countingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened, o.closed
}

func testConfig() *Config {
	return &Config{
		Enabled:      true,
		Address:      "127.0.0.1:0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  5 * time.Second,
	}
}

func startTestServer(t *testing.T, cfg *Config, opts ...Option) *Server {
	t.Helper()
	eng := engine.New(keyspace.New(keyspace.WithShards(8)))
	srv := New(cfg, eng, pubsub.NewRouter(), nil, opts...)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func dial(t *testing.T, srv *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	return c, bufio.NewReader(c)
}

func readLineT(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return line
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Address != "127.0.0.1:6379" {
		t.Errorf("Address = %q, want 127.0.0.1:6379", cfg.Address)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want 30s", cfg.ReadTimeout)
	}
	if cfg.IdleTimeout != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want 5m", cfg.IdleTimeout)
	}
}

func TestServer_StartDisabled(t *testing.T) {
	srv := New(&Config{Enabled: false}, engine.New(keyspace.New()), nil, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if srv.Addr() != nil {
		t.Errorf("Addr() = %v, want nil for a disabled server", srv.Addr())
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestServer_InlineAndPipelined(t *testing.T) {
	srv := startTestServer(t, testConfig())
	c, r := dial(t, srv)

	_, err := c.Write([]byte("PING\r\n*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	require.NoError(t, err)

	for _, want := range []string{"+PONG\r\n", "+OK\r\n", "$1\r\n", "v\r\n"} {
		if got := readLineT(t, r); got != want {
			t.Errorf("reply = %q, want %q", got, want)
		}
	}
}

func TestServer_ProtocolLimitClosesConnection(t *testing.T) {
	srv := startTestServer(t, testConfig())
	c, r := dial(t, srv)

	_, err := c.Write([]byte("*100000\r\n"))
	require.NoError(t, err)

	if got := readLineT(t, r); got != "-ERR protocol limit exceeded\r\n" {
		t.Errorf("reply = %q, want protocol limit error", got)
	}
	if _, err := r.ReadByte(); err == nil {
		t.Error("connection still open after protocol limit violation")
	}
}

func TestServer_QuitClosesConnection(t *testing.T) {
	srv := startTestServer(t, testConfig())
	c, r := dial(t, srv)

	_, err := c.Write([]byte("QUIT\r\n"))
	require.NoError(t, err)
	if got := readLineT(t, r); got != "+OK\r\n" {
		t.Errorf("QUIT reply = %q, want +OK", got)
	}
	if _, err := r.ReadByte(); err == nil {
		t.Error("connection still open after QUIT")
	}
}

func TestServer_MaxClients(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 1
	srv := startTestServer(t, cfg)

	c1, r1 := dial(t, srv)
	_, err := c1.Write([]byte("PING\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+PONG\r\n", readLineT(t, r1))

	_, r2 := dial(t, srv)
	if got := readLineT(t, r2); !strings.Contains(got, "max number of clients") {
		t.Errorf("second client reply = %q, want max clients error", got)
	}
}

func TestServer_ObserverAndShutdown(t *testing.T) {
	obs := &countingObserver{}
	srv := startTestServer(t, testConfig(), WithObserver(obs))

	c, r := dial(t, srv)
	_, err := c.Write([]byte("PING\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+PONG\r\n", readLineT(t, r))

	if n := srv.Clients(); n != 1 {
		t.Errorf("Clients() = %d, want 1", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	opened, closed := obs.counts()
	if opened != 1 || closed != 1 {
		t.Errorf("observer opened=%d closed=%d, want 1 and 1", opened, closed)
	}
	if _, err := r.ReadByte(); err == nil {
		t.Error("client connection still open after Shutdown")
	}
}

func TestServer_GoRedisClient(t *testing.T) {
	srv := startTestServer(t, testConfig())
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr().String(), Protocol: 2})
	defer rdb.Close()

	require.NoError(t, rdb.Ping(ctx).Err())
	require.NoError(t, rdb.Set(ctx, "greeting", "hello", 0).Err())

	got, err := rdb.Get(ctx, "greeting").Result()
	require.NoError(t, err)
	if got != "hello" {
		t.Errorf("GET greeting = %q, want hello", got)
	}

	if _, err := rdb.Get(ctx, "absent").Result(); err != redis.Nil {
		t.Errorf("GET absent error = %v, want redis.Nil", err)
	}

	if err := rdb.LPush(ctx, "greeting", "x").Err(); err == nil || !strings.HasPrefix(err.Error(), "WRONGTYPE") {
		t.Errorf("LPUSH on string error = %v, want WRONGTYPE", err)
	}

	n, err := rdb.ZAdd(ctx, "z", redis.Z{Score: 3, Member: "x"}).Result()
	require.NoError(t, err)
	if n != 1 {
		t.Errorf("ZADD = %d, want 1", n)
	}
	require.NoError(t, rdb.ZAdd(ctx, "w", redis.Z{Score: 9, Member: "x"}).Err())
	require.NoError(t, rdb.ZUnionStore(ctx, "dest", &redis.ZStore{Keys: []string{"z", "w"}}).Err())
	score, err := rdb.ZScore(ctx, "dest", "x").Result()
	require.NoError(t, err)
	if score != 12 {
		t.Errorf("ZSCORE dest x = %v, want 12", score)
	}

	cmds, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, "counter")
		pipe.DecrBy(ctx, "other", 99)
		return nil
	})
	require.NoError(t, err)
	if v := cmds[0].(*redis.IntCmd).Val(); v != 1 {
		t.Errorf("INCR in MULTI = %d, want 1", v)
	}
	if v := cmds[1].(*redis.IntCmd).Val(); v != -99 {
		t.Errorf("DECRBY in MULTI = %d, want -99", v)
	}
}

func TestServer_GoRedisWatchConflict(t *testing.T) {
	srv := startTestServer(t, testConfig())
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr().String(), Protocol: 2})
	defer rdb.Close()

	err := rdb.Watch(ctx, func(tx *redis.Tx) error {
		// A write from another connection between WATCH and EXEC.
		if err := rdb.Set(ctx, "key", "intruder", 0).Err(); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, "key", "mine", 0)
			return nil
		})
		return err
	}, "key")
	if err != redis.TxFailedErr {
		t.Errorf("Watch() error = %v, want TxFailedErr", err)
	}

	got, err := rdb.Get(ctx, "key").Result()
	require.NoError(t, err)
	if got != "intruder" {
		t.Errorf("GET key = %q, want intruder", got)
	}
}

func TestServer_GoRedisPubSub(t *testing.T) {
	srv := startTestServer(t, testConfig())
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr().String(), Protocol: 2})
	defer rdb.Close()

	ps := rdb.PSubscribe(ctx, "news.*")
	defer ps.Close()
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	n, err := rdb.Publish(ctx, "news.tech", "hello").Result()
	require.NoError(t, err)
	if n != 1 {
		t.Errorf("PUBLISH = %d, want 1", n)
	}

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := ps.ReceiveMessage(rctx)
	require.NoError(t, err)
	if msg.Pattern != "news.*" || msg.Channel != "news.tech" || msg.Payload != "hello" {
		t.Errorf("message = %+v, want pattern news.* channel news.tech payload hello", msg)
	}
}
