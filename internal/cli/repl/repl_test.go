package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/meshkv/internal/cli/connection"
	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/core/pubsub"
	"github.com/yndnr/meshkv/internal/server/redisserver"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

func startRESP(t *testing.T) string {
	t.Helper()
	cfg := redisserver.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	srv := redisserver.New(cfg, engine.New(keyspace.New(keyspace.WithShards(4))), pubsub.NewRouter(), nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv.Addr().String()
}

func runScript(t *testing.T, mgr *connection.Manager, script string) string {
	t.Helper()
	var out bytes.Buffer
	r := New(Config{In: strings.NewReader(script), Out: &out, Manager: mgr})
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestREPL_Session(t *testing.T) {
	addr := startRESP(t)
	mgr := connection.NewManager(connection.DefaultOptions())
	t.Cleanup(func() { _ = mgr.Disconnect() })

	script := strings.Join([]string{
		"GET k",
		"CONNECT " + addr,
		`SET k "hello world"`,
		"get k",
		"RPUSH l a b",
		"LRANGE l 0 -1",
		"GET missing",
		"INCR k",
		"MULTI",
		"INCR counter",
		"INCR counter",
		"EXEC",
		"SUBSCRIBE news",
		`SET bad "open`,
		"QUIT",
		"GET never",
	}, "\n")
	out := runScript(t, mgr, script)

	for _, want := range []string{
		"not connected> (error) not connected",
		"not connected> OK",
		addr + "> \"OK\"",
		`"hello world"`,
		"(integer) 2",
		"1) \"a\"\n2) \"b\"",
		"(nil)",
		"(error) ERR value is not an integer or out of range",
		"QUEUED",
		"1) (integer) 1\n2) (integer) 2",
		"(error) SUBSCRIBE is not supported interactively",
		"(error) unbalanced quotes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\nfull output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "never") {
		t.Error("commands after QUIT were executed")
	}
}

func TestREPL_LocalCommands(t *testing.T) {
	mgr := connection.NewManager(connection.DefaultOptions())
	out := runScript(t, mgr, "help zunion\nhelp nothing\nCONNECT\nhistory\n")

	for _, want := range []string{
		"ZUNIONSTORE",
		`no commands match "nothing"`,
		"(error) usage: CONNECT host:port",
		"   1  help zunion",
		"   4  history",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\nfull output:\n%s", want, out)
		}
	}
}
