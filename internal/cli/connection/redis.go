package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultAddr is the default RESP listener address.
const DefaultAddr = "127.0.0.1:6379"

// Options configures RESP clients.
type Options struct {
	// PoolSize of 1 keeps MULTI and WATCH state on one connection.
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TLS, when set, dials the server over TLS.
	TLS *tls.Config
}

// DefaultOptions returns the CLI defaults.
func DefaultOptions() Options {
	return Options{
		PoolSize:     1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// NewClient creates a RESP2 client for addr. It does not dial.
func NewClient(addr string, opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Protocol:     2,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		TLSConfig:    opts.TLS,
	})
}

// Dial creates a client and checks the server answers PING.
func Dial(ctx context.Context, addr string, opts Options) (*redis.Client, error) {
	rdb := NewClient(addr, opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return rdb, nil
}

// Do sends one command given as words, e.g. ["SET", "k", "v"].
func Do(ctx context.Context, rdb *redis.Client, words []string) (any, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	args := make([]any, len(words))
	for i, w := range words {
		args[i] = w
	}
	return rdb.Do(ctx, args...).Result()
}
