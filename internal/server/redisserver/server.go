package redisserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/core/pubsub"
)

// Config holds the RESP server configuration.
type Config struct {
	// Enabled turns the listener on.
	Enabled bool
	// Address is the TCP listen address.
	Address string
	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one reply or pushed message.
	WriteTimeout time.Duration
	// IdleTimeout closes connections idle between commands. Connections in
	// subscribed mode are exempt.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per client IP.
	// Zero disables rate limiting.
	RateLimit int
	// MaxClients caps concurrent connections. Zero means unlimited.
	MaxClients int
	// TLS, when set, serves RESP over TLS.
	TLS *tls.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		Address:      "127.0.0.1:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    0,
		MaxClients:   10000,
	}
}

// Observer receives connection events, typically for metrics.
type Observer interface {
	ConnOpened()
	ConnClosed()
	CommandRateLimited()
}

// Option configures a Server.
type Option func(*Server)

// WithObserver installs a connection observer.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// Server serves the RESP2 protocol on top of an engine and a pub/sub router.
type Server struct {
	cfg      *Config
	handler  *CommandHandler
	logger   *slog.Logger
	observer Observer

	mu    sync.Mutex
	ln    net.Listener
	conns map[*Conn]struct{}

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a RESP server.
func New(cfg *Config, eng *engine.Engine, router *pubsub.Router, logger *slog.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "redisserver"),
		conns:  make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = NewCommandHandler(eng, router, s.cfg.RateLimit, s.logger)
	s.handler.observer = s.observer
	return s
}

// Start binds the listener and serves connections in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("redis server disabled")
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
	}
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.running.Store(true)
	s.logger.Info("redis server listening", "address", ln.Addr().String(), "tls", s.cfg.TLS != nil)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil {
			s.logger.Error("redis accept loop stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown closes the listener and every open connection, then waits for
// the connection goroutines to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	s.mu.Lock()
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		c := newConn(nc)
		if !s.track(c) {
			s.logger.Warn("max clients reached, rejecting connection", "remote", nc.RemoteAddr())
			_ = WriteError(c.bw, "ERR max number of clients reached")
			_ = c.bw.Flush()
			_ = c.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxClients > 0 && len(s.conns) >= s.cfg.MaxClients {
		return false
	}
	s.conns[c] = struct{}{}
	if s.observer != nil {
		s.observer.ConnOpened()
	}
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c]; !ok {
		return
	}
	delete(s.conns, c)
	if s.observer != nil {
		s.observer.ConnClosed()
	}
}

func (s *Server) timeouts() (read, write, idle time.Duration) {
	read, write, idle = s.cfg.ReadTimeout, s.cfg.WriteTimeout, s.cfg.IdleTimeout
	if read == 0 {
		read = 30 * time.Second
	}
	if write == 0 {
		write = 30 * time.Second
	}
	if idle == 0 {
		idle = 5 * time.Minute
	}
	return read, write, idle
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	readTimeout, writeTimeout, idleTimeout := s.timeouts()
	c.writeTimeout = writeTimeout
	log := s.logger.With("conn", c.ID().String(), "remote", c.RemoteAddr().String())
	log.Debug("connection opened")

	defer func() {
		s.handler.release(c)
		_ = c.Close()
		log.Debug("connection closed")
	}()

	for {
		// Idle wait for the first byte; subscribers may stay silent forever.
		var idleDeadline time.Time
		if !c.Subscribed() {
			idleDeadline = time.Now().Add(idleTimeout)
		}
		if err := c.netConn.SetReadDeadline(idleDeadline); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			logReadError(log, err)
			return
		}

		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		args, err := ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Debug("connection timed out")
				return
			}
			if errors.Is(err, ErrLimitExceeded) {
				log.Warn("protocol limit exceeded", "error", err)
				_ = c.replyFlush(func(w *bufio.Writer) error { return WriteError(w, "ERR protocol limit exceeded") })
				return
			}
			_ = c.replyFlush(func(w *bufio.Writer) error { return WriteError(w, "ERR Protocol error: "+err.Error()) })
			return
		}
		if len(args) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			_ = c.replyFlush(func(w *bufio.Writer) error { return WriteError(w, "ERR server is shutting down") })
			return
		default:
		}

		s.handler.Handle(c, args)

		if err := c.flush(); err != nil {
			return
		}
		if c.closing.Load() {
			return
		}
	}
}

func logReadError(log *slog.Logger, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		log.Debug("connection timed out")
		return
	}
	log.Debug("connection read error", "error", err)
}

// Conn is one client connection. Replies are written by the serving
// goroutine; pub/sub messages are pushed by publishing goroutines, so every
// write goes through wmu.
type Conn struct {
	id      ulid.ULID
	num     int64
	netConn net.Conn
	br      *bufio.Reader

	wmu          sync.Mutex
	bw           *bufio.Writer
	writeTimeout time.Duration

	// Owned by the serving goroutine.
	name string
	tx   *engine.Transaction

	subMu    sync.Mutex
	channels map[string]*pubsub.Subscription
	patterns map[string]*pubsub.Subscription

	closing atomic.Bool
	closed  atomic.Bool
}

var connSeq atomic.Int64

func newConn(c net.Conn) *Conn {
	return &Conn{
		id:       ulid.Make(),
		num:      connSeq.Add(1),
		netConn:  c,
		br:       bufio.NewReader(c),
		bw:       bufio.NewWriter(c),
		channels: make(map[string]*pubsub.Subscription),
		patterns: make(map[string]*pubsub.Subscription),
	}
}

// ID returns the connection id.
func (c *Conn) ID() ulid.ULID {
	return c.id
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Subscribed reports whether the connection holds any subscription.
func (c *Conn) Subscribed() bool {
	return c.SubscriptionCount() > 0
}

// SubscriptionCount returns the number of channels and patterns held.
func (c *Conn) SubscriptionCount() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.channels) + len(c.patterns)
}

// reply writes into the buffer without flushing.
func (c *Conn) reply(fn func(w *bufio.Writer) error) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return fn(c.bw)
}

func (c *Conn) flush() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.flushLocked()
}

func (c *Conn) flushLocked() error {
	if c.bw.Buffered() == 0 {
		return nil
	}
	if c.writeTimeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}

func (c *Conn) replyFlush(fn func(w *bufio.Writer) error) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := fn(c.bw); err != nil {
		return err
	}
	return c.flushLocked()
}

// push delivers a pub/sub message array and flushes it immediately.
func (c *Conn) push(parts ...string) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	return c.replyFlush(func(w *bufio.Writer) error {
		return WriteValue(w, parts)
	})
}
