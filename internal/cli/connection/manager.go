package connection

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotConnected is returned when no server is selected.
var ErrNotConnected = errors.New("not connected (use CONNECT host:port)")

// Connection is the server the CLI currently talks to.
type Connection struct {
	Addr   string
	Client *redis.Client
}

// Manager tracks the current connection of an interactive session.
type Manager struct {
	opts    Options
	mu      sync.Mutex
	current *Connection
}

// NewManager creates a new connection manager.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts}
}

// Connect dials addr and makes it current. The previous connection is
// closed only after the new one succeeds.
func (m *Manager) Connect(ctx context.Context, addr string) error {
	rdb, err := Dial(ctx, addr, m.opts)
	if err != nil {
		return err
	}

	m.mu.Lock()
	prev := m.current
	m.current = &Connection{Addr: addr, Client: rdb}
	m.mu.Unlock()

	if prev != nil {
		_ = prev.Client.Close()
	}
	return nil
}

// Disconnect closes the current connection.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	if prev == nil {
		return nil
	}
	return prev.Client.Close()
}

// Current returns the current connection, or nil.
func (m *Manager) Current() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	return m.Current() != nil
}

// Do runs a command on the current connection.
func (m *Manager) Do(ctx context.Context, words []string) (any, error) {
	conn := m.Current()
	if conn == nil {
		return nil, ErrNotConnected
	}
	return Do(ctx, conn.Client, words)
}
