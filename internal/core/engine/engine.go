package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// Journal receives every write command that completed without error,
// while its key locks are still held.
type Journal interface {
	Append(cmd Command) error
}

// Observer receives execution events, typically for metrics.
type Observer interface {
	CommandDone(name string, elapsed time.Duration, err error)
	KeysExpired(n int)
	TransactionDone(result string)
}

// Transaction results reported to Observer.TransactionDone.
const (
	TxResultCommitted = "committed"
	TxResultAborted   = "aborted"
	TxResultExecAbort = "execabort"
	TxResultDiscarded = "discarded"
)

// Engine executes typed operations and commands against a KeySpace.
type Engine struct {
	ks       *keyspace.KeySpace
	logger   *slog.Logger
	journal  Journal
	observer Observer
	newRand  func() *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithJournal installs a write journal.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithObserver installs an execution observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithRandSeed makes SPOP and SRANDMEMBER deterministic.
func WithRandSeed(seed uint64) Option {
	return func(e *Engine) {
		rng := rand.New(rand.NewPCG(seed, seed))
		e.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
		}
	}
}

// New creates an Engine over ks.
func New(ks *keyspace.KeySpace, opts ...Option) *Engine {
	e := &Engine{
		ks:     ks,
		logger: slog.Default(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// KeySpace returns the underlying key space.
func (e *Engine) KeySpace() *keyspace.KeySpace {
	return e.ks
}

// KeyCount returns the approximate number of stored keys.
func (e *Engine) KeyCount() int {
	return e.ks.Size()
}

func (e *Engine) ops(txn *keyspace.Txn) *Ops {
	return &Ops{txn: txn, newRand: e.newRand}
}

// View runs fn with read locks on keys.
func (e *Engine) View(keys []string, fn func(*Ops) error) error {
	return e.ks.View(keys, func(txn *keyspace.Txn) error {
		return fn(e.ops(txn))
	})
}

// Update runs fn with write locks on keys.
func (e *Engine) Update(keys []string, fn func(*Ops) error) error {
	return e.ks.Update(keys, func(txn *keyspace.Txn) error {
		return fn(e.ops(txn))
	})
}

func view[T any](e *Engine, keys []string, fn func(*Ops) (T, error)) (T, error) {
	var out T
	err := e.View(keys, func(o *Ops) error {
		var err error
		out, err = fn(o)
		return err
	})
	return out, err
}

func update[T any](e *Engine, keys []string, fn func(*Ops) (T, error)) (T, error) {
	var out T
	err := e.Update(keys, func(o *Ops) error {
		var err error
		out, err = fn(o)
		return err
	})
	return out, err
}

func viewAll[T any](e *Engine, fn func(*Ops) (T, error)) (T, error) {
	var out T
	err := e.ks.ViewAll(func(txn *keyspace.Txn) error {
		var err error
		out, err = fn(e.ops(txn))
		return err
	})
	return out, err
}

func updateAll[T any](e *Engine, fn func(*Ops) (T, error)) (T, error) {
	var out T
	err := e.ks.UpdateAll(func(txn *keyspace.Txn) error {
		var err error
		out, err = fn(e.ops(txn))
		return err
	})
	return out, err
}

// RunExpiry purges expired keys every interval until ctx is done. limit
// caps the deletions per tick; limit <= 0 means no cap.
func (e *Engine) RunExpiry(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := e.ks.PurgeExpired(limit)
			if n == 0 {
				continue
			}
			e.logger.Debug("purged expired keys", "count", n)
			if e.observer != nil {
				e.observer.KeysExpired(n)
			}
		}
	}
}
