package pubsub

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/meshkv/pkg/glob"
)

// Mode selects how a subscription spec is matched.
type Mode uint8

const (
	Auto Mode = iota
	Literal
	Pattern
)

func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Literal:
		return "literal"
	case Pattern:
		return "pattern"
	}
	return "unknown"
}

// ParseMode parses "auto", "literal" or "pattern"; empty means Auto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Auto, nil
	case "literal":
		return Literal, nil
	case "pattern":
		return Pattern, nil
	}
	return Auto, fmt.Errorf("pubsub: unknown mode %q", s)
}

// Resolve returns Literal or Pattern for spec.
func (m Mode) Resolve(spec string) Mode {
	if m != Auto {
		return m
	}
	if glob.IsPattern(spec) {
		return Pattern
	}
	return Literal
}

// Handler receives a published message.
type Handler func(channel, message string)

// Subscription is one registered handler.
type Subscription struct {
	ID   ulid.ULID
	Spec string
	// Mode is Literal or Pattern, never Auto.
	Mode Mode

	seq     uint64
	handler Handler
}

// Matches reports whether a message on channel reaches s.
func (s *Subscription) Matches(channel string) bool {
	if s.Mode == Pattern {
		return glob.Match(s.Spec, channel)
	}
	return s.Spec == channel
}

// Observer receives routing events, typically for metrics.
type Observer interface {
	Published(channel string, receivers int)
}

// Router is the subscription registry.
type Router struct {
	mu       sync.RWMutex
	literal  map[string][]*Subscription
	patterns []*Subscription
	seq      uint64

	logger   *slog.Logger
	observer Observer
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver installs a routing observer.
func WithObserver(o Observer) Option {
	return func(r *Router) {
		r.observer = o
	}
}

// NewRouter creates an empty router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		literal: make(map[string][]*Subscription),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers handler for spec.
func (r *Router) Subscribe(spec string, mode Mode, handler Handler) *Subscription {
	sub := &Subscription{
		ID:      ulid.Make(),
		Spec:    spec,
		Mode:    mode.Resolve(spec),
		handler: handler,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	sub.seq = r.seq
	if sub.Mode == Pattern {
		r.patterns = append(r.patterns, sub)
	} else {
		r.literal[spec] = append(r.literal[spec], sub)
	}
	return sub
}

// Unsubscribe removes every subscription whose spec equals spec exactly
// and returns how many were removed.
func (r *Router) Unsubscribe(spec string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := len(r.literal[spec])
	delete(r.literal, spec)

	kept := r.patterns[:0]
	for _, sub := range r.patterns {
		if sub.Spec == spec {
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	clear(r.patterns[len(kept):])
	r.patterns = kept
	return removed
}

// Remove drops a single subscription and reports whether it was
// registered.
func (r *Router) Remove(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.Mode == Pattern {
		i := slices.Index(r.patterns, sub)
		if i < 0 {
			return false
		}
		r.patterns = slices.Delete(r.patterns, i, i+1)
		return true
	}

	subs := r.literal[sub.Spec]
	i := slices.Index(subs, sub)
	if i < 0 {
		return false
	}
	subs = slices.Delete(subs, i, i+1)
	if len(subs) == 0 {
		delete(r.literal, sub.Spec)
	} else {
		r.literal[sub.Spec] = subs
	}
	return true
}

func (r *Router) snapshot(channel string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := slices.Clone(r.literal[channel])
	for _, sub := range r.patterns {
		if sub.Matches(channel) {
			matched = append(matched, sub)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	return matched
}

// Publish delivers message to every subscription matching channel and
// returns how many received it. A subscriber reached through two specs is
// counted twice.
func (r *Router) Publish(channel, message string) int {
	matched := r.snapshot(channel)
	for _, sub := range matched {
		r.deliver(sub, channel, message)
	}
	if r.observer != nil {
		r.observer.Published(channel, len(matched))
	}
	return len(matched)
}

func (r *Router) deliver(sub *Subscription, channel, message string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("subscription handler panicked",
				"subscription", sub.ID.String(),
				"spec", sub.Spec,
				"panic", p,
			)
		}
	}()
	sub.handler(channel, message)
}

// Channels returns the literal channels with at least one subscriber that
// match pattern, sorted. An empty pattern matches every channel.
func (r *Router) Channels(pattern string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []string{}
	for ch := range r.literal {
		if pattern == "" || glob.Match(pattern, ch) {
			out = append(out, ch)
		}
	}
	sort.Strings(out)
	return out
}

// NumSub returns the number of literal subscriptions on each channel.
func (r *Router) NumSub(channels ...string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int, len(channels))
	for i, ch := range channels {
		out[i] = len(r.literal[ch])
	}
	return out
}

// NumPat returns the number of pattern subscriptions.
func (r *Router) NumPat() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

// Count returns the total number of subscriptions.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.patterns)
	for _, subs := range r.literal {
		n += len(subs)
	}
	return n
}
