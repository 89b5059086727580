package redisserver

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/core/pubsub"
)

// formatRedisError converts an error to RESP error text.
func formatRedisError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Reply()
	}
	return "ERR " + err.Error()
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
}

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const (
	limiterPruneSize = 4096
	limiterIdleTTL   = time.Minute
)

func newRateLimiter(perSecond int) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(perSecond),
		burst:    perSecond,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	l, ok := rl.limiters[ip]
	if !ok {
		if len(rl.limiters) >= limiterPruneSize {
			rl.prune(now)
		}
		l = &ipLimiter{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = l
	}
	l.lastSeen = now
	return l.lim.AllowN(now, 1)
}

func (rl *rateLimiter) prune(now time.Time) {
	for ip, l := range rl.limiters {
		if now.Sub(l.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, ip)
		}
	}
}

func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Commands handled by the connection layer rather than the engine.
var connCommands = map[string]bool{
	"PING": true, "ECHO": true, "QUIT": true, "HELLO": true, "SELECT": true, "CLIENT": true,
	"MULTI": true, "EXEC": true, "DISCARD": true, "WATCH": true, "UNWATCH": true,
	"SUBSCRIBE": true, "UNSUBSCRIBE": true, "PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PUBLISH": true, "PUBSUB": true,
}

// Commands accepted while the connection holds subscriptions.
var subscribedCommands = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true, "PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true,
}

// Commands executed immediately inside MULTI instead of being queued.
var txControlCommands = map[string]bool{
	"MULTI": true, "EXEC": true, "DISCARD": true, "WATCH": true, "QUIT": true,
}

// CommandHandler dispatches decoded requests to the engine, the pub/sub
// router or the connection state.
type CommandHandler struct {
	engine   *engine.Engine
	router   *pubsub.Router
	logger   *slog.Logger
	limiter  *rateLimiter
	observer Observer
}

// NewCommandHandler creates a CommandHandler. rateLimit is in commands per
// second per client IP; zero disables limiting.
func NewCommandHandler(eng *engine.Engine, router *pubsub.Router, rateLimit int, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if router == nil {
		router = pubsub.NewRouter(pubsub.WithLogger(logger))
	}

	h := &CommandHandler{
		engine: eng,
		router: router,
		logger: logger,
	}
	if rateLimit > 0 {
		h.limiter = newRateLimiter(rateLimit)
	}
	return h
}

// Handle executes one request and buffers its reply on conn.
func (h *CommandHandler) Handle(conn *Conn, args []string) {
	if len(args) == 0 {
		h.writeError(conn, domain.ErrSyntax.WithMessage("no command"))
		return
	}
	name := normalizeCommandName(args[0])
	rest := args[1:]

	if h.limiter != nil && !h.limiter.allow(clientIP(conn.RemoteAddr())) {
		if h.observer != nil {
			h.observer.CommandRateLimited()
		}
		h.writeError(conn, domain.ErrRateLimited)
		return
	}

	if conn.Subscribed() && !subscribedCommands[name] {
		h.writeError(conn, domain.ErrNotAllowed.WithMessage(
			"Can't execute '%s': only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT are allowed in this context",
			strings.ToLower(name)))
		return
	}

	if conn.tx != nil && conn.tx.State() == engine.TxQueuing && !txControlCommands[name] {
		h.queue(conn, name, rest)
		return
	}

	switch name {
	case "PING":
		h.handlePing(conn, rest)
	case "ECHO":
		h.handleEcho(conn, rest)
	case "QUIT":
		h.handleQuit(conn)
	case "HELLO":
		// RESP3 is not supported; clients fall back to RESP2 on error.
		h.writeError(conn, domain.UnknownCommand("HELLO"))
	case "SELECT":
		h.handleSelect(conn, rest)
	case "CLIENT":
		h.handleClient(conn, rest)
	case "MULTI":
		h.handleMulti(conn, rest)
	case "EXEC":
		h.handleExec(conn, rest)
	case "DISCARD":
		h.handleDiscard(conn, rest)
	case "WATCH":
		h.handleWatch(conn, rest)
	case "UNWATCH":
		h.handleUnwatch(conn)
	case "SUBSCRIBE":
		h.handleSubscribe(conn, rest, pubsub.Literal)
	case "PSUBSCRIBE":
		h.handleSubscribe(conn, rest, pubsub.Pattern)
	case "UNSUBSCRIBE":
		h.handleUnsubscribe(conn, rest, pubsub.Literal)
	case "PUNSUBSCRIBE":
		h.handleUnsubscribe(conn, rest, pubsub.Pattern)
	case "PUBLISH":
		h.handlePublish(conn, rest)
	case "PUBSUB":
		h.handlePubSub(conn, rest)
	default:
		res := h.engine.Exec(engine.Command{Name: name, Args: rest})
		_ = conn.reply(func(w *bufio.Writer) error { return WriteResult(w, res) })
	}
}

func (h *CommandHandler) writeError(conn *Conn, err error) {
	_ = conn.reply(func(w *bufio.Writer) error { return WriteError(w, formatRedisError(err)) })
}

func (h *CommandHandler) writeValue(conn *Conn, v any) {
	_ = conn.reply(func(w *bufio.Writer) error { return WriteValue(w, v) })
}

// release drops everything the connection holds in shared state.
func (h *CommandHandler) release(conn *Conn) {
	conn.subMu.Lock()
	defer conn.subMu.Unlock()
	for spec, sub := range conn.channels {
		h.router.Remove(sub)
		delete(conn.channels, spec)
	}
	for spec, sub := range conn.patterns {
		h.router.Remove(sub)
		delete(conn.patterns, spec)
	}
	if conn.tx != nil {
		conn.tx.Reset()
	}
}

func (h *CommandHandler) handlePing(conn *Conn, args []string) {
	if len(args) > 1 {
		h.writeError(conn, domain.WrongArity("ping"))
		return
	}
	if conn.Subscribed() {
		msg := ""
		if len(args) == 1 {
			msg = args[0]
		}
		h.writeValue(conn, []string{"pong", msg})
		return
	}
	if len(args) == 1 {
		h.writeValue(conn, args[0])
		return
	}
	h.writeValue(conn, engine.Status("PONG"))
}

func (h *CommandHandler) handleEcho(conn *Conn, args []string) {
	if len(args) != 1 {
		h.writeError(conn, domain.WrongArity("echo"))
		return
	}
	h.writeValue(conn, args[0])
}

func (h *CommandHandler) handleQuit(conn *Conn) {
	h.writeValue(conn, engine.OK)
	conn.closing.Store(true)
}

func (h *CommandHandler) handleSelect(conn *Conn, args []string) {
	if len(args) != 1 {
		h.writeError(conn, domain.WrongArity("select"))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		h.writeError(conn, domain.ErrNotNumeric)
		return
	}
	if n != 0 {
		h.writeError(conn, domain.ErrOutOfRange.WithMessage("DB index is out of range"))
		return
	}
	h.writeValue(conn, engine.OK)
}

func (h *CommandHandler) handleClient(conn *Conn, args []string) {
	if len(args) == 0 {
		h.writeError(conn, domain.WrongArity("client"))
		return
	}
	switch strings.ToUpper(args[0]) {
	case "SETNAME":
		if len(args) != 2 {
			h.writeError(conn, domain.WrongArity("client|setname"))
			return
		}
		if strings.ContainsAny(args[1], " \n") {
			h.writeError(conn, domain.ErrInvalidArgument.WithMessage("Client names cannot contain spaces, newlines or special characters."))
			return
		}
		conn.name = args[1]
		h.writeValue(conn, engine.OK)
	case "GETNAME":
		if conn.name == "" {
			h.writeValue(conn, nil)
			return
		}
		h.writeValue(conn, conn.name)
	case "ID":
		h.writeValue(conn, conn.num)
	case "SETINFO":
		if len(args) != 3 {
			h.writeError(conn, domain.WrongArity("client|setinfo"))
			return
		}
		h.writeValue(conn, engine.OK)
	default:
		h.writeError(conn, domain.ErrSyntax.WithMessage("unknown subcommand '%s'", args[0]))
	}
}

func (h *CommandHandler) transaction(conn *Conn) *engine.Transaction {
	if conn.tx == nil {
		conn.tx = h.engine.NewTransaction()
	}
	return conn.tx
}

// queue buffers a command inside MULTI. Connection-level commands cannot
// be queued; rejected engine commands poison the transaction.
func (h *CommandHandler) queue(conn *Conn, name string, args []string) {
	if connCommands[name] {
		h.writeError(conn, domain.ErrNotAllowed.WithMessage("Command '%s' not allowed inside a transaction", strings.ToLower(name)))
		return
	}
	if err := conn.tx.Queue(engine.Command{Name: name, Args: args}); err != nil {
		h.writeError(conn, err)
		return
	}
	h.writeValue(conn, engine.Status("QUEUED"))
}

func (h *CommandHandler) handleMulti(conn *Conn, args []string) {
	if len(args) != 0 {
		h.writeError(conn, domain.WrongArity("multi"))
		return
	}
	if err := h.transaction(conn).Begin(); err != nil {
		h.writeError(conn, err)
		return
	}
	h.writeValue(conn, engine.OK)
}

func (h *CommandHandler) handleExec(conn *Conn, args []string) {
	if len(args) != 0 {
		h.writeError(conn, domain.WrongArity("exec"))
		return
	}
	if conn.tx == nil || conn.tx.State() != engine.TxQueuing {
		h.writeError(conn, domain.ErrTxNotStarted)
		return
	}

	results, err := conn.tx.Commit()
	switch {
	case errors.Is(err, domain.ErrPreconditionFailed):
		h.writeValue(conn, engine.NullArray{})
		return
	case err != nil:
		h.writeError(conn, err)
		return
	}

	out := make([]any, len(results))
	for i, res := range results {
		if res.Err != nil {
			out[i] = res.Err
			continue
		}
		out[i] = res.Value
	}
	h.writeValue(conn, out)
}

func (h *CommandHandler) handleDiscard(conn *Conn, args []string) {
	if len(args) != 0 {
		h.writeError(conn, domain.WrongArity("discard"))
		return
	}
	if conn.tx == nil || conn.tx.State() != engine.TxQueuing {
		h.writeError(conn, domain.ErrTxNotStarted.WithMessage("DISCARD without MULTI"))
		return
	}
	if err := conn.tx.Discard(); err != nil {
		h.writeError(conn, err)
		return
	}
	h.writeValue(conn, engine.OK)
}

func (h *CommandHandler) handleWatch(conn *Conn, keys []string) {
	if len(keys) == 0 {
		h.writeError(conn, domain.WrongArity("watch"))
		return
	}
	tx := h.transaction(conn)
	if tx.State() == engine.TxQueuing {
		h.writeError(conn, domain.ErrWatchInsideTx)
		return
	}
	for _, key := range keys {
		tx.Watch(h.engine.Watch(key))
	}
	h.writeValue(conn, engine.OK)
}

func (h *CommandHandler) handleUnwatch(conn *Conn) {
	if conn.tx != nil {
		conn.tx.Unwatch()
	}
	h.writeValue(conn, engine.OK)
}

func (h *CommandHandler) handleSubscribe(conn *Conn, specs []string, mode pubsub.Mode) {
	kind := "subscribe"
	if mode == pubsub.Pattern {
		kind = "psubscribe"
	}
	if len(specs) == 0 {
		h.writeError(conn, domain.WrongArity(kind))
		return
	}

	for _, spec := range specs {
		conn.subMu.Lock()
		held := conn.channels
		if mode == pubsub.Pattern {
			held = conn.patterns
		}
		if _, ok := held[spec]; !ok {
			held[spec] = h.router.Subscribe(spec, mode, h.deliverTo(conn, spec, mode))
		}
		count := len(conn.channels) + len(conn.patterns)
		conn.subMu.Unlock()

		h.writeValue(conn, []any{kind, spec, int64(count)})
	}
}

func (h *CommandHandler) deliverTo(conn *Conn, spec string, mode pubsub.Mode) pubsub.Handler {
	return func(channel, message string) {
		var err error
		if mode == pubsub.Pattern {
			err = conn.push("pmessage", spec, channel, message)
		} else {
			err = conn.push("message", channel, message)
		}
		if err != nil && !errors.Is(err, net.ErrClosed) {
			h.logger.Debug("pubsub push failed, closing connection",
				"conn", conn.ID().String(), "error", err)
			_ = conn.Close()
		}
	}
}

func (h *CommandHandler) handleUnsubscribe(conn *Conn, specs []string, mode pubsub.Mode) {
	kind := "unsubscribe"
	if mode == pubsub.Pattern {
		kind = "punsubscribe"
	}

	conn.subMu.Lock()
	held := conn.channels
	if mode == pubsub.Pattern {
		held = conn.patterns
	}
	if len(specs) == 0 {
		for spec := range held {
			specs = append(specs, spec)
		}
	}
	replies := make([][]any, 0, len(specs))
	for _, spec := range specs {
		if sub, ok := held[spec]; ok {
			h.router.Remove(sub)
			delete(held, spec)
		}
		replies = append(replies, []any{kind, spec, int64(len(conn.channels) + len(conn.patterns))})
	}
	if len(replies) == 0 {
		replies = append(replies, []any{kind, nil, int64(len(conn.channels) + len(conn.patterns))})
	}
	conn.subMu.Unlock()

	for _, r := range replies {
		h.writeValue(conn, r)
	}
}

func (h *CommandHandler) handlePublish(conn *Conn, args []string) {
	if len(args) != 2 {
		h.writeError(conn, domain.WrongArity("publish"))
		return
	}
	n := h.router.Publish(args[0], args[1])
	h.writeValue(conn, int64(n))
}

func (h *CommandHandler) handlePubSub(conn *Conn, args []string) {
	if len(args) == 0 {
		h.writeError(conn, domain.WrongArity("pubsub"))
		return
	}
	switch strings.ToUpper(args[0]) {
	case "CHANNELS":
		if len(args) > 2 {
			h.writeError(conn, domain.WrongArity("pubsub|channels"))
			return
		}
		pattern := ""
		if len(args) == 2 {
			pattern = args[1]
		}
		h.writeValue(conn, h.router.Channels(pattern))
	case "NUMSUB":
		counts := h.router.NumSub(args[1:]...)
		out := make([]any, 0, 2*len(counts))
		for i, ch := range args[1:] {
			out = append(out, ch, int64(counts[i]))
		}
		h.writeValue(conn, out)
	case "NUMPAT":
		h.writeValue(conn, int64(h.router.NumPat()))
	default:
		h.writeError(conn, domain.ErrSyntax.WithMessage("unknown subcommand '%s'", args[0]))
	}
}
