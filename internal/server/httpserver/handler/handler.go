package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/internal/core/pubsub"
)

// KeyCounter reports the number of live keys.
type KeyCounter interface {
	KeyCount() int
}

// ClientCounter reports the number of open RESP connections.
type ClientCounter interface {
	Clients() int
}

// Config wires the handler to the running server.
type Config struct {
	Keys   KeyCounter
	PubSub *pubsub.Router
	// Clients is optional.
	Clients ClientCounter
	// AllowedOrigins restricts websocket upgrades by Origin header.
	// Empty allows any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Handler routes the meshkv HTTP API.
type Handler struct {
	keys     KeyCounter
	router   *pubsub.Router
	clients  ClientCounter
	logger   *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time
	mux      *chi.Mux
}

// New creates a Handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		keys:    cfg.Keys,
		router:  cfg.PubSub,
		clients: cfg.Clients,
		logger:  logger,
		started: time.Now(),
		mux:     chi.NewRouter(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.Get("/healthz", h.handleHealth)
	h.mux.Get("/readyz", h.handleReady)

	h.mux.Route("/v1", func(r chi.Router) {
		r.Get("/info", h.handleInfo)
		r.Route("/pubsub", func(r chi.Router) {
			r.Post("/publish/{channel}", h.handlePublish)
			r.Get("/ws", h.handleStream)
		})
	})

	h.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, http.StatusNotFound, "KV-HTTP-4040", "route not found", nil)
	})
	h.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, http.StatusMethodNotAllowed, "KV-HTTP-4050", "method not allowed", nil)
	})
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := NewResponse(middleware.GetReqID(r.Context()), data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	response := NewErrorResponse(middleware.GetReqID(r.Context()), code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// handleServiceError converts domain errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if code := domain.GetErrorCode(err); code != "" {
		h.writeError(w, r, errorCodeToHTTPStatus(code), code, err.Error(), nil)
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasPrefix(code, "KV-TX-409"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasPrefix(code, "KV-ARG-"), strings.HasPrefix(code, "KV-TYPE-"),
		strings.HasPrefix(code, "KV-NUM-"), strings.HasPrefix(code, "KV-RANGE-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
