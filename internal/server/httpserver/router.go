package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yndnr/meshkv/internal/core/pubsub"
	"github.com/yndnr/meshkv/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Keys    handler.KeyCounter
	PubSub  *pubsub.Router
	Clients handler.ClientCounter

	// Metrics serves /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	Logger *slog.Logger

	// RateLimit is requests per second per IP. Zero disables it.
	RateLimit int
	// CORSAllowedOrigins enables CORS when non-empty.
	CORSAllowedOrigins []string
	// MetricsAllowList restricts /metrics (empty = no restriction).
	MetricsAllowList []string
}

// NewRouter builds the chi router with every route and middleware.
//
// Order: RequestID -> Recover -> AccessLog -> CORS -> RateLimit -> handler.
// /metrics skips the rate limit and goes through NetworkACL instead.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(handler.Config{
		Keys:           cfg.Keys,
		PubSub:         cfg.PubSub,
		Clients:        cfg.Clients,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	r := chi.NewRouter()
	r.Use(RequestID(), Recover(logger), AccessLog(logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(CORS(cfg.CORSAllowedOrigins))
	}

	if cfg.Metrics != nil {
		r.With(NetworkACL(&NetworkACLConfig{
			AllowList: cfg.MetricsAllowList,
			Logger:    logger,
		})).Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(RateLimit(cfg.RateLimit))
		}
		r.Mount("/", h)
	})

	return r
}

// RouterConfigFrom fills the transport settings of a RouterConfig from cfg.
func RouterConfigFrom(cfg *Config) *RouterConfig {
	return &RouterConfig{
		RateLimit:          cfg.RateLimit,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsAllowList:   cfg.MetricsAllowList,
	}
}
