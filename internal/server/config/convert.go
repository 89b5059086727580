package config

import (
	"github.com/yndnr/meshkv/internal/server/httpserver"
	"github.com/yndnr/meshkv/internal/server/redisserver"
	"github.com/yndnr/meshkv/internal/telemetry/logger"
)

// TLSEnabled reports whether any enabled listener serves TLS.
func TLSEnabled(cfg *ServerConfig) bool {
	return tlsWanted(&cfg.Server)
}

// ToRedisConfig maps the redis section onto the RESP listener config.
func ToRedisConfig(cfg *ServerConfig) *redisserver.Config {
	r := cfg.Server.Redis
	return &redisserver.Config{
		Enabled:      r.Enabled,
		Address:      r.Addr,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		IdleTimeout:  r.IdleTimeout,
		RateLimit:    r.RateLimit,
		MaxClients:   r.MaxClients,
	}
}

// ToHTTPConfig maps the http section onto the HTTP listener config.
func ToHTTPConfig(cfg *ServerConfig) *httpserver.Config {
	h := cfg.Server.HTTP
	out := httpserver.DefaultConfig()
	out.Enabled = h.Enabled
	out.Address = h.Addr
	out.RateLimit = h.RateLimit
	out.CORSAllowedOrigins = h.CORSAllowedOrigins
	out.MetricsAllowList = h.MetricsAllowList
	return out
}

// ToLoggerConfig maps the log section onto the logger config.
func ToLoggerConfig(cfg *ServerConfig) logger.Config {
	out := logger.DefaultConfig()
	out.Level = cfg.Log.Level
	out.Format = cfg.Log.Format
	if cfg.Log.Backend != "" {
		out.Backend = cfg.Log.Backend
	}
	out.MaxValueLength = cfg.Log.MaxValueLength
	return out
}
