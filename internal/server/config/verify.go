package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/yndnr/meshkv/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if !cfg.Redis.Enabled && !cfg.HTTP.Enabled {
		return errors.New("at least one of server.redis and server.http must be enabled")
	}

	if cfg.Redis.Enabled {
		if err := verifyAddr("server.redis.addr", cfg.Redis.Addr); err != nil {
			return err
		}
		if cfg.Redis.ReadTimeout < 0 || cfg.Redis.WriteTimeout < 0 || cfg.Redis.IdleTimeout < 0 {
			return errors.New("server.redis timeouts must not be negative")
		}
		if cfg.Redis.RateLimit < 0 {
			return errors.New("server.redis.rate_limit must not be negative")
		}
		if cfg.Redis.MaxClients < 0 {
			return errors.New("server.redis.max_clients must not be negative")
		}
	}

	if cfg.HTTP.Enabled {
		if err := verifyAddr("server.http.addr", cfg.HTTP.Addr); err != nil {
			return err
		}
		if cfg.HTTP.RateLimit < 0 {
			return errors.New("server.http.rate_limit must not be negative")
		}
		for _, entry := range cfg.HTTP.MetricsAllowList {
			if !validACLEntry(entry) {
				return fmt.Errorf("server.http.metrics_allow_list: invalid IP or CIDR %q", entry)
			}
		}
	}

	if cfg.Redis.Enabled && cfg.HTTP.Enabled && samePort(cfg.Redis.Addr, cfg.HTTP.Addr) {
		return fmt.Errorf("server.redis.addr and server.http.addr conflict: %s", cfg.Redis.Addr)
	}
	return verifyTLS(cfg)
}

func verifyTLS(cfg *ServerSection) error {
	if !tlsWanted(cfg) {
		return nil
	}
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return errors.New("server.tls.cert_file and server.tls.key_file are required when a listener enables tls")
	}
	return nil
}

func tlsWanted(cfg *ServerSection) bool {
	return (cfg.Redis.Enabled && cfg.Redis.TLS) || (cfg.HTTP.Enabled && cfg.HTTP.TLS)
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.Shards <= 0 || cfg.Shards&(cfg.Shards-1) != 0 {
		return fmt.Errorf("storage.shards must be a positive power of two, got %d", cfg.Shards)
	}
	if cfg.ExpiryInterval <= 0 {
		return errors.New("storage.expiry_interval must be positive")
	}
	if cfg.ExpirySample < 0 {
		return errors.New("storage.expiry_sample must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level: unknown level %q", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "slog", "zap":
	default:
		return fmt.Errorf("log.backend: unknown backend %q", cfg.Backend)
	}
	return nil
}

func verifyAddr(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("%s: invalid port %q", key, port)
	}
	return nil
}

// samePort reports whether two listen addresses would collide. Port 0
// never collides.
func samePort(a, b string) bool {
	hostA, portA, errA := net.SplitHostPort(a)
	hostB, portB, errB := net.SplitHostPort(b)
	if errA != nil || errB != nil || portA != portB || portA == "0" {
		return false
	}
	wildcard := func(h string) bool { return h == "" || h == "0.0.0.0" || h == "::" }
	return hostA == hostB || wildcard(hostA) || wildcard(hostB)
}

func validACLEntry(entry string) bool {
	if strings.Contains(entry, "/") {
		_, _, err := net.ParseCIDR(entry)
		return err == nil
	}
	return net.ParseIP(entry) != nil
}
