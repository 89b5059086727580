package config

import "time"

// Default configuration values.
const (
	DefaultRedisAddr         = "127.0.0.1:6379"
	DefaultRedisReadTimeout  = 30 * time.Second
	DefaultRedisWriteTimeout = 30 * time.Second
	DefaultRedisIdleTimeout  = 5 * time.Minute
	DefaultRedisMaxClients   = 10000

	DefaultHTTPAddr = "127.0.0.1:8080"

	DefaultShards         = 64
	DefaultExpiryInterval = 100 * time.Millisecond
	DefaultExpirySample   = 1000

	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultLogBackend = "slog"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Redis: RedisConfig{
				Enabled:      true,
				Addr:         DefaultRedisAddr,
				ReadTimeout:  DefaultRedisReadTimeout,
				WriteTimeout: DefaultRedisWriteTimeout,
				IdleTimeout:  DefaultRedisIdleTimeout,
				MaxClients:   DefaultRedisMaxClients,
			},
			HTTP: HTTPConfig{
				Enabled: true,
				Addr:    DefaultHTTPAddr,
			},
		},
		Storage: StorageSection{
			Shards:         DefaultShards,
			ExpiryInterval: DefaultExpiryInterval,
			ExpirySample:   DefaultExpirySample,
		},
		Log: LogSection{
			Level:   DefaultLogLevel,
			Format:  DefaultLogFormat,
			Backend: DefaultLogBackend,
		},
	}
}
