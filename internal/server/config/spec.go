package config

import "time"

// ServerConfig is the root configuration for meshkv-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the network listeners.
type ServerSection struct {
	Redis RedisConfig `koanf:"redis"`
	HTTP  HTTPConfig  `koanf:"http"`
	TLS   TLSConfig   `koanf:"tls"`
}

// RedisConfig configures the RESP listener.
type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	// RateLimit is commands per second per client IP; 0 disables it.
	RateLimit  int `koanf:"rate_limit"`
	MaxClients int `koanf:"max_clients"`
	// TLS serves RESP with the server.tls key pair.
	TLS bool `koanf:"tls"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Enabled            bool     `koanf:"enabled"`
	Addr               string   `koanf:"addr"`
	RateLimit          int      `koanf:"rate_limit"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	MetricsAllowList   []string `koanf:"metrics_allow_list"`
	TLS                bool     `koanf:"tls"`
}

// TLSConfig holds the key pair shared by listeners with tls enabled. The
// files are watched and reloaded on change.
type TLSConfig struct {
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	// ClientCAFile, when set, requires client certificates signed by it.
	ClientCAFile string `koanf:"client_ca_file"`
}

// StorageSection configures the key space.
type StorageSection struct {
	// Shards is the stripe count; a power of two.
	Shards int `koanf:"shards"`
	// ExpiryInterval is how often the active expiry sweep runs.
	ExpiryInterval time.Duration `koanf:"expiry_interval"`
	// ExpirySample bounds keys purged per sweep; 0 means unbounded.
	ExpirySample int `koanf:"expiry_sample"`
}

// LogSection configures logging. Level is hot-reloadable.
type LogSection struct {
	Level          string `koanf:"level"`
	Format         string `koanf:"format"`
	Backend        string `koanf:"backend"`
	MaxValueLength int    `koanf:"max_value_length"`
}
