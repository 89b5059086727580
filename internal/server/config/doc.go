// Package config defines the meshkv-server configuration.
//
//   - spec.go: ServerConfig struct definition with koanf tags
//   - default.go: default values
//   - verify.go: validation (address formats, port conflicts, ranges)
//   - convert.go: mapping onto the listener and logger configs
//
// Configuration is loaded by internal/infra/confloader from defaults, an
// optional YAML file and MESHKV_* environment variables.
package config
