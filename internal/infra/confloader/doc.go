// Package confloader loads configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Values passed through LoadMap (command-line flags)
//  2. Environment variables (MESHKV_ prefix)
//  3. The YAML configuration file
//  4. Whatever the target struct held before Load (defaults)
//
// Environment names map onto keys by replacing dots with underscores, so
// MESHKV_SERVER_REDIS_READ_TIMEOUT sets server.redis.read_timeout. Keys
// are discovered from the target's koanf tags, which keeps underscores
// inside key names intact.
//
// Watcher reports writes to a watched file so the caller can reload.
package confloader
