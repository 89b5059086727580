// Package main provides the entry point for meshkv-server.
//
// The server hosts one in-memory key space and pub/sub router and serves
// them over:
//
//   - a Redis-compatible RESP2 listener
//   - an HTTP API with health, info, metrics and a websocket pub/sub bridge
//
// Usage:
//
//	meshkv-server [--config meshkv.yaml] [--redis-addr host:port] [--http-addr host:port]
//	meshkv-server check-config --config meshkv.yaml
//
// Environment variables with the MESHKV_ prefix override the file, and
// flags override both. Changing log.level in the file takes effect
// without a restart.
package main
