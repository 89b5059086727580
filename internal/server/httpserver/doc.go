// Package httpserver serves the HTTP side of meshkv.
//
// Routes:
//
//   - GET  /healthz, /readyz              liveness and readiness
//   - GET  /metrics                       Prometheus exposition
//   - GET  /v1/info                       build info and keyspace counters
//   - POST /v1/pubsub/publish/{channel}   publish the request body
//   - GET  /v1/pubsub/ws                  websocket subscription stream
//
// Every request passes through RequestID, Recover and AccessLog. CORS and
// per-IP rate limiting are enabled from configuration, and /metrics can be
// restricted to an IP/CIDR allowlist.
package httpserver
