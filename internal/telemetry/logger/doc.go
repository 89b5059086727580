// Package logger provides structured logging for meshkv.
//
//   - logger.go: Logger interface, slog construction, runtime level
//   - zap.go: slog.Handler backed by a zap core
//   - truncate.go: shortening of long attribute values
//   - context.go: context propagation of loggers and request/connection ids
//
// Both backends share one process-wide level so SetLevel (driven by config
// hot reload) applies immediately. Components that only need a
// *slog.Logger get one from Slog.
package logger
