// Package logger builds the server's log/slog loggers.
//
//   - logger.go: handler construction and the process-wide level
//   - context.go: request ID propagation into log records
//   - redact.go: masking of plaintext TANs and secrets
//
// Every logger built by New shares one level, so a hot-reloaded log.level
// applies to loggers already held by the storage and service layers.
package logger
