// Package logging provides structured logging for the Chuango bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Redaction helpers for cloud request parameters
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting bridge", "region", cfg.Account.Region)
//
// # Security
//
// Never log passwords, bearer tokens or device MQTT tokens. Cloud request
// parameters pass through Redact before they are logged, and response
// bodies are cut with Truncate.
package logging
