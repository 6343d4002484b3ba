// Package logging provides structured logging for the Gray Logic driver agent
// and authority.
//
// This package wraps Go's standard log/slog package so both binaries emit the
// same structured records.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
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
//	logger := logging.New(cfg.Logging, "graylogic-driver", version)
//	logger.Info("registered", "driver_id", id)
//
// Never log token secrets or broker passwords.
package logging
