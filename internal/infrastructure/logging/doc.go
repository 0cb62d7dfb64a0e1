// Package logging provides structured logging for the hydro service.
//
// It wraps log/slog so every entry carries the same default fields
// (service, version) and honours the configured level and format.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("acquisition started", "interval", cfg.Acquisition.Interval)
//	linkLog := logger.With("component", "link")
//
// Never log secrets (InfluxDB tokens, MQTT passwords).
package logging
