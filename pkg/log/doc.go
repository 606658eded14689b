// Package log provides structured protocol capture for the datagram
// security layer.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at three layers (datagram, record, handshake).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/dtls/client.dlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Datagram: raw datagrams (DatagramEvent)
//   - Record: protected records with epoch and sequence (RecordEvent)
//   - Handshake: message fragments (FragmentEvent)
//
// Dropped input (replays, unknown epochs, authentication failures) is
// recorded as a DiscardEvent so silent drops stay visible in captures.
// Alerts, state changes and errors have dedicated event types.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with the .dlog
// extension. The dtls-log CLI tool provides viewing and statistics.
package log
