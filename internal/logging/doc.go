// Package logging provides structured logging for the wsecho server and CLI.
//
// This package wraps a process-wide zap logger with convenience functions for
// the logging patterns used throughout the server. It provides both general
// logging functions and specialized helpers for connection and message events.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Message contents, hex dumps, HTTP request details
//   - Info: Connections, closes, server lifecycle
//   - Warn: Protocol violations by peers, upstream feed failures
//   - Error: Startup failures, unexpected transport errors
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Connection accepted",
//	    zap.String("remote_addr", "192.168.1.100:53211"),
//	    zap.String("session", sess.ID),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection(remoteAddr, "websocket_upgraded")
//	logging.LogWebSocketMessage(remoteAddr, "received", 1, payload)
//	logging.LogClose(remoteAddr, 1009, "message too large")
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.InitializeWithFormat("info", "json"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// CLI commands call InitializeFromEnv and stay silent unless WSECHO_LOG_LEVEL
// is set.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
