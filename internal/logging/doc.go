// Package logging provides structured logging for cellwatch.
//
// This package wraps zap logger with package-level convenience functions.
// Logging is silent unless a level is configured, so CLI output stays clean
// by default.
//
// # Log Levels
//
//   - Debug: hex dumps of rejected frames, per-frame decode detail
//   - Info: session lifecycle, HTTP requests, subscriber connections
//   - Warn: session state inconsistencies, device read retries
//   - Error: device failures, capture file errors
//
// # Structured Logging
//
//	logging.Warn("Session state inconsistency",
//	    zap.String("detail", "handover complete without handover command"),
//	    zap.Uint64("seq", 42),
//	)
//
// # Configuration
//
// The level comes from the --log-level flag, the config file or the
// CELLWATCH_LOG_LEVEL environment variable, in that order:
//
//	if err := logging.InitializeWithOptions(logging.Options{
//	    Level: "debug",
//	    File:  "/var/log/cellwatch.log",
//	}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Console output goes to stderr. When File is set, JSON entries are also
// written there and rotated by lumberjack.
package logging
