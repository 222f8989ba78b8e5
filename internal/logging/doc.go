// Package logging provides structured logging for the LocalzPush SDK.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the SDK: registration state transitions, backend
// calls and inbound push payloads.
//
// # Silent by Default
//
// An SDK embedded in a host application must not write to stdout unless asked
// to. The global logger is a no-op until one of the following happens:
//   - LOCALZPUSH_LOG_LEVEL is set and InitializeFromEnv is called
//   - the host calls Initialize or SetLogger
//   - the SDK configuration enables debug, which calls EnableDebug
//
// # Structured Logging
//
//	logging.Info("Device registered",
//	    zap.String("device_id", id),
//	    zap.String("host", host),
//	)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
