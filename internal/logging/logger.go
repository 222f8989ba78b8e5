package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "LOCALZPUSH_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks LOCALZPUSH_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		SetLogger(zap.NewNop())
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l.Named("localzpush"))

	return nil
}

// InitializeFromEnv initializes the logger from the LOCALZPUSH_LOG_LEVEL
// environment variable.
func InitializeFromEnv() error {
	return Initialize("")
}

// EnableDebug switches to a debug logger unless a non-silent logger has
// already been configured. Used when the SDK configuration turns on debug.
func EnableDebug() error {
	if IsEnabled() {
		return nil
	}
	return Initialize("debug")
}

// IsEnabled reports whether any log output is produced.
func IsEnabled() bool {
	return GetLogger().Core().Enabled(zapcore.ErrorLevel)
}

// SetLogger replaces the global logger. Host applications use this to route
// SDK logs into their own zap tree.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		// Silent until someone asks for output
		return zap.NewNop()
	}
	return l
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogStateTransition logs a registration state change
func LogStateTransition(deviceID, from, to string) {
	Info("Registration state changed",
		zap.String("device_id", deviceID),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogBackendRequest logs an outbound backend call
func LogBackendRequest(method, url, deviceID string) {
	Debug("Backend request",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("device_id", deviceID),
	)
}

// LogBackendResponse logs the outcome of a backend call
func LogBackendResponse(method, url string, statusCode int, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status_code", statusCode),
	}
	if err != nil {
		Warn("Backend call failed", append(fields, zap.Error(err))...)
		return
	}
	Debug("Backend response", fields...)
}

// LogPayload logs the keys of an inbound push payload. Values are not logged
// since they may carry user content.
func LogPayload(label string, payload map[string]any) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	Debug(label,
		zap.Int("keys", len(keys)),
		zap.Strings("fields", keys),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
