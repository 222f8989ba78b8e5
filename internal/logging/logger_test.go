package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize_SilentWhenUnset(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if IsEnabled() {
		t.Error("logger should be silent when no level is configured")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	defer SetLogger(nil)

	core := GetLogger().Core()
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnableDebug_KeepsExistingLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	if err := EnableDebug(); err != nil {
		t.Fatalf("EnableDebug() error = %v", err)
	}

	LogStateTransition("dev-1", "NotStarted", "PushEnabled")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry on the host logger, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["to"] != "PushEnabled" {
		t.Errorf("to field = %v, want PushEnabled", entry.ContextMap()["to"])
	}
}

func TestLogBackendResponse_WarnsOnError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogBackendResponse("POST", "https://example/v1", 0, errTest)

	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Error("expected a warn entry for a failed backend call")
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
