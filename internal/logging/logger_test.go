package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitialize_SilentWithoutLevel(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be a no-op when no level is configured")
	}
}

func TestInitializeWithFormat_UnknownFormat(t *testing.T) {
	if err := InitializeWithFormat("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLogClose(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	LogClose("10.0.0.1:5000", 1009, "message too large")

	entries := logs.FilterField(zap.Int("close_code", 1009)).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 close log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["reason"] != "message too large" {
		t.Errorf("reason field = %v", entries[0].ContextMap()["reason"])
	}
}

func TestASCII(t *testing.T) {
	if got := ASCII([]byte{'h', 'i', 0x00, 0x7F, '!'}); got != "hi..!" {
		t.Errorf("ASCII() = %q, want %q", got, "hi..!")
	}
}
