package pkg

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			if got := GetLogLevel(); got != tt.level {
				t.Errorf("GetLogLevel() = %v, want %v", got, tt.level)
			}
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, nil)
	if logger == nil {
		t.Fatal("NewJSONLogger returned nil")
	}

	logger.Warn("queue full")
	if !strings.Contains(buf.String(), `"msg":"queue full"`) {
		t.Errorf("JSON log output missing message: %s", buf.String())
	}
}

func TestLogComponents(t *testing.T) {
	original := DefaultLogger
	originalLevel := GetLogLevel()
	defer func() {
		SetLogger(original)
		SetLogLevel(originalLevel)
	}()

	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
	}{
		{"debug", LogDebug, ComponentSubmit},
		{"info", LogInfo, ComponentChannel},
		{"warn", LogWarn, ComponentIRQ},
		{"error", LogError, ComponentHAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetLogLevel(slog.LevelDebug)
			SetLogger(NewLogger(&buf, nil))

			tt.log(tt.component, tt.name+" message", "channel", 2)
			output := buf.String()
			if !strings.Contains(output, tt.name+" message") {
				t.Errorf("log missing message: %s", output)
			}
			if !strings.Contains(output, "component="+string(tt.component)) {
				t.Errorf("log missing component: %s", output)
			}
			if !strings.Contains(output, "channel=2") {
				t.Errorf("log missing attribute: %s", output)
			}
		})
	}
}

func TestLogEnabled(t *testing.T) {
	original := DefaultLogger
	originalLevel := GetLogLevel()
	defer func() {
		SetLogger(original)
		SetLogLevel(originalLevel)
	}()

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, nil))
	SetLogLevel(slog.LevelWarn)

	if LogEnabled(slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !LogEnabled(slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}

	LogDebug(ComponentIRQ, "suppressed")
	if buf.Len() != 0 {
		t.Errorf("suppressed message was written: %s", buf.String())
	}
}

func TestStdLogger(t *testing.T) {
	original := DefaultLogger
	originalLevel := GetLogLevel()
	defer func() {
		SetLogger(original)
		SetLogLevel(originalLevel)
	}()

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, nil))
	SetLogLevel(slog.LevelInfo)

	StdLogger(ComponentApp, slog.LevelError).Println("listener failed")
	output := buf.String()
	if !strings.Contains(output, "listener failed") {
		t.Errorf("log missing message: %s", output)
	}
	if !strings.Contains(output, "component=app") || !strings.Contains(output, "level=ERROR") {
		t.Errorf("log missing component or level: %s", output)
	}
}
