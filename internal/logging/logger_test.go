// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("test message")
	Debug().Msg("debug line")

	output := buf.String()
	if !strings.Contains(output, `"message":"test message"`) {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected output to contain level, got: %s", output)
	}
	if !strings.Contains(output, "debug line") {
		t.Errorf("debug level should be enabled, got: %s", output)
	}
}

func TestInit_HooksReceiveJSON(t *testing.T) {
	var out bytes.Buffer
	hook := &recordingLevelWriter{}
	Init(Config{Level: "info", Format: "console", Output: &out, Hooks: []zerolog.LevelWriter{hook}})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Warn().Str("k", "v").Msg("hooked")

	if len(hook.lines) != 1 {
		t.Fatalf("hook got %d lines, want 1", len(hook.lines))
	}
	if hook.levels[0] != zerolog.WarnLevel {
		t.Errorf("hook level = %v, want warn", hook.levels[0])
	}
	if !strings.HasPrefix(hook.lines[0], "{") {
		t.Errorf("hook should see JSON, got %q", hook.lines[0])
	}
	if strings.HasPrefix(out.String(), "{") {
		t.Errorf("console output should not be JSON, got %q", out.String())
	}
}

func TestCritical_DoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	Critical().Msg("still running")

	if !strings.Contains(buf.String(), `"level":"fatal"`) {
		t.Errorf("Critical() should log at fatal level, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestCtx_AddsPassAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithPassID(context.Background())
	ctx = ContextWithRequestID(ctx, "req-1")
	passID := PassIDFromContext(ctx)
	if len(passID) != 8 {
		t.Fatalf("pass id = %q, want 8 chars", passID)
	}

	Ctx(ctx).Info().Msg("tagged")

	out := buf.String()
	if !strings.Contains(out, `"pass_id":"`+passID+`"`) {
		t.Errorf("missing pass_id in %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id in %s", out)
	}
}

func TestCtx_Empty(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	Ctx(context.Background()).Info().Msg("plain")
	if strings.Contains(buf.String(), "pass_id") {
		t.Errorf("unexpected pass_id in %s", buf.String())
	}
	if PassIDFromContext(context.Background()) != "" || RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context should carry no ids")
	}
}

type recordingLevelWriter struct {
	lines  []string
	levels []zerolog.Level
}

func (r *recordingLevelWriter) Write(p []byte) (int, error) {
	return r.WriteLevel(zerolog.NoLevel, p)
}

func (r *recordingLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	r.lines = append(r.lines, string(p))
	r.levels = append(r.levels, l)
	return len(p), nil
}
