// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package logging

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/checkclock/internal/models"
)

type fakeSink struct {
	mu     sync.Mutex
	alerts []models.AdminErrorAlert
}

func (f *fakeSink) Enqueue(a models.AdminErrorAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func newHookedLogger(w *AlertWriter) zerolog.Logger {
	return zerolog.New(zerolog.MultiLevelWriter(io.Discard, w)).With().Timestamp().Logger()
}

func TestAlertWriter_OnlyFatal(t *testing.T) {
	sink := &fakeSink{}
	logger := newHookedLogger(NewAlertWriter(sink, "7", "checkclock_offices_dev", nil))

	logger.Info().Msg("info")
	logger.Warn().Msg("warn")
	logger.Error().Err(errors.New("x")).Msg("error")
	if sink.count() != 0 {
		t.Fatalf("non-fatal events produced %d alerts", sink.count())
	}

	logger.WithLevel(zerolog.FatalLevel).
		Str("title", "Punch upload").
		Str("component", "outbox").
		Int("pending", 4).
		Err(errors.New("connection reset")).
		Msg("Batch rejected")

	if sink.count() != 1 {
		t.Fatalf("got %d alerts, want 1", sink.count())
	}
	a := sink.alerts[0]
	if a.Title != "Punch upload" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.Message != "Batch rejected" {
		t.Errorf("Message = %q", a.Message)
	}
	if a.Exception != "connection reset" {
		t.Errorf("Exception = %q", a.Exception)
	}
	if a.Severity != "Fatal" {
		t.Errorf("Severity = %q", a.Severity)
	}
	if a.OfficeID != "7" || a.DeviceID != "checkclock_offices_dev" {
		t.Errorf("identity = %q/%q", a.OfficeID, a.DeviceID)
	}
	if a.Context != "component=outbox; pending=4" {
		t.Errorf("Context = %q", a.Context)
	}
	if a.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestAlertWriter_DefaultTitle(t *testing.T) {
	sink := &fakeSink{}
	logger := newHookedLogger(NewAlertWriter(sink, "1", "d", nil))

	logger.WithLevel(zerolog.FatalLevel).Str("component", "offline").Msg("disk full")
	logger.WithLevel(zerolog.FatalLevel).Msg("no component")

	if sink.count() != 2 {
		t.Fatalf("got %d alerts, want 2", sink.count())
	}
	if !strings.Contains(sink.alerts[0].Title, "offline") {
		t.Errorf("Title = %q, want component name", sink.alerts[0].Title)
	}
	if sink.alerts[1].Title != "Critical error" {
		t.Errorf("Title = %q", sink.alerts[1].Title)
	}
}

func TestAlertWriter_SkipsWhenOffline(t *testing.T) {
	sink := &fakeSink{}
	online := false
	logger := newHookedLogger(NewAlertWriter(sink, "1", "d", func() bool { return online }))

	logger.WithLevel(zerolog.FatalLevel).Msg("while offline")
	if sink.count() != 0 {
		t.Fatalf("offline fatal produced an alert")
	}

	online = true
	logger.WithLevel(zerolog.FatalLevel).Msg("back online")
	if sink.count() != 1 {
		t.Fatalf("got %d alerts, want 1", sink.count())
	}
}

func TestAlertWriter_IgnoresGarbage(t *testing.T) {
	sink := &fakeSink{}
	w := NewAlertWriter(sink, "1", "d", nil)

	n, err := w.WriteLevel(zerolog.FatalLevel, []byte("not json"))
	if err != nil || n != len("not json") {
		t.Fatalf("WriteLevel() = %d, %v", n, err)
	}
	if sink.count() != 0 {
		t.Error("garbage produced an alert")
	}
}

func TestCritical_RaisesAlertThroughHook(t *testing.T) {
	sink := &fakeSink{}
	Init(Config{Level: "info", Output: io.Discard, Hooks: []zerolog.LevelWriter{NewAlertWriter(sink, "2", "d", nil)}})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Critical().Str("title", "Offline store").Msg("cannot open database")

	if sink.count() != 1 {
		t.Fatalf("got %d alerts, want 1", sink.count())
	}
	if sink.alerts[0].Title != "Offline store" {
		t.Errorf("Title = %q", sink.alerts[0].Title)
	}
}
