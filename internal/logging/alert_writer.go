// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/checkclock/internal/models"
)

// AlertSink accepts admin alerts. Enqueue must not block.
type AlertSink interface {
	Enqueue(alert models.AdminErrorAlert)
}

// AlertWriter is a zerolog.LevelWriter that turns fatal events into admin
// alerts. Lower levels are discarded.
type AlertWriter struct {
	sink     AlertSink
	officeID string
	deviceID string

	// online reports connectivity; alerts raised while offline are dropped
	// because nothing could deliver them. Nil means always online.
	online func() bool
}

// NewAlertWriter creates an AlertWriter for the given office and device.
func NewAlertWriter(sink AlertSink, officeID, deviceID string, online func() bool) *AlertWriter {
	return &AlertWriter{sink: sink, officeID: officeID, deviceID: deviceID, online: online}
}

// Write implements io.Writer. Events without a level are ignored.
func (w *AlertWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter.
func (w *AlertWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level != zerolog.FatalLevel && level != zerolog.PanicLevel {
		return len(p), nil
	}
	if w.sink == nil || (w.online != nil && !w.online()) {
		return len(p), nil
	}

	alert, err := alertFromEvent(p, level)
	if err != nil {
		// A logging hook has nowhere to report its own failure.
		return len(p), nil
	}
	alert.OfficeID = w.officeID
	alert.DeviceID = w.deviceID

	w.sink.Enqueue(alert)
	return len(p), nil
}

// alertFromEvent rebuilds an alert from one JSON encoded zerolog event.
func alertFromEvent(p []byte, level zerolog.Level) (models.AdminErrorAlert, error) {
	fields := make(map[string]interface{})
	if err := json.Unmarshal(p, &fields); err != nil {
		return models.AdminErrorAlert{}, fmt.Errorf("decode log event: %w", err)
	}

	alert := models.AdminErrorAlert{
		Severity:  severityName(level),
		Timestamp: time.Now().UTC(),
	}

	if v, ok := fields[zerolog.MessageFieldName].(string); ok {
		alert.Message = v
	}
	if v, ok := fields[zerolog.ErrorFieldName].(string); ok {
		alert.Exception = v
	}
	if v, ok := fields["title"].(string); ok && v != "" {
		alert.Title = v
	} else if v, ok := fields["component"].(string); ok && v != "" {
		alert.Title = "Critical error in " + v
	} else {
		alert.Title = "Critical error"
	}
	if v, ok := fields[zerolog.TimestampFieldName].(string); ok {
		if ts, err := time.Parse(zerolog.TimeFieldFormat, v); err == nil {
			alert.Timestamp = ts.UTC()
		}
	}

	skip := map[string]bool{
		zerolog.MessageFieldName:   true,
		zerolog.ErrorFieldName:     true,
		zerolog.LevelFieldName:     true,
		zerolog.TimestampFieldName: true,
		"title":                    true,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	alert.Context = strings.Join(parts, "; ")

	return alert, nil
}

func severityName(level zerolog.Level) string {
	if level == zerolog.PanicLevel {
		return "Panic"
	}
	return "Fatal"
}
