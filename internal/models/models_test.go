// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestPunchEventLineRoundTrip(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	p := &PunchEvent{
		EmployeeID:        42,
		EventType:         EventExit,
		EventTime:         time.Date(2026, 3, 9, 18, 4, 5, 0, loc),
		InternalEventTime: time.Date(2026, 3, 9, 18, 4, 7, 0, loc),
	}

	line := p.Line()
	if line != "42|2|2026/03/09 18:04:05|2026/03/09 18:04:07" {
		t.Fatalf("Line() = %q", line)
	}

	parsed, err := ParsePunchLine(line, loc)
	if err != nil {
		t.Fatalf("ParsePunchLine() error = %v", err)
	}
	if parsed.EmployeeID != 42 || parsed.EventType != EventExit {
		t.Errorf("parsed = %+v", parsed)
	}
	if !parsed.EventTime.Equal(p.EventTime) || !parsed.InternalEventTime.Equal(p.InternalEventTime) {
		t.Errorf("parsed times = %v / %v", parsed.EventTime, parsed.InternalEventTime)
	}
}

func TestParsePunchLineErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "1|2|2026/01/01 00:00:00"},
		{"bad employee", "x|1|2026/01/01 00:00:00|2026/01/01 00:00:00"},
		{"bad type", "1|y|2026/01/01 00:00:00|2026/01/01 00:00:00"},
		{"bad time", "1|1|2026-01-01|2026/01/01 00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePunchLine(tt.line, time.UTC); err == nil {
				t.Errorf("expected error for %q", tt.line)
			}
		})
	}
}

func TestPunchRecordWireNames(t *testing.T) {
	t.Parallel()

	p := &PunchEvent{
		EmployeeID:        7,
		EmployeeName:      "Ana Ruiz",
		EventType:         EventEntry,
		EventTime:         time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC),
		InternalEventTime: time.Date(2026, 1, 2, 8, 0, 1, 0, time.UTC),
	}
	data, err := json.Marshal(p.Record())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"IdEmployee", "EmployeeFullName", "EventTime", "InternalEventTime", "IdEvent", "EventName"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing wire field %s in %s", key, data)
		}
	}
	if m["EventName"] != "ENTRADA" {
		t.Errorf("EventName = %v, want ENTRADA", m["EventName"])
	}
}

func TestNoticeIDAcceptsStringAndNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  NoticeID
	}{
		{`{"id":"abc","caption":"c","body":"b"}`, "abc"},
		{`{"id":17,"caption":"c","body":"b"}`, "17"},
		{`{"id":null,"caption":"c","body":"b"}`, ""},
	}

	for _, tt := range tests {
		var n Notice
		if err := json.Unmarshal([]byte(tt.input), &n); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.input, err)
		}
		if n.ID != tt.want {
			t.Errorf("ID = %q, want %q", n.ID, tt.want)
		}
	}

	var bad Notice
	if err := json.Unmarshal([]byte(`{"id":true}`), &bad); err == nil {
		t.Error("expected error for boolean id")
	}
}

func TestNewSyncResult(t *testing.T) {
	t.Parallel()

	r := NewSyncResult(10, 4)
	if r.SyncedCount != 6 || !r.Success {
		t.Errorf("NewSyncResult(10,4) = %+v", r)
	}

	r = NewSyncResult(3, 3)
	if r.SyncedCount != 0 || r.Success {
		t.Errorf("NewSyncResult(3,3) = %+v", r)
	}
}
