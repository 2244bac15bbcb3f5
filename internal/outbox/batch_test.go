// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package outbox

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeBatch_Format(t *testing.T) {
	lines := []string{
		"12|1|2026/05/04 09:30:00|2026/05/04 09:29:58",
		"15|2|2026/05/04 18:01:10|2026/05/04 18:01:09",
	}

	payload, err := EncodeBatch(3, lines, "#")
	if err != nil {
		t.Fatalf("EncodeBatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "3.") {
		t.Fatalf("payload %q should start with the office id", payload)
	}

	office, got, err := DecodeBatch(payload, "#")
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if office != 3 {
		t.Errorf("office = %d, want 3", office)
	}
	if strings.Join(got, "#") != strings.Join(lines, "#") {
		t.Errorf("lines = %v, want %v", got, lines)
	}
}

func TestEncodeBatch_Empty(t *testing.T) {
	if _, err := EncodeBatch(1, nil, "#"); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("EncodeBatch(nil) error = %v, want ErrEmptyBatch", err)
	}
	if _, err := BuildBatch(1, nil, "#"); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("BuildBatch(nil) error = %v, want ErrEmptyBatch", err)
	}
}

func TestBuildBatch_KeepsIDs(t *testing.T) {
	entries := []*Entry{
		{ID: "a", Line: "1|1|2026/01/01 08:00:00|2026/01/01 08:00:00"},
		{ID: "b", Line: "2|1|2026/01/01 08:01:00|2026/01/01 08:01:00"},
	}
	b, err := BuildBatch(8, entries, "")
	if err != nil {
		t.Fatalf("BuildBatch() error = %v", err)
	}
	if len(b.IDs) != 2 || b.IDs[0] != "a" || b.IDs[1] != "b" {
		t.Errorf("IDs = %v", b.IDs)
	}
	_, lines, err := DecodeBatch(b.Payload, DefaultSeparator)
	if err != nil || len(lines) != 2 {
		t.Fatalf("DecodeBatch() = %v, %v", lines, err)
	}
}

func TestDecodeBatch_Errors(t *testing.T) {
	tests := []string{
		"no-dot",
		"x.AAAA",
		"3.%%%notbase64",
		"3.aGVsbG8=",
	}
	for _, payload := range tests {
		if _, _, err := DecodeBatch(payload, "#"); err == nil {
			t.Errorf("DecodeBatch(%q) should fail", payload)
		}
	}
}
