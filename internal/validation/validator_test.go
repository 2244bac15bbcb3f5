// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package validation

import (
	"strings"
	"testing"
)

type sample struct {
	ID    int    `json:"id" validate:"gt=0"`
	Kind  string `json:"kind,omitempty" validate:"omitempty,oneof=entry exit"`
	Label string `validate:"required"`
}

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator() should return one shared instance")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     sample
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{"valid", sample{ID: 1, Kind: "exit", Label: "x"}, "", "", ""},
		{"empty kind allowed", sample{ID: 1, Label: "x"}, "", "", ""},
		{"zero id", sample{Label: "x"}, "id", "gt", "id must be greater than 0"},
		{"negative id", sample{ID: -3, Label: "x"}, "id", "gt", "id must be greater than 0"},
		{"unknown kind", sample{ID: 1, Kind: "lunch", Label: "x"}, "kind", "oneof", "kind must be one of: entry exit"},
		{"no json tag", sample{ID: 1}, "Label", "required", "Label is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil || len(err.Fields) != 1 {
				t.Fatalf("ValidateStruct() = %v, want one field error", err)
			}
			got := err.Fields[0]
			if got.Field != tt.wantField || got.Tag != tt.wantTag {
				t.Errorf("field error = %+v, want %s/%s", got, tt.wantField, tt.wantTag)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateStruct_JoinsMessages(t *testing.T) {
	err := ValidateStruct(&sample{Kind: "lunch"})
	if err == nil || len(err.Fields) != 3 {
		t.Fatalf("ValidateStruct() = %v, want three field errors", err)
	}
	if n := strings.Count(err.Error(), "; "); n != 2 {
		t.Errorf("Error() = %q, want three joined messages", err.Error())
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	err := ValidateStruct(42)
	if err == nil || err.Fields[0].Field != "unknown" {
		t.Fatalf("ValidateStruct(42) = %v, want unknown field error", err)
	}
}
