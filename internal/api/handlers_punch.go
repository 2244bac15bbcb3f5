// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/punch"
	"github.com/tomtom215/checkclock/internal/validation"
)

// maxPunchBody caps the request body of POST /punches.
const maxPunchBody = 4 << 10

// PunchRecorder records a punch. Satisfied by *punch.Recorder.
type PunchRecorder interface {
	Record(ctx context.Context, employeeID int, name string, override models.EventType) (*models.PunchEvent, error)
}

// PunchRequest is the body of POST /punches. Event is empty for the
// computed next event, or "entry"/"exit" to answer a shift prompt.
type PunchRequest struct {
	EmployeeID   int    `json:"employee_id" validate:"gt=0"`
	EmployeeName string `json:"employee_name"`
	Event        string `json:"event,omitempty" validate:"omitempty,oneof=entry exit entrada salida"`
}

// RecordPunch stores the next punch of an employee.
func (h *Handler) RecordPunch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Punch == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Punch recording is not configured")
		return
	}

	var req PunchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPunchBody)).Decode(&req); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	req.Event = strings.ToLower(strings.TrimSpace(req.Event))
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, verr.Error())
		return
	}

	ev, err := h.deps.Punch.Record(r.Context(), req.EmployeeID, req.EmployeeName, parseOverride(req.Event))
	switch {
	case errors.Is(err, punch.ErrDuplicatePunch):
		rw.Error(http.StatusConflict, ErrCodeDuplicatePunch, err.Error())
	case errors.Is(err, punch.ErrShiftTooLong):
		rw.Error(http.StatusConflict, ErrCodeShiftTooLong, "Open shift is too long, resend with event entry or exit")
	case errors.Is(err, punch.ErrInvalidOverride):
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case err != nil:
		rw.InternalError("Punch could not be recorded", err)
	default:
		rw.Success(ev)
	}
}

// parseOverride maps a validated event name to its type.
func parseOverride(s string) models.EventType {
	switch s {
	case "entry", "entrada":
		return models.EventEntry
	case "exit", "salida":
		return models.EventExit
	default:
		return models.EventUnknown
	}
}
