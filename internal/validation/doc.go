// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

// Package validation checks HTTP request bodies with go-playground/validator.
//
// Request types carry validate tags next to their json tags:
//
//	type PunchRequest struct {
//	    EmployeeID int    `json:"employee_id" validate:"gt=0"`
//	    Event      string `json:"event,omitempty" validate:"omitempty,oneof=entry exit"`
//	}
//
// ValidateStruct returns a *RequestValidationError naming each failed
// field by its json name, which handlers map to a 400 response.
package validation
