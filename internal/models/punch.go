// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType is the kind of attendance event.
type EventType int

const (
	EventUnknown EventType = 0
	EventEntry   EventType = 1
	EventExit    EventType = 2
	EventError   EventType = 3
)

// String returns the display name used on the wire and in logs.
func (t EventType) String() string {
	switch t {
	case EventEntry:
		return "ENTRADA"
	case EventExit:
		return "SALIDA"
	case EventError:
		return "ERROR"
	default:
		return "DESCONOCIDO"
	}
}

// Valid reports whether t is one of the defined event types.
func (t EventType) Valid() bool {
	return t >= EventUnknown && t <= EventError
}

// PunchTimeLayout is the timestamp layout used in punch lines and PunchRecord.
const PunchTimeLayout = "2006/01/02 15:04:05"

// PunchLineSeparator joins the fields of a single cached punch line.
const PunchLineSeparator = "|"

// PunchEvent is one attendance event.
//
// InternalEventTime is derived from a monotonic baseline taken at process
// start and must never be read from the wall clock.
type PunchEvent struct {
	EmployeeID        int       `json:"employee_id"`
	EmployeeName      string    `json:"employee_name,omitempty"`
	EventType         EventType `json:"event_type"`
	EventTime         time.Time `json:"event_time"`
	InternalEventTime time.Time `json:"internal_event_time"`
	OfficeID          int       `json:"office_id"`
}

// Line renders the punch as employeeId|eventType|eventTime|internalEventTime.
func (p *PunchEvent) Line() string {
	return strings.Join([]string{
		strconv.Itoa(p.EmployeeID),
		strconv.Itoa(int(p.EventType)),
		p.EventTime.Format(PunchTimeLayout),
		p.InternalEventTime.Format(PunchTimeLayout),
	}, PunchLineSeparator)
}

// ParsePunchLine is the inverse of Line. The office id is not part of the line.
func ParsePunchLine(line string, loc *time.Location) (*PunchEvent, error) {
	parts := strings.Split(line, PunchLineSeparator)
	if len(parts) != 4 {
		return nil, fmt.Errorf("punch line has %d fields, want 4", len(parts))
	}
	if loc == nil {
		loc = time.Local
	}

	employeeID, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("parse employee id: %w", err)
	}
	eventType, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("parse event type: %w", err)
	}
	eventTime, err := time.ParseInLocation(PunchTimeLayout, parts[2], loc)
	if err != nil {
		return nil, fmt.Errorf("parse event time: %w", err)
	}
	internalTime, err := time.ParseInLocation(PunchTimeLayout, parts[3], loc)
	if err != nil {
		return nil, fmt.Errorf("parse internal event time: %w", err)
	}

	return &PunchEvent{
		EmployeeID:        employeeID,
		EventType:         EventType(eventType),
		EventTime:         eventTime,
		InternalEventTime: internalTime,
	}, nil
}

// PunchRecord is the punch payload exchanged with the hub and pub/sub peers.
type PunchRecord struct {
	IDEmployee        int    `json:"IdEmployee"`
	EmployeeFullName  string `json:"EmployeeFullName"`
	EventTime         string `json:"EventTime"`
	InternalEventTime string `json:"InternalEventTime"`
	IDEvent           int    `json:"IdEvent"`
	EventName         string `json:"EventName"`
}

// Record converts the punch to its wire form.
func (p *PunchEvent) Record() PunchRecord {
	return PunchRecord{
		IDEmployee:        p.EmployeeID,
		EmployeeFullName:  p.EmployeeName,
		EventTime:         p.EventTime.Format(PunchTimeLayout),
		InternalEventTime: p.InternalEventTime.Format(PunchTimeLayout),
		IDEvent:           int(p.EventType),
		EventName:         p.EventType.String(),
	}
}
