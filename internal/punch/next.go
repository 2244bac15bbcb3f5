// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package punch

import (
	"errors"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/models"
)

// Default next-event rules.
const (
	DefaultDuplicateWindow = time.Minute
	DefaultMaxShift        = 16 * time.Hour
)

var (
	// ErrDuplicatePunch rejects a punch inside the duplicate window.
	ErrDuplicatePunch = errors.New("punch repeated within the duplicate window")

	// ErrShiftTooLong means the open shift exceeded MaxShift. The caller must
	// ask the employee which event this is and pass it as an override.
	ErrShiftTooLong = errors.New("open shift exceeds the maximum length")

	// ErrInvalidOverride is returned for overrides other than Entry or Exit.
	ErrInvalidOverride = errors.New("event override must be entry or exit")
)

// Rules are the next-event thresholds, measured on internal time.
type Rules struct {
	DuplicateWindow time.Duration
	MaxShift        time.Duration
}

// RulesFromConfig fills unset thresholds with defaults.
func RulesFromConfig(cfg config.PunchConfig) Rules {
	r := Rules{DuplicateWindow: cfg.DuplicateWindow, MaxShift: cfg.MaxShift}
	if r.DuplicateWindow <= 0 {
		r.DuplicateWindow = DefaultDuplicateWindow
	}
	if r.MaxShift <= 0 {
		r.MaxShift = DefaultMaxShift
	}
	return r
}

// Decision is the computed next event. Alert is set when the previous event
// was not a valid Entry or Exit and an administrator should look at it.
type Decision struct {
	Type  models.EventType
	Alert bool
	Gap   time.Duration
}

// NextEvent computes the event that follows prev at internal time now.
//
//	no previous punch          -> Entry
//	gap < DuplicateWindow      -> ErrDuplicatePunch
//	previous Exit              -> Entry
//	previous Entry, gap > max  -> ErrShiftTooLong
//	previous Entry             -> Exit
//	anything else              -> Entry, with Alert
func NextEvent(prev *models.PunchEvent, now time.Time, r Rules) (Decision, error) {
	if prev == nil {
		return Decision{Type: models.EventEntry}, nil
	}

	gap := now.Sub(prev.InternalEventTime)
	if gap < r.DuplicateWindow {
		return Decision{Gap: gap}, ErrDuplicatePunch
	}

	switch prev.EventType {
	case models.EventExit:
		return Decision{Type: models.EventEntry, Gap: gap}, nil
	case models.EventEntry:
		if gap > r.MaxShift {
			return Decision{Gap: gap}, ErrShiftTooLong
		}
		return Decision{Type: models.EventExit, Gap: gap}, nil
	default:
		return Decision{Type: models.EventEntry, Alert: true, Gap: gap}, nil
	}
}
