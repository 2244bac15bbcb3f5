// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package punch

import "time"

// Clock derives tamper-resistant timestamps from a process-start baseline.
type Clock struct {
	baseline time.Time
	start    time.Time
	since    func(time.Time) time.Duration
}

// NewClock takes the baseline from the wall clock now. Later wall clock
// changes do not move InternalNow.
func NewClock() *Clock {
	now := time.Now()
	return &Clock{
		baseline: now.Round(0),
		start:    now,
		since:    time.Since,
	}
}

// Baseline returns the wall time recorded at start.
func (c *Clock) Baseline() time.Time {
	return c.baseline
}

// Elapsed returns the monotonic run time.
func (c *Clock) Elapsed() time.Duration {
	return c.since(c.start)
}

// InternalNow returns baseline plus monotonic run time.
func (c *Clock) InternalNow() time.Time {
	return c.baseline.Add(c.Elapsed())
}
