// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

//go:build !linux

package clockmonitor

func newOSSource() (Source, error) {
	return nil, ErrNoOSHook
}
