// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

//go:build linux

package clockmonitor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	staUnsync = 0x0040
	timeError = 5
)

// kernelSynchronized reads the kernel NTP discipline state with a
// read-only adjtimex call.
func kernelSynchronized() (bool, string, error) {
	var tx unix.Timex
	state, err := unix.Adjtimex(&tx)
	if err != nil {
		return false, "unavailable", fmt.Errorf("adjtimex: %w", err)
	}
	synced := state != timeError && tx.Status&staUnsync == 0
	return synced, fmt.Sprintf("state=%d status=%#x", state, tx.Status), nil
}
