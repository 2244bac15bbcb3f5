// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

// Package connectivity decides whether the device is online.
//
// A device is online when at least one non-loopback network interface is up
// and a trivial query against the remote store succeeds within the probe
// timeout. Prober answers that question on demand. Monitor asks it
// periodically (every 30s while online, every 5s while offline) and calls
// its OnOnline hook in a separate goroutine on every offline to online
// transition, which the sync engine uses to start one sync pass.
//
// The monitor starts in the offline state, so a device that boots with a
// working network also triggers one pass on the first successful probe.
package connectivity
