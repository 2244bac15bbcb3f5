// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

// Package punch creates attendance events.
//
// Every punch carries two timestamps: the wall-clock EventTime, which an
// operator can tamper with, and InternalEventTime, derived from a baseline
// taken at process start plus Go's monotonic elapsed time. Next-event rules
// (duplicate rejection, maximum shift length) use the internal time only.
//
// Recorder persists each punch to the outbox before anything else, then
// forwards it to the realtime channel.
package punch
