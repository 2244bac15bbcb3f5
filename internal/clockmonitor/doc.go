// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package clockmonitor detects system clock and timezone changes and turns
each one into a classified TimeChangeAuditRecord.

# Sources

A Source emits raw signals. Three are provided:

  - timerfd (linux): a CLOCK_REALTIME timer armed with cancel-on-set; the
    kernel cancels it whenever the clock is set
  - poll: compares wall clock and monotonic progress every PollInterval and
    signals when they differ by more than DriftTolerance
  - tzwatch: an fsnotify watch on the zoneinfo directory that signals when
    localtime or timezone is replaced

NewSource picks timerfd for "auto" and falls back to polling where no hook
exists.

# Lifecycle

	Uninitialized -> Initialized -> (per signal) Detecting -> Recording -> Initialized
	any -> Disposed

The lock is held only while the previous and new times are snapshotted.
Enrichment (uptime, boot time, interface state, kernel NTP status, process
scan) runs in its own goroutine under EnrichTimeout, with the probes fanned
out through errgroup. A failed probe leaves its field empty; a record is
always produced and handed to the Recorder.

# Classification

Classify applies, in priority order: NTP evidence (NTP_SYNC), uptime under
5 minutes (SYSTEM_BOOT), a DST transition day with a jump of about one hour
(DST_TIMEZONE_CHANGE), network plus NTP daemon with a jump under 2 minutes
(AUTOMATIC_SYNC), a jump over 5 minutes (MANUAL), else UNKNOWN.

Suspicion is evaluated on the classified record. When it fires, the
reasons are collected and an UNKNOWN or AUTOMATIC_SYNC type may be refined
to MANUAL or SYSTEM_BOOT; the refinement is noted in ClassificationNote.
Timezone changes are recorded as TIMEZONE_CHANGED without NTP analysis.
*/
package clockmonitor
