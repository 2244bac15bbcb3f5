// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package offline persists time-change audit records that could not be written
to the remote store.

Rows live in a single DuckDB file in the TimeChangeLog_Offline table. Each row
holds the JSON encoded record, its creation time, an attempt counter, the last
attempt time and error, and the synced flag. Timestamps are stored as fixed
width ISO-8601 UTC text, so string comparison equals time comparison.

# Retry Policy

GetPendingChanges returns unsynced rows oldest first. A row that reached
MaxAttempts is held back until its last attempt is strictly older than the
cool-down:

	AttemptCount < 5 OR LastAttempt IS NULL OR LastAttempt < now - 1h

Synced rows are deleted by PurgeSyncedOlderThan once SyncedAt is strictly
older than the retention period.

# Single Flight

TryLockSync guards sync passes with a one-slot semaphore. A caller that
cannot take it within LockTimeout gives up that cycle.
*/
package offline
