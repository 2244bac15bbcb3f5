// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package syncengine moves locally held events to the remote attendance store.

Two independent paths live here:

  - Engine handles time-change audit records. SaveTimeChangeOffline writes
    directly to the remote store when online and falls back to the DuckDB
    offline store otherwise. SyncPendingChanges replays the offline rows under
    the store's single-flight lock, and ForceSync wraps a pass with before and
    after pending counts for administrative use.

  - Uploader handles cached punch lines. Every pass collects the whole Badger
    outbox, encodes it as one compressed batch and sends it with a single
    stored call. The batch is purged only on success; a failure leaves the
    cache intact for the next tick.

Neither path returns hard failures to its caller. Errors are logged, counted
in metrics, and degrade to "keep locally and retry later".

# Triggers

The periodic tick (OfflineConfig.SyncInterval), the connectivity monitor's
offline-to-online transition and the admin HTTP surface all call into the
same Engine; the offline store's semaphore keeps passes mutually exclusive.
*/
package syncengine
