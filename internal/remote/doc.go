// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package remote is the client for the central PostgreSQL attendance store.

The store exposes three operations, all guarded by one circuit breaker:

  - Probe runs SELECT 1 under the probe timeout (5s by default)
  - InsertTimeChange calls attendance.sp_insert_time_change_log with the
    full audit record plus its sync metadata (26 arguments)
  - UploadPunchBatch calls attendance.sp_upload_punches with the office id
    and the compressed batch payload built by the outbox package

The pgx pool dials lazily, so Open succeeds while the network is down and
the first call reports the failure.

Circuit breaker settings follow the rest of the codebase: 3 requests in
half-open state, a 1 minute counting window, 2 minutes open, and a trip at
60% failures over at least 10 requests. Rejected calls return
gobreaker.ErrOpenState, which errs.Classify reports as TransientNetwork via
the wrapping done in this package.

Usage:

	store, err := remote.Open(ctx, cfg.Remote)
	if err != nil {
	    return err
	}
	defer store.Close()

	if err := store.Probe(ctx); err != nil {
	    // offline
	}
*/
package remote
