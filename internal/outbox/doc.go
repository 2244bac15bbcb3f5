// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package outbox provides the durable punch cache backed by BadgerDB.

Every recorded punch is appended to the outbox before any delivery attempt,
so a crash or a long offline period never loses it. Entries are kept under
the pending: prefix with a time ordered key; a successful batch upload moves
the whole batch to the uploaded: prefix in one transaction and the
Compactor later deletes uploaded entries and reclaims value-log space.

# Batch Payload

EncodeBatch builds the string sent to the remote store:

	{officeId}.{base64(gzip(line1 # line2 # ...))}

where each line is employeeId|eventType|eventTime|internalEventTime.

# Retry Safety

A failed upload only bumps the attempt counters; pending entries stay in
place and are sent again with the next batch. Upload passes themselves are
driven from the sync engine.
*/
package outbox
