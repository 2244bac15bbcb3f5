// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package models defines the data types that flow through the CheckClock
synchronization core.

# Types

  - PunchEvent: one attendance event, immutable once created
  - PunchRecord: the wire form of a punch exchanged over realtime channels
  - TimeChangeAuditRecord: one observed system clock change with its
    classification and environment snapshot
  - AdminErrorAlert: one administrator-facing critical notification
  - Notice: the inner payload of inbound pub/sub envelopes
  - SyncResult: summary returned by a forced audit synchronization

All JSON encoding uses github.com/goccy/go-json with snake_case field names,
except PunchRecord which keeps the field names expected by the hub.
*/
package models
