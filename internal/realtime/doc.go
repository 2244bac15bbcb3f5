// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package realtime forwards punches and admin alerts to peers as they happen.

Two interchangeable transports implement Channel and are selected by
realtime.mode:

  - hub: one long-lived WebSocket connection speaking the JSON hub protocol
    (records terminated by 0x1E). The device authenticates with a bearer
    token from a TokenProvider, registers itself with RegisterDevice and
    reconnects on the schedule 0s, 2s, 5s, 30s, 30m, 1h (the last interval
    repeats).
  - pubsub: core NATS through Watermill. The device subscribes to
    checkclock-offices.{office} and publishes admin alerts on the admin
    subject. An in-process broker can be started with EmbeddedBroker.

Pending Queues:

Nothing sent through a Channel is lost while disconnected. Each transport
keeps one Queue for punches and one for admin alerts. A send that finds the
channel down, or whose invoke fails, appends to the queue. Queues are
drained by Flush when the channel (re)connects:

	res := Flush(ctx, q, ch.IsConnected, send, policy)

Items held while the channel is down are sent first once it is back. Flush
gives up after MaxRetries consecutive disconnected checks and puts every
held item back at the tail of the queue in its original order. A send made
while older items are still queued goes through the queue as well.

Failures:

Transport failures are classified into FailureKind values (not authorized,
forbidden, timeout, decryption failure, transport) and counted in
checkclock_realtime_errors_total. None of them reach the caller of
SendPunch. SendAdminAlert reports a queued alert with ErrQueued. Only
Initialize returns connection errors.
*/
package realtime
