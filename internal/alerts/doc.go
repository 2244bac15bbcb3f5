// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package alerts delivers administrator alerts raised by fatal log events.

The Pipeline is the logging.AlertSink installed behind the AlertWriter hook.
Enqueue never blocks: it appends to a FIFO queue and starts a processing pass
unless one is already running. A pass drains the queue completely, including
items it re-enqueues itself, and only then releases its flag.

# Delivery

Each alert is offered to every configured Notifier in order (email, Slack,
realtime). Delivery counts as successful when at least one notifier accepts
it. A failed alert is retried after RetryDelay until it has been attempted
MaxAttempts times, after which it is dropped with a single error log line:

	admin alert dropped after max retries

# Notifiers

  - EmailNotifier sends an HTML message over SMTP. Incomplete SMTP settings
    disable it with a warning naming the missing fields.
  - SlackNotifier posts to an incoming webhook through slack-go.
  - RealtimeNotifier forwards the alert to the active realtime channel.

Alerts never feed back into the logging hook: the pipeline logs at error
level or below.
*/
package alerts
