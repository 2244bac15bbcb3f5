// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package metrics defines the Prometheus collectors for CheckClock.

Collectors are package-level promauto variables registered on the default
registry and exposed by the admin HTTP server at /metrics:

	curl http://127.0.0.1:9477/metrics

# Available Metrics

Persistence:
  - checkclock_offline_rows_pending: unsynced audit rows (gauge)
  - checkclock_offline_operations_total: labels operation, result
  - checkclock_outbox_entries: cached punch lines (gauge)
  - checkclock_outbox_uploads_total: label result

Sync and remote:
  - checkclock_sync_passes_total: label result (completed, busy, error)
  - checkclock_remote_calls_total: labels kind, result
  - checkclock_circuit_breaker_state: label name (0=closed, 1=half-open, 2=open)

Delivery:
  - checkclock_realtime_connected: label channel
  - checkclock_realtime_queue_depth: labels channel, queue
  - checkclock_realtime_flush_items_total: labels queue, outcome
  - checkclock_alert_deliveries_total: labels notifier, result
  - checkclock_alerts_dropped_total

Monitoring:
  - checkclock_clock_changes_total: labels change_type, suspicious
  - checkclock_connectivity_online (gauge)

Helper functions such as RecordRemoteCall and RecordSyncPass keep label
values consistent between call sites.
*/
package metrics
