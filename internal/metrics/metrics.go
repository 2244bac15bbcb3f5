// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Offline audit store (DuckDB)
	OfflineRowsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkclock_offline_rows_pending",
			Help: "Unsynced time-change audit rows in the offline store",
		},
	)

	OfflineOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_offline_operations_total",
			Help: "Offline store operations by outcome",
		},
		[]string{"operation", "result"}, // save, fetch, mark_synced, record_failure, purge / success, error
	)

	OfflineRowsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkclock_offline_rows_purged_total",
			Help: "Synced audit rows deleted after the retention period",
		},
	)

	// Sync engine
	SyncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_sync_passes_total",
			Help: "Offline sync passes by result",
		},
		[]string{"result"}, // completed, busy, error
	)

	SyncPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkclock_sync_pass_duration_seconds",
			Help:    "Duration of offline sync passes",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkclock_sync_last_success_timestamp",
			Help: "Unix timestamp of the last sync pass that synced at least one row",
		},
	)

	AuditSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_audit_saves_total",
			Help: "Time-change audit records saved, by destination",
		},
		[]string{"destination"}, // remote, offline, lost
	)

	// Remote store (PostgreSQL)
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_remote_calls_total",
			Help: "Remote store calls by kind and result",
		},
		[]string{"kind", "result"}, // probe, audit, punch_batch / success, error, circuit_open
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkclock_remote_call_duration_seconds",
			Help:    "Duration of remote store calls",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 15},
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkclock_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Connectivity
	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkclock_connectivity_online",
			Help: "1 when the remote store is reachable",
		},
	)

	ConnectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_connectivity_transitions_total",
			Help: "Online/offline transitions",
		},
		[]string{"to"},
	)

	// Punch outbox (Badger)
	OutboxEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkclock_outbox_entries",
			Help: "Punch lines cached and not yet uploaded",
		},
	)

	OutboxUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_outbox_uploads_total",
			Help: "Punch batch uploads by result",
		},
		[]string{"result"}, // success, error, empty, offline
	)

	OutboxGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_outbox_gc_runs_total",
			Help: "Outbox value-log garbage collection runs",
		},
		[]string{"result"},
	)

	// Realtime channels
	RealtimeConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkclock_realtime_connected",
			Help: "1 when the realtime channel is connected",
		},
		[]string{"channel"}, // hub, pubsub
	)

	RealtimeQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkclock_realtime_queue_depth",
			Help: "Items waiting in realtime pending queues",
		},
		[]string{"channel", "queue"}, // punch, alert
	)

	RealtimeFlushItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_realtime_flush_items_total",
			Help: "Items processed by realtime queue flushes",
		},
		[]string{"queue", "outcome"}, // sent, requeued, failed
	)

	RealtimeFlushAborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_realtime_flush_aborts_total",
			Help: "Flushes aborted after repeated disconnected retries",
		},
		[]string{"queue"},
	)

	RealtimeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_realtime_errors_total",
			Help: "Realtime channel failures by kind",
		},
		[]string{"channel", "kind"},
	)

	RealtimeDisconnectSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkclock_realtime_disconnect_duration_seconds",
			Help:    "How long a realtime channel stayed disconnected",
			Buckets: []float64{1, 5, 30, 60, 300, 1800, 3600, 21600},
		},
		[]string{"channel"},
	)

	// Admin alerts
	AlertDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_alert_deliveries_total",
			Help: "Admin alert delivery attempts per notifier",
		},
		[]string{"notifier", "result"},
	)

	AlertsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkclock_alerts_dropped_total",
			Help: "Admin alerts dropped after exhausting retries",
		},
	)

	AlertQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkclock_alert_queue_depth",
			Help: "Admin alerts waiting for delivery",
		},
	)

	// Clock monitor
	ClockChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_clock_changes_total",
			Help: "Observed system clock changes by type",
		},
		[]string{"change_type", "suspicious"},
	)

	// Punches
	PunchesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_punches_recorded_total",
			Help: "Punch events recorded by event type",
		},
		[]string{"event_type"},
	)

	// Admin HTTP surface
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkclock_http_requests_total",
			Help: "Admin HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkclock_http_request_duration_seconds",
			Help:    "Admin HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// RecordOfflineOp records an offline store operation outcome.
func RecordOfflineOp(operation string, err error) {
	OfflineOperations.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordRemoteCall records a remote store call and its latency.
func RecordRemoteCall(kind string, duration time.Duration, err error) {
	RemoteCallDuration.WithLabelValues(kind).Observe(duration.Seconds())
	RemoteCalls.WithLabelValues(kind, resultLabel(err)).Inc()
}

// RecordSyncPass records one sync pass. synced > 0 moves the last-success stamp.
func RecordSyncPass(result string, duration time.Duration, synced int) {
	SyncPasses.WithLabelValues(result).Inc()
	if duration > 0 {
		SyncPassDuration.Observe(duration.Seconds())
	}
	if synced > 0 {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordConnectivity sets the online gauge and counts a transition.
func RecordConnectivity(online bool) {
	if online {
		ConnectivityOnline.Set(1)
		ConnectivityTransitions.WithLabelValues("online").Inc()
		return
	}
	ConnectivityOnline.Set(0)
	ConnectivityTransitions.WithLabelValues("offline").Inc()
}

// SetRealtimeConnected sets the connection gauge of a realtime channel.
func SetRealtimeConnected(channel string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	RealtimeConnected.WithLabelValues(channel).Set(v)
}

// RecordAlertDelivery records one notifier attempt.
func RecordAlertDelivery(notifier string, err error) {
	AlertDeliveries.WithLabelValues(notifier, resultLabel(err)).Inc()
}

// RecordAPIRequest records an admin HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
