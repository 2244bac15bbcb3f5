// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// sampleCount returns how many observations a histogram holds.
func sampleCount(t *testing.T, h prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := h.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T is not a metric", h)
	}
	var m io_prometheus_client.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordRemoteCall(t *testing.T) {
	beforeOK := testutil.ToFloat64(RemoteCalls.WithLabelValues("audit", "success"))
	beforeErr := testutil.ToFloat64(RemoteCalls.WithLabelValues("audit", "error"))

	RecordRemoteCall("audit", 10*time.Millisecond, nil)
	RecordRemoteCall("audit", 20*time.Millisecond, errors.New("connection refused"))

	if got := testutil.ToFloat64(RemoteCalls.WithLabelValues("audit", "success")); got != beforeOK+1 {
		t.Errorf("success count = %v, want %v", got, beforeOK+1)
	}
	if got := testutil.ToFloat64(RemoteCalls.WithLabelValues("audit", "error")); got != beforeErr+1 {
		t.Errorf("error count = %v, want %v", got, beforeErr+1)
	}
}

func TestRecordSyncPass(t *testing.T) {
	SyncLastSuccess.Set(0)

	RecordSyncPass("busy", 0, 0)
	if got := testutil.ToFloat64(SyncLastSuccess); got != 0 {
		t.Errorf("busy pass should not move last success, got %v", got)
	}

	RecordSyncPass("completed", time.Second, 3)
	if got := testutil.ToFloat64(SyncLastSuccess); got == 0 {
		t.Error("completed pass with synced rows should set last success")
	}
}

func TestRecordConnectivity(t *testing.T) {
	RecordConnectivity(true)
	if got := testutil.ToFloat64(ConnectivityOnline); got != 1 {
		t.Errorf("online gauge = %v, want 1", got)
	}
	RecordConnectivity(false)
	if got := testutil.ToFloat64(ConnectivityOnline); got != 0 {
		t.Errorf("online gauge = %v, want 0", got)
	}
}

func TestSetRealtimeConnected(t *testing.T) {
	SetRealtimeConnected("hub", true)
	if got := testutil.ToFloat64(RealtimeConnected.WithLabelValues("hub")); got != 1 {
		t.Errorf("hub gauge = %v, want 1", got)
	}
	SetRealtimeConnected("hub", false)
	if got := testutil.ToFloat64(RealtimeConnected.WithLabelValues("hub")); got != 0 {
		t.Errorf("hub gauge = %v, want 0", got)
	}
}

func TestResultLabel(t *testing.T) {
	if resultLabel(nil) != "success" {
		t.Error("nil error should be success")
	}
	if resultLabel(errors.New("x")) != "error" {
		t.Error("non-nil error should be error")
	}
}

func TestRecordSyncPass_Duration(t *testing.T) {
	before := sampleCount(t, SyncPassDuration)

	RecordSyncPass("busy", 0, 0)
	if got := sampleCount(t, SyncPassDuration); got != before {
		t.Errorf("zero duration was observed, count %d -> %d", before, got)
	}

	RecordSyncPass("completed", 250*time.Millisecond, 0)
	if got := sampleCount(t, SyncPassDuration); got != before+1 {
		t.Errorf("sample count = %d, want %d", got, before+1)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := sampleCount(t, APIRequestDuration.WithLabelValues("POST", "/sync/force"))

	RecordAPIRequest("POST", "/sync/force", "200", 15*time.Millisecond)

	if got := sampleCount(t, APIRequestDuration.WithLabelValues("POST", "/sync/force")); got != before+1 {
		t.Errorf("duration samples = %d, want %d", got, before+1)
	}
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/sync/force", "200")); got < 1 {
		t.Errorf("request count = %v, want >= 1", got)
	}
}
