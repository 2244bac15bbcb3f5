// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
)

var fastPolicy = FlushPolicy{MaxRetries: 3, RetryDelay: time.Millisecond}

// connectedAfter reports disconnected for the first n calls.
func connectedAfter(n int) func() bool {
	calls := 0
	return func() bool {
		calls++
		return calls > n
	}
}

type recordingSender struct {
	sent   []int
	failOn map[int]bool
}

func (r *recordingSender) send(_ context.Context, v int) error {
	if r.failOn[v] {
		return errors.New("invoke failed")
	}
	r.sent = append(r.sent, v)
	return nil
}

func TestQueue_PushPop(t *testing.T) {
	q := NewQueue[int]("test", "fifo")
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue returned ok")
	}
	q.Push(1, 2)
	q.Push(3)
	q.Push()

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	for _, want := range []int{1, 2, 3} {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %d, %v, want %d", got, ok, want)
		}
	}
}

func TestFlush_DisconnectedRetryLimitRequeuesInOrder(t *testing.T) {
	q := NewQueue[int]("test", "stuck")
	q.Push(1, 2, 3, 4, 5)
	s := &recordingSender{}

	res := Flush(context.Background(), q, connectedAfter(3), s.send, fastPolicy)

	if !res.Aborted {
		t.Error("flush did not abort after the retry limit")
	}
	if res.Requeued != 3 || res.Sent != 0 || res.Failed != 0 {
		t.Errorf("result = %+v, want 3 requeued", res)
	}
	if got, want := q.Snapshot(), []int{4, 5, 1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
	if len(s.sent) != 0 {
		t.Errorf("sent = %v, want none", s.sent)
	}

	// Once connected, the next flush drains everything in queue order.
	res = Flush(context.Background(), q, func() bool { return true }, s.send, fastPolicy)
	if res.Aborted || res.Sent != 5 {
		t.Errorf("second flush = %+v, want 5 sent", res)
	}
	if want := []int{4, 5, 1, 2, 3}; !reflect.DeepEqual(s.sent, want) {
		t.Errorf("sent = %v, want %v", s.sent, want)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
}

func TestFlush_ReconnectBeforeLimitSendsHeldItemsFirst(t *testing.T) {
	tests := []struct {
		name         string
		items        []int
		disconnected int
	}{
		{"two held of five", []int{1, 2, 3, 4, 5}, 2},
		{"one held of three", []int{1, 2, 3}, 1},
		{"whole queue held", []int{1, 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue[int]("test", "held")
			q.Push(tt.items...)
			s := &recordingSender{}

			res := Flush(context.Background(), q, connectedAfter(tt.disconnected), s.send, fastPolicy)

			if res.Aborted || res.Requeued != 0 {
				t.Errorf("result = %+v, want no abort and nothing requeued", res)
			}
			if res.Sent != len(tt.items) {
				t.Errorf("sent count = %d, want %d", res.Sent, len(tt.items))
			}
			if !reflect.DeepEqual(s.sent, tt.items) {
				t.Errorf("sent = %v, want %v", s.sent, tt.items)
			}
			if q.Len() != 0 {
				t.Errorf("queue = %v, want empty", q.Snapshot())
			}
		})
	}
}

func TestFlush_HeldItemSendFailureRequeues(t *testing.T) {
	q := NewQueue[int]("test", "held-fail")
	q.Push(1, 2, 3)
	s := &recordingSender{failOn: map[int]bool{1: true}}

	res := Flush(context.Background(), q, connectedAfter(1), s.send, fastPolicy)

	if res.Sent != 2 || res.Failed != 1 || res.Aborted {
		t.Errorf("result = %+v, want 2 sent 1 failed", res)
	}
	if want := []int{2, 3}; !reflect.DeepEqual(s.sent, want) {
		t.Errorf("sent = %v, want %v", s.sent, want)
	}
	if got := q.Snapshot(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("queue = %v, want [1]", got)
	}
}

func TestFlush_EmptyQueueDisconnected(t *testing.T) {
	q := NewQueue[int]("test", "empty")
	res := Flush(context.Background(), q, func() bool { return false }, (&recordingSender{}).send, FlushPolicy{MaxRetries: 3, RetryDelay: time.Hour})
	if res != (FlushResult{}) {
		t.Errorf("result = %+v, want zero", res)
	}
}

func TestFlush_SendFailureRequeues(t *testing.T) {
	q := NewQueue[int]("test", "fail")
	q.Push(1, 2, 3)
	s := &recordingSender{failOn: map[int]bool{2: true}}

	res := Flush(context.Background(), q, func() bool { return true }, s.send, fastPolicy)

	if res.Sent != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 sent 1 failed", res)
	}
	if got := q.Snapshot(); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("queue = %v, want [2]", got)
	}
}

func TestFlush_SingleFlight(t *testing.T) {
	q := NewQueue[int]("test", "busy")
	q.Push(1)
	q.flushing.Store(true)

	res := Flush(context.Background(), q, func() bool { return true }, (&recordingSender{}).send, fastPolicy)
	if !res.Skipped {
		t.Errorf("result = %+v, want Skipped", res)
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}
}

func TestFlush_ContextCancelStopsWaiting(t *testing.T) {
	q := NewQueue[int]("test", "cancel")
	q.Push(1, 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan FlushResult, 1)
	go func() {
		done <- Flush(ctx, q, func() bool { return false }, (&recordingSender{}).send, FlushPolicy{MaxRetries: 3, RetryDelay: time.Hour})
	}()

	select {
	case res := <-done:
		if !res.Aborted {
			t.Errorf("result = %+v, want Aborted", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("flush kept waiting after cancel")
	}
	if got := q.Snapshot(); !reflect.DeepEqual(got, []int{2, 3, 1}) {
		t.Errorf("queue = %v, want [2 3 1]", got)
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.FlushConfig{})
	if p.MaxRetries != DefaultMaxRetries || p.RetryDelay != DefaultRetryDelay {
		t.Errorf("defaults = %+v", p)
	}
	p = PolicyFromConfig(config.FlushConfig{MaxRetries: 5, RetryDelay: time.Second})
	if p.MaxRetries != 5 || p.RetryDelay != time.Second {
		t.Errorf("configured = %+v", p)
	}
}
