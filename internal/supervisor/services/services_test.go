// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/checkclock/internal/clockmonitor"
)

type fakeLoop struct {
	startErr error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (f *fakeLoop) Start(context.Context) error {
	f.started.Add(1)
	return f.startErr
}

func (f *fakeLoop) Stop() { f.stopped.Add(1) }

// serveUntilCanceled runs svc, cancels once ready reports true and returns
// the Serve result.
func serveUntilCanceled(t *testing.T, svc suture.Service, ready func() bool) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !ready() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("service did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
		return nil
	}
}

func TestLoopService(t *testing.T) {
	loop := &fakeLoop{}
	svc := NewLoopService("audit-sync", loop)
	if svc.String() != "audit-sync" {
		t.Errorf("String() = %s", svc.String())
	}

	err := serveUntilCanceled(t, svc, func() bool { return loop.started.Load() == 1 })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v", err)
	}
	if loop.stopped.Load() != 1 {
		t.Errorf("Stop called %d times", loop.stopped.Load())
	}
}

func TestLoopService_StartError(t *testing.T) {
	loop := &fakeLoop{startErr: errors.New("no store")}
	err := NewLoopService("uploader", loop).Serve(context.Background())
	if !errors.Is(err, loop.startErr) {
		t.Errorf("Serve() error = %v", err)
	}
	if loop.stopped.Load() != 0 {
		t.Error("Stop called after a failed Start")
	}
}

type fakeClock struct {
	startErr error
	started  atomic.Int32
	disposed atomic.Int32
}

func (f *fakeClock) Start(context.Context) error {
	f.started.Add(1)
	return f.startErr
}

func (f *fakeClock) Dispose() { f.disposed.Add(1) }

func TestClockMonitorService(t *testing.T) {
	clock := &fakeClock{}
	err := serveUntilCanceled(t, NewClockMonitorService(clock), func() bool { return clock.started.Load() == 1 })
	if !errors.Is(err, context.Canceled) || clock.disposed.Load() != 1 {
		t.Errorf("Serve() error = %v, disposed = %d", err, clock.disposed.Load())
	}

	disposed := &fakeClock{startErr: clockmonitor.ErrDisposed}
	if err := NewClockMonitorService(disposed).Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() on disposed monitor = %v, want ErrDoNotRestart", err)
	}
}

type fakeChannel struct {
	initErr error
	inits   atomic.Int32
	closes  atomic.Int32
}

func (f *fakeChannel) Name() string { return "hub" }

func (f *fakeChannel) Initialize(context.Context) error {
	f.inits.Add(1)
	return f.initErr
}

func (f *fakeChannel) Close() error {
	f.closes.Add(1)
	return nil
}

func TestRealtimeService(t *testing.T) {
	ch := &fakeChannel{}
	svc := NewRealtimeService(ch)
	if svc.String() != "realtime-hub" {
		t.Errorf("String() = %s", svc.String())
	}
	if err := serveUntilCanceled(t, svc, func() bool { return ch.inits.Load() == 1 }); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v", err)
	}
	if ch.closes.Load() != 1 {
		t.Errorf("Close called %d times", ch.closes.Load())
	}

	failing := &fakeChannel{initErr: errors.New("dial refused")}
	if err := NewRealtimeService(failing).Serve(context.Background()); !errors.Is(err, failing.initErr) {
		t.Errorf("Serve() error = %v", err)
	}
}

type fakeQueue struct{ closed atomic.Bool }

func (f *fakeQueue) Close() { f.closed.Store(true) }

func TestAlertPipelineService(t *testing.T) {
	q := &fakeQueue{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewAlertPipelineService(q).Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v", err)
	}
	if !q.closed.Load() {
		t.Error("pipeline not closed")
	}
}
