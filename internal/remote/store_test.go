// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/models"
)

type execCall struct {
	sql         string
	args        []any
	hasDeadline bool
}

type fakeExecer struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := ctx.Deadline()
	f.calls = append(f.calls, execCall{sql: sql, args: args, hasDeadline: ok})
	return pgconn.NewCommandTag("CALL"), f.err
}

func (f *fakeExecer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestStore_Probe(t *testing.T) {
	fake := &fakeExecer{}
	s := newStore(fake, config.RemoteConfig{})

	if err := s.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if fake.calls[0].sql != "SELECT 1" {
		t.Errorf("probe sql = %q", fake.calls[0].sql)
	}
	if !fake.calls[0].hasDeadline {
		t.Error("probe should run under a timeout")
	}
	if s.probeTimeout != 5*time.Second {
		t.Errorf("default probe timeout = %v, want 5s", s.probeTimeout)
	}
}

func TestStore_InsertTimeChangeArgs(t *testing.T) {
	fake := &fakeExecer{}
	s := newStore(fake, config.RemoteConfig{QueryTimeout: time.Second})

	prev := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	diff := int64(5000)
	rec := &models.TimeChangeAuditRecord{
		OfficeID:              7,
		EventDateTime:         prev.Add(5000 * time.Second),
		PreviousTime:          &prev,
		NewTime:               prev.Add(5000 * time.Second),
		TimeDifferenceSeconds: &diff,
		ChangeType:            models.ChangeManual,
		IsSuspicious:          true,
		SyncMetadata: &models.SyncMetadata{
			OriginalTimestamp: prev,
			SyncTimestamp:     prev.Add(time.Hour),
			AttemptCount:      2,
			WasOffline:        true,
		},
	}

	if err := s.InsertTimeChange(context.Background(), rec); err != nil {
		t.Fatalf("InsertTimeChange() error = %v", err)
	}

	call := fake.calls[0]
	if call.sql != insertTimeChangeSQL {
		t.Errorf("sql = %q", call.sql)
	}
	if len(call.args) != 26 {
		t.Fatalf("got %d args, want 26", len(call.args))
	}
	if call.args[0] != 7 {
		t.Errorf("office arg = %v", call.args[0])
	}
	if call.args[13] != "MANUAL" {
		t.Errorf("change type arg = %v", call.args[13])
	}
	if call.args[24] != true || call.args[25] != 2 {
		t.Errorf("sync metadata args = %v, %v", call.args[24], call.args[25])
	}
}

func TestTimeChangeArgs_DirectWrite(t *testing.T) {
	event := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	args := timeChangeArgs(&models.TimeChangeAuditRecord{OfficeID: 1, EventDateTime: event})

	if ts, ok := args[22].(time.Time); !ok || !ts.Equal(event) {
		t.Errorf("original timestamp = %v, want event time", args[22])
	}
	if ts, ok := args[23].(*time.Time); !ok || ts != nil {
		t.Errorf("sync timestamp = %v, want nil *time.Time", args[23])
	}
	if args[24] != false || args[25] != 1 {
		t.Errorf("was offline / attempts = %v, %v", args[24], args[25])
	}
	if prev, ok := args[2].(*time.Time); !ok || prev != nil {
		t.Errorf("previous time = %v, want nil", args[2])
	}
}

func TestStore_InvalidInput(t *testing.T) {
	fake := &fakeExecer{}
	s := newStore(fake, config.RemoteConfig{})

	if err := s.InsertTimeChange(context.Background(), nil); !errors.Is(err, errs.Serialization) {
		t.Errorf("InsertTimeChange(nil) = %v, want serialization error", err)
	}
	if err := s.UploadPunchBatch(context.Background(), 3, ""); !errors.Is(err, errs.Serialization) {
		t.Errorf("UploadPunchBatch(empty) = %v, want serialization error", err)
	}
	if fake.count() != 0 {
		t.Errorf("invalid input reached the database %d times", fake.count())
	}
}

func TestStore_UploadPunchBatch(t *testing.T) {
	fake := &fakeExecer{}
	s := newStore(fake, config.RemoteConfig{})

	if err := s.UploadPunchBatch(context.Background(), 3, "3.H4sI"); err != nil {
		t.Fatalf("UploadPunchBatch() error = %v", err)
	}
	call := fake.calls[0]
	if call.sql != uploadPunchesSQL || call.args[0] != 3 || call.args[1] != "3.H4sI" {
		t.Errorf("call = %+v", call)
	}
}

func TestStore_BreakerOpensAfterFailures(t *testing.T) {
	fake := &fakeExecer{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
	s := newStore(fake, config.RemoteConfig{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.Probe(ctx); err == nil {
			t.Fatalf("probe %d should fail", i)
		}
	}
	if s.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", s.BreakerState())
	}

	err := s.Probe(ctx)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Probe() on open breaker = %v, want ErrOpenState", err)
	}
	if errs.KindOf(err) != errs.TransientNetwork {
		t.Errorf("kind = %v, want transient network", errs.KindOf(err))
	}
	if fake.count() != 10 {
		t.Errorf("open breaker should not reach the database, calls = %d", fake.count())
	}
}

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), config.RemoteConfig{}); !errors.Is(err, errs.Configuration) {
		t.Fatalf("Open() without DSN = %v, want configuration error", err)
	}
	if _, err := Open(context.Background(), config.RemoteConfig{DSN: "::not a dsn"}); err == nil {
		t.Fatal("Open() with bad DSN should fail")
	}
}

func TestOpen_LazyPool(t *testing.T) {
	s, err := Open(context.Background(), config.RemoteConfig{
		DSN:          "postgres://u:p@127.0.0.1:1/attendance?connect_timeout=1",
		ProbeTimeout: 2 * time.Second,
		MaxConns:     2,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.Probe(context.Background()); errs.KindOf(err) != errs.TransientNetwork {
		t.Errorf("Probe() against closed port = %v, want transient network", err)
	}
}
