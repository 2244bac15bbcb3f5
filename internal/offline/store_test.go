// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package offline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()

	s, err := Open(context.Background(), config.OfflineConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	s.SetClock(clock.Now)
	return s, clock
}

func testRecord(office int, diff int64) *models.TimeChangeAuditRecord {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return &models.TimeChangeAuditRecord{
		OfficeID:              office,
		EventDateTime:         now,
		NewTime:               now,
		TimeDifferenceSeconds: &diff,
		MachineName:           "front-desk",
		ChangeType:            models.ChangeManual,
		IsSuspicious:          true,
		SuspicionReason:       "Cambio temporal significativo: 5000 segundos",
	}
}

func TestStore_SaveAndFetch(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.SaveOffline(ctx, testRecord(7, int64(100+i)))
		if err != nil {
			t.Fatalf("SaveOffline() error = %v", err)
		}
		ids = append(ids, id)
		clock.Advance(time.Second)
	}

	pending, err := s.GetPendingChanges(ctx, 0)
	if err != nil {
		t.Fatalf("GetPendingChanges() error = %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	for i, p := range pending {
		if p.ID != ids[i] {
			t.Errorf("pending[%d].ID = %d, want %d (creation order)", i, p.ID, ids[i])
		}
		if p.Record.Diff() != int64(100+i) {
			t.Errorf("pending[%d] diff = %d", i, p.Record.Diff())
		}
		if p.AttemptCount != 0 || p.LastAttempt != nil {
			t.Errorf("pending[%d] should be fresh, got attempts=%d last=%v", i, p.AttemptCount, p.LastAttempt)
		}
	}
}

func TestStore_SaveSameRecordTwiceKeepsTwoRows(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	rec := testRecord(1, 10)

	for i := 0; i < 2; i++ {
		if _, err := s.SaveOffline(ctx, rec); err != nil {
			t.Fatalf("SaveOffline() error = %v", err)
		}
	}

	n, err := s.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("CountUnsynced() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountUnsynced() = %d, want exactly one row per call", n)
	}
}

func TestStore_SaveNil(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.SaveOffline(context.Background(), nil)
	if !errors.Is(err, errs.Serialization) {
		t.Fatalf("SaveOffline(nil) error = %v, want serialization kind", err)
	}
}

func TestStore_LimitCapsBatch(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.SaveOffline(ctx, testRecord(1, int64(i))); err != nil {
			t.Fatalf("SaveOffline() error = %v", err)
		}
		clock.Advance(time.Millisecond)
	}

	pending, err := s.GetPendingChanges(ctx, 2)
	if err != nil {
		t.Fatalf("GetPendingChanges() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d, want 2", len(pending))
	}
	if pending[0].Record.Diff() != 0 || pending[1].Record.Diff() != 1 {
		t.Errorf("limit should keep the oldest rows")
	}
}

func TestStore_CooldownBoundary(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		sinceLast time.Duration
		want      bool
	}{
		{"four failures stays eligible", 4, 0, true},
		{"five failures just now excluded", 5, 0, false},
		{"five failures exactly one hour excluded", 5, time.Hour, false},
		{"five failures just over one hour eligible", 5, time.Hour + time.Microsecond, true},
		{"seven failures two hours eligible", 7, 2 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := setupTestStore(t)
			ctx := context.Background()

			id, err := s.SaveOffline(ctx, testRecord(1, 1))
			if err != nil {
				t.Fatalf("SaveOffline() error = %v", err)
			}
			for i := 0; i < tt.failures; i++ {
				if err := s.RecordAttemptFailure(ctx, id, "timeout"); err != nil {
					t.Fatalf("RecordAttemptFailure() error = %v", err)
				}
			}
			clock.Advance(tt.sinceLast)

			pending, err := s.GetPendingChanges(ctx, 0)
			if err != nil {
				t.Fatalf("GetPendingChanges() error = %v", err)
			}
			if got := len(pending) == 1; got != tt.want {
				t.Errorf("eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_MarkSyncedRemovesFromPending(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	keep, _ := s.SaveOffline(ctx, testRecord(1, 1))
	done, _ := s.SaveOffline(ctx, testRecord(1, 2))

	if err := s.MarkSynced(ctx, done); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	pending, err := s.GetPendingChanges(ctx, 0)
	if err != nil {
		t.Fatalf("GetPendingChanges() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != keep {
		t.Fatalf("pending = %+v, want only row %d", pending, keep)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Unsynced != 1 || st.Synced != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestStore_MarkSyncedTwiceDecrementsPendingOnce(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	id, _ := s.SaveOffline(ctx, testRecord(1, 1))
	s.SaveOffline(ctx, testRecord(1, 2))
	before := testutil.ToFloat64(metrics.OfflineRowsPending)

	for i := 0; i < 2; i++ {
		if err := s.MarkSynced(ctx, id); err != nil {
			t.Fatalf("MarkSynced() call %d error = %v", i+1, err)
		}
	}

	if got := before - testutil.ToFloat64(metrics.OfflineRowsPending); got != 1 {
		t.Errorf("pending gauge dropped by %v, want 1", got)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Unsynced != 1 || st.Synced != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestStore_MarkSyncedUnknownID(t *testing.T) {
	s, _ := setupTestStore(t)

	err := s.MarkSynced(context.Background(), 9999)
	if !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("MarkSynced() error = %v, want ErrRowNotFound", err)
	}
	if !errors.Is(err, errs.LocalStorage) {
		t.Errorf("MarkSynced() error kind = %v, want local storage", errs.KindOf(err))
	}
}

func TestStore_ErrorMessageTruncated(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	id, _ := s.SaveOffline(ctx, testRecord(1, 1))
	long := strings.Repeat("é", 800)
	if err := s.RecordAttemptFailure(ctx, id, long); err != nil {
		t.Fatalf("RecordAttemptFailure() error = %v", err)
	}

	var stored string
	if err := s.db.QueryRowContext(ctx,
		`SELECT ErrorMessage FROM TimeChangeLog_Offline WHERE Id = ?`, id,
	).Scan(&stored); err != nil {
		t.Fatalf("select error message: %v", err)
	}
	if n := len([]rune(stored)); n != MaxErrorLength {
		t.Errorf("stored error has %d characters, want %d", n, MaxErrorLength)
	}
}

func TestStore_PurgeSyncedOlderThan(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	old, _ := s.SaveOffline(ctx, testRecord(1, 1))
	recent, _ := s.SaveOffline(ctx, testRecord(1, 2))
	unsynced, _ := s.SaveOffline(ctx, testRecord(1, 3))

	if err := s.MarkSynced(ctx, old); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	clock.Advance(24 * time.Hour)
	if err := s.MarkSynced(ctx, recent); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	// old was synced 30 days and a minute ago, recent 29 days ago.
	clock.Advance(29*24*time.Hour + time.Minute)

	n, err := s.PurgeSyncedOlderThan(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeSyncedOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}

	var remaining []int64
	rows, err := s.db.QueryContext(ctx, `SELECT Id FROM TimeChangeLog_Offline ORDER BY Id`)
	if err != nil {
		t.Fatalf("select ids: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		remaining = append(remaining, id)
	}
	if len(remaining) != 2 || remaining[0] != recent || remaining[1] != unsynced {
		t.Errorf("remaining ids = %v, want [%d %d]", remaining, recent, unsynced)
	}
}

func TestStore_TryLockSync(t *testing.T) {
	s := New(nil, config.OfflineConfig{LockTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	release, err := s.TryLockSync(ctx)
	if err != nil {
		t.Fatalf("first TryLockSync() error = %v", err)
	}

	start := time.Now()
	if _, err := s.TryLockSync(ctx); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("second TryLockSync() error = %v, want ErrSyncInProgress", err)
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Errorf("second caller gave up after %v, want it to wait the lock timeout", waited)
	}

	release()
	release2, err := s.TryLockSync(ctx)
	if err != nil {
		t.Fatalf("TryLockSync() after release error = %v", err)
	}
	release2()
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "offline.duckdb")
	ctx := context.Background()

	s, err := Open(ctx, config.OfflineConfig{Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.SaveOffline(ctx, testRecord(4, 42)); err != nil {
		t.Fatalf("SaveOffline() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(ctx, config.OfflineConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	pending, err := s.GetPendingChanges(ctx, 0)
	if err != nil {
		t.Fatalf("GetPendingChanges() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Record.OfficeID != 4 {
		t.Fatalf("pending after reopen = %+v", pending)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("truncate long = %q", got)
	}
}
