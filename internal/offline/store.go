// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver
	"github.com/goccy/go-json"
	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

// TimestampLayout is the fixed width UTC layout of every stored timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// MaxErrorLength caps the stored error text, in characters.
const MaxErrorLength = 500

var (
	// ErrRowNotFound is returned when an id does not exist.
	ErrRowNotFound = errors.New("offline row not found")

	// ErrSyncInProgress is returned by TryLockSync when another pass holds the lock.
	ErrSyncInProgress = errors.New("offline sync already in progress")
)

// PendingChange is an unsynced row decoded back into its record.
type PendingChange struct {
	ID           int64
	Record       *models.TimeChangeAuditRecord
	CreatedAt    time.Time
	AttemptCount int
	LastAttempt  *time.Time
}

// Store is the DuckDB backed offline audit store.
type Store struct {
	db  *sql.DB
	cfg config.OfflineConfig
	now func() time.Time

	syncSem *semaphore.Weighted
}

// Open opens (or creates) the database file at cfg.Path and ensures the schema.
func Open(ctx context.Context, cfg config.OfflineConfig) (*Store, error) {
	if cfg.Path != ":memory:" && cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, errs.New(errs.LocalStorage, "offline.Open", fmt.Errorf("create directory: %w", err))
		}
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, errs.New(errs.LocalStorage, "offline.Open", err)
	}

	s := New(db, cfg)
	if err := s.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. The caller must call CreateTable.
func New(db *sql.DB, cfg config.OfflineConfig) *Store {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = time.Second
	}
	return &Store{
		db:      db,
		cfg:     cfg,
		now:     time.Now,
		syncSem: semaphore.NewWeighted(1),
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTable creates the offline table, its id sequence and indexes.
func (s *Store) CreateTable(ctx context.Context) error {
	schema := `
		CREATE SEQUENCE IF NOT EXISTS seq_time_change_log_offline START 1;

		CREATE TABLE IF NOT EXISTS TimeChangeLog_Offline (
			Id BIGINT PRIMARY KEY DEFAULT nextval('seq_time_change_log_offline'),
			LogData TEXT NOT NULL,
			CreatedAt TEXT NOT NULL,
			AttemptCount INTEGER NOT NULL DEFAULT 0,
			LastAttempt TEXT,
			ErrorMessage TEXT,
			IsSynced INTEGER NOT NULL DEFAULT 0,
			SyncedAt TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_offline_is_synced ON TimeChangeLog_Offline(IsSynced);
		CREATE INDEX IF NOT EXISTS idx_offline_created_at ON TimeChangeLog_Offline(CreatedAt);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errs.New(errs.LocalStorage, "offline.CreateTable", fmt.Errorf("execute schema statement: %w", err))
		}
	}

	logging.Debug().Msg("Offline audit table created/verified")
	return nil
}

// SaveOffline inserts one unsynced row for record and returns its id.
// Duplicates are not detected.
func (s *Store) SaveOffline(ctx context.Context, record *models.TimeChangeAuditRecord) (int64, error) {
	if record == nil {
		return 0, errs.New(errs.Serialization, "offline.SaveOffline", errors.New("record cannot be nil"))
	}

	data, err := json.Marshal(record)
	if err != nil {
		metrics.RecordOfflineOp("save", err)
		return 0, errs.New(errs.Serialization, "offline.SaveOffline", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO TimeChangeLog_Offline (LogData, CreatedAt, AttemptCount, IsSynced)
		 VALUES (?, ?, 0, 0) RETURNING Id`,
		string(data), formatTime(s.now()),
	).Scan(&id)
	metrics.RecordOfflineOp("save", err)
	if err != nil {
		return 0, errs.New(errs.LocalStorage, "offline.SaveOffline", err)
	}

	metrics.OfflineRowsPending.Inc()
	return id, nil
}

// GetPendingChanges returns up to limit unsynced rows, oldest first, skipping
// rows still in their cool-down. limit <= 0 uses the configured batch limit.
// Rows whose LogData no longer decodes are marked failed and skipped.
func (s *Store) GetPendingChanges(ctx context.Context, limit int) ([]PendingChange, error) {
	if limit <= 0 {
		limit = s.cfg.BatchLimit
	}
	cutoff := formatTime(s.now().Add(-s.cfg.Cooldown))

	rows, err := s.db.QueryContext(ctx,
		`SELECT Id, LogData, CreatedAt, AttemptCount, LastAttempt
		 FROM TimeChangeLog_Offline
		 WHERE IsSynced = 0
		   AND (AttemptCount < ? OR LastAttempt IS NULL OR LastAttempt < ?)
		 ORDER BY CreatedAt ASC, Id ASC
		 LIMIT ?`,
		s.cfg.MaxAttempts, cutoff, limit,
	)
	if err != nil {
		metrics.RecordOfflineOp("fetch", err)
		return nil, errs.New(errs.LocalStorage, "offline.GetPendingChanges", err)
	}
	defer rows.Close()

	var (
		pending []PendingChange
		corrupt []int64
	)
	for rows.Next() {
		var (
			id          int64
			logData     string
			createdAt   string
			attempts    int
			lastAttempt sql.NullString
		)
		if err := rows.Scan(&id, &logData, &createdAt, &attempts, &lastAttempt); err != nil {
			metrics.RecordOfflineOp("fetch", err)
			return nil, errs.New(errs.LocalStorage, "offline.GetPendingChanges", err)
		}

		var record models.TimeChangeAuditRecord
		if err := json.Unmarshal([]byte(logData), &record); err != nil {
			logging.Warn().Err(err).Int64("row_id", id).Msg("Offline row does not decode, marking failed")
			corrupt = append(corrupt, id)
			continue
		}

		pc := PendingChange{ID: id, Record: &record, AttemptCount: attempts}
		pc.CreatedAt, _ = parseTime(createdAt)
		if lastAttempt.Valid {
			if t, err := parseTime(lastAttempt.String); err == nil {
				pc.LastAttempt = &t
			}
		}
		pending = append(pending, pc)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordOfflineOp("fetch", err)
		return nil, errs.New(errs.LocalStorage, "offline.GetPendingChanges", err)
	}
	metrics.RecordOfflineOp("fetch", nil)

	for _, id := range corrupt {
		if err := s.RecordAttemptFailure(ctx, id, "log data does not decode"); err != nil {
			logging.Warn().Err(err).Int64("row_id", id).Msg("Failed to mark corrupt offline row")
		}
	}

	return pending, nil
}

// MarkSynced flags a row as synced at the current time. Marking a row that
// is already synced is a no-op and keeps its original SyncedAt.
func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE TimeChangeLog_Offline SET IsSynced = 1, SyncedAt = ? WHERE Id = ? AND IsSynced = 0`,
		formatTime(s.now()), id,
	)
	err = checkAffected(res, err)
	if errors.Is(err, ErrRowNotFound) {
		var exists bool
		if qerr := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) > 0 FROM TimeChangeLog_Offline WHERE Id = ?`, id,
		).Scan(&exists); qerr != nil {
			err = qerr
		} else if exists {
			metrics.RecordOfflineOp("mark_synced", nil)
			return nil
		}
	}
	if err != nil {
		metrics.RecordOfflineOp("mark_synced", err)
		return errs.New(errs.LocalStorage, "offline.MarkSynced", err)
	}
	metrics.RecordOfflineOp("mark_synced", nil)
	metrics.OfflineRowsPending.Dec()
	return nil
}

// RecordAttemptFailure increments the attempt counter and stores the error
// text, truncated to MaxErrorLength characters.
func (s *Store) RecordAttemptFailure(ctx context.Context, id int64, errorText string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE TimeChangeLog_Offline
		 SET AttemptCount = AttemptCount + 1, LastAttempt = ?, ErrorMessage = ?
		 WHERE Id = ?`,
		formatTime(s.now()), truncate(errorText, MaxErrorLength), id,
	)
	if err = checkAffected(res, err); err != nil {
		metrics.RecordOfflineOp("record_failure", err)
		return errs.New(errs.LocalStorage, "offline.RecordAttemptFailure", err)
	}
	metrics.RecordOfflineOp("record_failure", nil)
	return nil
}

// PurgeSyncedOlderThan deletes synced rows whose SyncedAt is strictly older
// than age and returns how many were removed. age <= 0 uses the configured
// retention.
func (s *Store) PurgeSyncedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		age = s.cfg.Retention
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM TimeChangeLog_Offline WHERE IsSynced = 1 AND SyncedAt < ?`,
		formatTime(s.now().Add(-age)),
	)
	if err != nil {
		metrics.RecordOfflineOp("purge", err)
		return 0, errs.New(errs.LocalStorage, "offline.PurgeSyncedOlderThan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	metrics.RecordOfflineOp("purge", nil)
	metrics.OfflineRowsPurged.Add(float64(n))
	return n, nil
}

// CountUnsynced returns the number of unsynced rows, including rows in cool-down.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM TimeChangeLog_Offline WHERE IsSynced = 0`,
	).Scan(&n); err != nil {
		return 0, errs.New(errs.LocalStorage, "offline.CountUnsynced", err)
	}
	metrics.OfflineRowsPending.Set(float64(n))
	return n, nil
}

// Stats summarises the table for the admin status endpoint.
type Stats struct {
	Unsynced   int `json:"unsynced"`
	CoolingOff int `json:"cooling_off"`
	Synced     int `json:"synced"`
}

// Stats returns row counts by state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	cutoff := formatTime(s.now().Add(-s.cfg.Cooldown))
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN IsSynced = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN IsSynced = 0 AND AttemptCount >= ? AND LastAttempt IS NOT NULL AND LastAttempt >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN IsSynced = 1 THEN 1 ELSE 0 END), 0)
		 FROM TimeChangeLog_Offline`,
		s.cfg.MaxAttempts, cutoff,
	).Scan(&st.Unsynced, &st.CoolingOff, &st.Synced)
	if err != nil {
		return Stats{}, errs.New(errs.LocalStorage, "offline.Stats", err)
	}
	return st, nil
}

// TryLockSync takes the single-flight sync lock, waiting at most LockTimeout.
// It returns ErrSyncInProgress when the lock is held elsewhere. The returned
// release func must be called exactly once.
func (s *Store) TryLockSync(ctx context.Context) (release func(), err error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	if err := s.syncSem.Acquire(lockCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrSyncInProgress
	}
	return func() { s.syncSem.Release(1) }, nil
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRowNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// truncate shortens s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
