// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

const (
	probeSQL            = "SELECT 1"
	insertTimeChangeSQL = "CALL attendance.sp_insert_time_change_log(" +
		"$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, " +
		"$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)"
	uploadPunchesSQL    = "CALL attendance.sp_upload_punches($1, $2)"
)

// Call kinds used as metric labels.
const (
	kindProbe = "probe"
	kindAudit = "audit"
	kindPunch = "punch_batch"
)

const (
	defaultProbeTimeout = 5 * time.Second
	defaultQueryTimeout = 15 * time.Second
)

// execer is the subset of pgxpool.Pool the store needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the remote attendance store client.
type Store struct {
	db           execer
	pool         *pgxpool.Pool
	cb           *gobreaker.CircuitBreaker[any]
	probeTimeout time.Duration
	queryTimeout time.Duration
}

// Open builds the connection pool. No connection is made until first use.
func Open(ctx context.Context, cfg config.RemoteConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errs.New(errs.Configuration, "remote.Open", errors.New("remote DSN is required"))
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.New(errs.Configuration, "remote.Open", fmt.Errorf("parse DSN: %w", err))
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.New(errs.Configuration, "remote.Open", fmt.Errorf("create pool: %w", err))
	}

	s := newStore(pool, cfg)
	s.pool = pool

	logging.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("Remote store pool configured")
	return s, nil
}

func newStore(db execer, cfg config.RemoteConfig) *Store {
	s := &Store{
		db:           db,
		cb:           newBreaker(breakerName),
		probeTimeout: cfg.ProbeTimeout,
		queryTimeout: cfg.QueryTimeout,
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = defaultProbeTimeout
	}
	if s.queryTimeout <= 0 {
		s.queryTimeout = defaultQueryTimeout
	}
	return s
}

// Close releases every pooled connection.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Probe runs a trivial query under the probe timeout.
func (s *Store) Probe(ctx context.Context) error {
	return s.exec(ctx, kindProbe, s.probeTimeout, probeSQL)
}

// InsertTimeChange writes one audit record through the stored call.
func (s *Store) InsertTimeChange(ctx context.Context, rec *models.TimeChangeAuditRecord) error {
	if rec == nil {
		return errs.New(errs.Serialization, "remote.InsertTimeChange", errors.New("record cannot be nil"))
	}
	return s.exec(ctx, kindAudit, s.queryTimeout, insertTimeChangeSQL, timeChangeArgs(rec)...)
}

// UploadPunchBatch sends one compressed punch batch.
func (s *Store) UploadPunchBatch(ctx context.Context, officeID int, payload string) error {
	if payload == "" {
		return errs.New(errs.Serialization, "remote.UploadPunchBatch", errors.New("empty payload"))
	}
	return s.exec(ctx, kindPunch, s.queryTimeout, uploadPunchesSQL, officeID, payload)
}

// BreakerState reports the breaker state for the status endpoint.
func (s *Store) BreakerState() string {
	return stateToString(s.cb.State())
}

func (s *Store) exec(ctx context.Context, kind string, timeout time.Duration, sql string, args ...any) error {
	start := time.Now()

	_, err := s.cb.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := s.db.Exec(callCtx, sql, args...)
		return nil, err
	})

	metrics.RecordRemoteCall(kind, time.Since(start), err)
	if err == nil {
		return nil
	}

	op := "remote." + kind
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errs.New(errs.TransientNetwork, op, err)
	}
	return errs.Wrap(op, err)
}

// timeChangeArgs returns the stored call arguments in parameter order.
// A record written directly reports its event time as the original
// timestamp, a null sync timestamp and one attempt.
func timeChangeArgs(rec *models.TimeChangeAuditRecord) []any {
	var (
		originalTimestamp = rec.EventDateTime.UTC()
		syncTimestamp     *time.Time
		wasOffline        = false
		attemptCount      = 1
	)
	if m := rec.SyncMetadata; m != nil {
		s := m.SyncTimestamp.UTC()
		originalTimestamp, syncTimestamp = m.OriginalTimestamp.UTC(), &s
		wasOffline = m.WasOffline
		attemptCount = m.AttemptCount
	}

	return []any{
		rec.OfficeID,
		rec.EventDateTime.UTC(),
		utcPtr(rec.PreviousTime),
		rec.NewTime.UTC(),
		rec.TimeDifferenceSeconds,
		rec.MachineName,
		rec.UserName,
		rec.ProcessName,
		rec.ApplicationState,
		rec.NTPServerUsed,
		rec.IsNTPSynchronization,
		rec.IsSignificantChange,
		rec.IsSuspicious,
		string(rec.ChangeType),
		rec.SuspicionReason,
		rec.TimeZoneID,
		rec.IsDaylightSaving,
		rec.NetworkConnected,
		rec.NTPSyncEnabled,
		rec.SystemUptime,
		utcPtr(rec.LastBootTime),
		rec.AdditionalData,
		originalTimestamp,
		syncTimestamp,
		wasOffline,
		attemptCount,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
