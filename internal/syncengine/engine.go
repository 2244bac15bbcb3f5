// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/offline"
)

// DefaultSyncInterval is the periodic sync tick when none is configured.
const DefaultSyncInterval = 5 * time.Minute

// OfflineStore is the subset of offline.Store used by the engine.
type OfflineStore interface {
	SaveOffline(ctx context.Context, rec *models.TimeChangeAuditRecord) (int64, error)
	GetPendingChanges(ctx context.Context, limit int) ([]offline.PendingChange, error)
	MarkSynced(ctx context.Context, id int64) error
	RecordAttemptFailure(ctx context.Context, id int64, errorText string) error
	PurgeSyncedOlderThan(ctx context.Context, age time.Duration) (int64, error)
	CountUnsynced(ctx context.Context) (int, error)
	TryLockSync(ctx context.Context) (release func(), err error)
}

// AuditWriter inserts one audit record into the remote store.
type AuditWriter interface {
	InsertTimeChange(ctx context.Context, rec *models.TimeChangeAuditRecord) error
}

// OnlineChecker reports remote reachability.
type OnlineChecker interface {
	IsOnline(ctx context.Context) bool
}

// PassResult describes one SyncPendingChanges pass.
type PassResult struct {
	Busy    bool
	Fetched int
	Synced  int
	Failed  int
	Purged  int64
	Err     error
}

// Engine saves and replays time-change audit records.
type Engine struct {
	store    OfflineStore
	remote   AuditWriter
	online   OnlineChecker
	interval time.Duration
	now      func() time.Time

	// Periodic loop state, protected by mu
	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// NewEngine creates an engine. interval <= 0 uses DefaultSyncInterval.
func NewEngine(store OfflineStore, remote AuditWriter, online OnlineChecker, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Engine{
		store:    store,
		remote:   remote,
		online:   online,
		interval: interval,
		now:      time.Now,
	}
}

// SaveTimeChangeOffline writes rec to the remote store when online and to the
// offline store otherwise, or when the remote write fails. It never returns
// an error; a record that reaches neither store is logged and counted as lost.
func (e *Engine) SaveTimeChangeOffline(ctx context.Context, rec *models.TimeChangeAuditRecord) {
	if rec == nil {
		return
	}

	if e.online.IsOnline(ctx) {
		err := e.remote.InsertTimeChange(ctx, rec)
		if err == nil {
			metrics.AuditSaves.WithLabelValues("remote").Inc()
			logging.Debug().
				Str("change_type", string(rec.ChangeType)).
				Msg("Time change saved to remote store")
			return
		}
		logging.Warn().
			Err(err).
			Str("kind", errs.KindOf(err).String()).
			Msg("Remote audit insert failed, saving offline")
	}

	id, err := e.store.SaveOffline(ctx, rec)
	if err != nil {
		metrics.AuditSaves.WithLabelValues("lost").Inc()
		logging.Error().
			Err(err).
			Str("change_type", string(rec.ChangeType)).
			Time("event_time", rec.EventDateTime).
			Msg("Time change could not be saved locally")
		return
	}

	metrics.AuditSaves.WithLabelValues("offline").Inc()
	logging.Info().
		Int64("offline_id", id).
		Str("change_type", string(rec.ChangeType)).
		Msg("Time change saved offline")
}

// SyncPendingChanges replays one batch of offline rows. A pass that cannot
// take the sync lock returns with Busy set and performs no remote writes.
func (e *Engine) SyncPendingChanges(ctx context.Context) PassResult {
	ctx = logging.ContextWithPassID(ctx)
	log := logging.Ctx(ctx)
	start := time.Now()

	release, err := e.store.TryLockSync(ctx)
	if errors.Is(err, offline.ErrSyncInProgress) {
		log.Warn().Msg("Sync already in progress, skipping")
		metrics.RecordSyncPass("busy", 0, 0)
		return PassResult{Busy: true}
	}
	if err != nil {
		log.Error().Err(err).Msg("Sync lock unavailable")
		metrics.RecordSyncPass("error", 0, 0)
		return PassResult{Err: err}
	}
	defer release()

	pending, err := e.store.GetPendingChanges(ctx, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch pending changes")
		metrics.RecordSyncPass("error", time.Since(start), 0)
		return PassResult{Err: err}
	}

	result := PassResult{Fetched: len(pending)}
	if len(pending) == 0 {
		log.Debug().Msg("No pending changes to sync")
		metrics.RecordSyncPass("completed", time.Since(start), 0)
		return result
	}

	log.Info().Int("pending", len(pending)).Msg("Syncing pending changes")

	for _, pc := range pending {
		if ctx.Err() != nil {
			break
		}
		if e.replay(ctx, pc) {
			result.Synced++
		} else {
			result.Failed++
		}
	}

	log.Info().
		Int("synced", result.Synced).
		Int("errors", result.Failed).
		Msg("Sync completed")

	purged, err := e.store.PurgeSyncedOlderThan(ctx, 0)
	if err != nil {
		log.Warn().Err(err).Msg("Purge of old synced rows failed")
	}
	result.Purged = purged

	metrics.RecordSyncPass("completed", time.Since(start), result.Synced)
	return result
}

// replay sends one offline row and records its outcome.
func (e *Engine) replay(ctx context.Context, pc offline.PendingChange) bool {
	rec := *pc.Record
	rec.SyncMetadata = &models.SyncMetadata{
		OriginalTimestamp: pc.CreatedAt,
		SyncTimestamp:     e.now().UTC(),
		AttemptCount:      pc.AttemptCount + 1,
		WasOffline:        true,
	}

	if err := e.remote.InsertTimeChange(ctx, &rec); err != nil {
		if ferr := e.store.RecordAttemptFailure(ctx, pc.ID, err.Error()); ferr != nil {
			logging.Ctx(ctx).Error().Err(ferr).Int64("offline_id", pc.ID).Msg("Failed to record sync attempt")
		}
		logging.Ctx(ctx).Error().
			Err(err).
			Int64("offline_id", pc.ID).
			Int("attempt", pc.AttemptCount+1).
			Msg("Failed to sync change")
		return false
	}

	if err := e.store.MarkSynced(ctx, pc.ID); err != nil {
		// The row stays unsynced and is sent again next pass.
		logging.Ctx(ctx).Error().Err(err).Int64("offline_id", pc.ID).Msg("Remote insert succeeded but mark synced failed")
		return false
	}
	logging.Ctx(ctx).Debug().Int64("offline_id", pc.ID).Msg("Change synced")
	return true
}

// ForceSync runs one pass and reports the unsynced counts around it.
func (e *Engine) ForceSync(ctx context.Context) (models.SyncResult, error) {
	logging.Info().Msg("Manual sync started")

	initial, err := e.store.CountUnsynced(ctx)
	if err != nil {
		return models.SyncResult{}, err
	}

	pass := e.SyncPendingChanges(ctx)
	if pass.Err != nil {
		logging.Warn().Err(pass.Err).Msg("Manual sync pass failed")
	}

	remaining, err := e.store.CountUnsynced(ctx)
	if err != nil {
		return models.SyncResult{}, err
	}
	return models.NewSyncResult(initial, remaining), nil
}

// Summary renders a SyncResult as the single line shown to operators.
func Summary(r models.SyncResult) string {
	switch {
	case r.InitialPending == 0:
		return "No pending time changes to synchronize"
	case r.Success && r.RemainingPending == 0:
		return fmt.Sprintf("Synchronized %d pending time changes", r.SyncedCount)
	case r.Success:
		return fmt.Sprintf("Synchronized %d of %d pending time changes, %d remaining",
			r.SyncedCount, r.InitialPending, r.RemainingPending)
	default:
		return fmt.Sprintf("Synchronization failed, %d time changes still pending", r.RemainingPending)
	}
}

// OnOnline runs one background pass. It matches connectivity.Monitor.OnOnline.
func (e *Engine) OnOnline(ctx context.Context) {
	e.SyncPendingChanges(ctx)
}

// Start begins the periodic sync loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()

	for e.stopping {
		stopDone := e.stopDone
		e.mu.Unlock()
		<-stopDone
		e.mu.Lock()
	}

	if e.running {
		e.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.stopDone = make(chan struct{})
	done := e.stopDone

	e.mu.Unlock()

	go e.run(loopCtx, done)

	logging.Info().Dur("interval", e.interval).Msg("Offline sync loop started")
	return nil
}

// Stop stops the periodic loop and waits for an in-flight pass to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running || e.stopping {
		e.mu.Unlock()
		return
	}

	e.cancel()
	e.running = false
	e.stopping = true
	stopDone := e.stopDone
	e.mu.Unlock()

	<-stopDone

	e.mu.Lock()
	e.stopping = false
	e.mu.Unlock()

	logging.Info().Msg("Offline sync loop stopped")
}

// IsRunning reports whether the periodic loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SyncPendingChanges(ctx)
		}
	}
}
