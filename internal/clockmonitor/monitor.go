// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package clockmonitor

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

// State is the monitor lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateDetecting
	StateRecording
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateDetecting:
		return "detecting"
	case StateRecording:
		return "recording"
	case StateDisposed:
		return "disposed"
	default:
		return "uninitialized"
	}
}

// DefaultEnrichTimeout bounds the probes for one change.
const DefaultEnrichTimeout = 10 * time.Second

// ErrDisposed is returned by Start after Dispose.
var ErrDisposed = errors.New("clock monitor disposed")

// Recorder persists a finished audit record. It must not fail the caller.
type Recorder interface {
	SaveTimeChangeOffline(ctx context.Context, rec *models.TimeChangeAuditRecord)
}

// Options configures a Monitor.
type Options struct {
	OfficeID      int
	Sources       []Source
	Prober        Prober
	Recorder      Recorder
	EnrichTimeout time.Duration

	// AppState reports what the application was doing, e.g. IDLE or PUNCHING.
	AppState func() string
}

// Monitor turns clock signals into classified audit records.
//
// The previous time of a change is the last recorded wall time advanced by
// the monotonic time elapsed since, so the difference is the size of the
// jump rather than the time between events.
type Monitor struct {
	opts Options

	// Test hooks.
	wallNow func() time.Time
	elapsed func() time.Duration

	mu          sync.Mutex
	state       State
	lastWall    time.Time
	lastElapsed time.Duration

	inflight sync.WaitGroup
	pending  int
	cancel   context.CancelFunc
	sourceWG sync.WaitGroup
}

// New creates a monitor in the uninitialized state.
func New(opts Options) *Monitor {
	if opts.EnrichTimeout <= 0 {
		opts.EnrichTimeout = DefaultEnrichTimeout
	}
	if opts.AppState == nil {
		opts.AppState = func() string { return "IDLE" }
	}

	base := time.Now()
	return &Monitor{
		opts:    opts,
		wallNow: func() time.Time { return time.Now().Round(0) },
		elapsed: func() time.Duration { return time.Since(base) },
	}
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateInitialized && m.pending > 0 {
		return StateRecording
	}
	return m.state
}

// Start records the baseline time and runs every source until Dispose.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateDisposed:
		m.mu.Unlock()
		return ErrDisposed
	case StateUninitialized:
	default:
		m.mu.Unlock()
		return nil
	}

	m.lastWall = m.wallNow()
	m.lastElapsed = m.elapsed()
	m.state = StateInitialized

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	signals := make(chan Signal, 16)
	for _, src := range m.opts.Sources {
		m.sourceWG.Add(1)
		go func(src Source) {
			defer m.sourceWG.Done()
			if err := src.Run(runCtx, signals); err != nil {
				logging.Error().Err(err).Str("source", src.Name()).Msg("Clock change source stopped")
			}
		}(src)
	}

	m.sourceWG.Add(1)
	go func() {
		defer m.sourceWG.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case sig := <-signals:
				m.HandleSignal(runCtx, sig)
			}
		}
	}()

	names := make([]string, 0, len(m.opts.Sources))
	for _, src := range m.opts.Sources {
		names = append(names, src.Name())
	}
	logging.Info().Strs("sources", names).Msg("Clock change monitor started")
	return nil
}

// HandleSignal snapshots the times under the lock and hands the change to
// an enrichment goroutine. It returns without waiting for the record.
func (m *Monitor) HandleSignal(ctx context.Context, sig Signal) {
	m.mu.Lock()
	if m.state != StateInitialized {
		m.mu.Unlock()
		return
	}
	m.state = StateDetecting

	el := m.elapsed()
	previous := m.lastWall.Add(el - m.lastElapsed)
	current := m.wallNow()
	m.lastWall, m.lastElapsed = current, el

	m.state = StateInitialized
	m.pending++
	m.inflight.Add(1)
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.pending--
			m.mu.Unlock()
			m.inflight.Done()
		}()
		m.record(ctx, sig, previous, current)
	}()
}

func (m *Monitor) record(ctx context.Context, sig Signal, previous, current time.Time) {
	enrichCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.EnrichTimeout)
	defer cancel()

	rec := m.buildRecord(enrichCtx, sig, previous, current)

	metrics.ClockChanges.WithLabelValues(string(rec.ChangeType), strconv.FormatBool(rec.IsSuspicious)).Inc()
	if rec.IsSuspicious {
		logging.Warn().
			Int64("diff_seconds", rec.Diff()).
			Str("change_type", string(rec.ChangeType)).
			Str("reason", rec.SuspicionReason).
			Msg("Suspicious clock change detected")
	} else {
		logging.Info().
			Int64("diff_seconds", rec.Diff()).
			Str("change_type", string(rec.ChangeType)).
			Msg("Clock change recorded")
	}

	if m.opts.Recorder != nil {
		m.opts.Recorder.SaveTimeChangeOffline(enrichCtx, rec)
	}
}

// buildRecord enriches and classifies one change. Probe failures leave
// fields empty; a record is always produced.
func (m *Monitor) buildRecord(ctx context.Context, sig Signal, previous, current time.Time) *models.TimeChangeAuditRecord {
	prev := previous
	diff := int64(current.Sub(previous) / time.Second)

	rec := &models.TimeChangeAuditRecord{
		OfficeID:              m.opts.OfficeID,
		EventDateTime:         current,
		PreviousTime:          &prev,
		NewTime:               current,
		TimeDifferenceSeconds: &diff,
		IsSignificantChange:   abs64(diff) > significantChangeSeconds,
		ApplicationState:      m.opts.AppState(),
		AdditionalData:        "{}",
	}

	withNTP := sig.Kind == KindClockSet
	var snap Snapshot
	if m.opts.Prober != nil {
		snap = m.opts.Prober.Snapshot(ctx, withNTP)
	}
	applySnapshot(rec, snap)

	if sig.Kind == KindTimezone {
		ClassifyTimezone(rec)
		if snap.Additional == nil {
			snap.Additional = map[string]any{}
		}
		snap.Additional["changed_file"] = sig.Detail
	} else {
		loc := snap.Location
		if loc == nil {
			loc = time.Local
		}
		Classify(rec, IsDSTTransitionDay(current, loc))
		if rec.ClassificationNote != "" {
			if snap.Additional == nil {
				snap.Additional = map[string]any{}
			}
			snap.Additional["classification_note"] = rec.ClassificationNote
		}
	}

	if len(snap.Additional) > 0 {
		if data, err := json.Marshal(snap.Additional); err == nil {
			rec.AdditionalData = string(data)
		}
	}
	return rec
}

func applySnapshot(rec *models.TimeChangeAuditRecord, snap Snapshot) {
	rec.MachineName = snap.MachineName
	rec.UserName = snap.UserName
	rec.ProcessName = snap.ProcessName
	rec.TimeZoneID = snap.TimeZoneID
	rec.IsDaylightSaving = snap.IsDaylightSaving
	rec.NetworkConnected = snap.NetworkConnected
	rec.NTPSyncEnabled = snap.NTPSyncEnabled
	rec.SystemUptime = snap.Uptime
	rec.LastBootTime = snap.BootTime
	rec.IsNTPSynchronization = snap.NTPSynchronized
	rec.NTPServerUsed = snap.NTPServer
}

// Wait blocks until every in-flight record has been handed to the recorder.
func (m *Monitor) Wait() {
	m.inflight.Wait()
}

// Dispose stops the sources and waits for pending records. A disposed
// monitor cannot be restarted.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	if m.state == StateDisposed {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.state = StateDisposed
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.sourceWG.Wait()
	m.inflight.Wait()
	logging.Info().Msg("Clock change monitor disposed")
}
