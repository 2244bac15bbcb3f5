// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package punch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/outbox"
)

// Cache is the durable punch cache.
type Cache interface {
	Append(ctx context.Context, punch *models.PunchEvent) (string, error)
	Pending(ctx context.Context) ([]*outbox.Entry, error)
}

// Publisher forwards a recorded punch in real time. Implementations queue
// the punch themselves when disconnected.
type Publisher interface {
	SendPunch(ctx context.Context, punch *models.PunchEvent) error
}

// Recorder turns an identified employee into a stored punch.
type Recorder struct {
	clock    *Clock
	cache    Cache
	pub      Publisher
	rules    Rules
	officeID int
	wallNow  func() time.Time

	mu   sync.Mutex
	last map[int]models.PunchEvent
}

// NewRecorder creates a recorder and seeds each employee's last punch from
// the entries still waiting in the cache. pub may be nil.
func NewRecorder(ctx context.Context, clock *Clock, cache Cache, pub Publisher, officeID int, cfg config.PunchConfig) (*Recorder, error) {
	r := &Recorder{
		clock:    clock,
		cache:    cache,
		pub:      pub,
		rules:    RulesFromConfig(cfg),
		officeID: officeID,
		wallNow:  time.Now,
		last:     make(map[int]models.PunchEvent),
	}

	entries, err := cache.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		prev, ok := r.last[e.Punch.EmployeeID]
		if !ok || !e.Punch.InternalEventTime.Before(prev.InternalEventTime) {
			r.last[e.Punch.EmployeeID] = e.Punch
		}
	}
	if len(entries) > 0 {
		logging.Debug().
			Int("cached", len(entries)).
			Int("employees", len(r.last)).
			Msg("Punch recorder seeded from outbox")
	}
	return r, nil
}

// Next returns the event the employee would record now, without recording it.
func (r *Recorder) Next(employeeID int) (Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextLocked(employeeID)
}

func (r *Recorder) nextLocked(employeeID int) (Decision, error) {
	var prev *models.PunchEvent
	if p, ok := r.last[employeeID]; ok {
		prev = &p
	}
	return NextEvent(prev, r.clock.InternalNow(), r.rules)
}

// Record stores the next punch of an employee. override is EventUnknown for
// the computed event, or the employee's answer after ErrShiftTooLong.
// Duplicates are rejected either way.
func (r *Recorder) Record(ctx context.Context, employeeID int, name string, override models.EventType) (*models.PunchEvent, error) {
	r.mu.Lock()

	dec, err := r.nextLocked(employeeID)
	switch {
	case errors.Is(err, ErrDuplicatePunch):
		r.mu.Unlock()
		logging.Info().Int("employee_id", employeeID).Dur("gap", dec.Gap).Msg("Duplicate punch ignored")
		return nil, err
	case override != models.EventUnknown:
		if override != models.EventEntry && override != models.EventExit {
			r.mu.Unlock()
			return nil, ErrInvalidOverride
		}
		dec = Decision{Type: override, Gap: dec.Gap}
	case err != nil:
		r.mu.Unlock()
		return nil, err
	}

	ev := &models.PunchEvent{
		EmployeeID:        employeeID,
		EmployeeName:      name,
		EventType:         dec.Type,
		EventTime:         r.wallNow(),
		InternalEventTime: r.clock.InternalNow(),
		OfficeID:          r.officeID,
	}

	if _, err := r.cache.Append(ctx, ev); err != nil {
		r.mu.Unlock()
		logging.Error().Err(err).Int("employee_id", employeeID).Msg("Punch could not be cached")
		return nil, err
	}
	prevType := models.EventUnknown
	if p, ok := r.last[employeeID]; ok {
		prevType = p.EventType
	}
	r.last[employeeID] = *ev
	r.mu.Unlock()

	metrics.PunchesRecorded.WithLabelValues(ev.EventType.String()).Inc()
	logging.Info().
		Int("employee_id", employeeID).
		Str("employee", name).
		Str("event", ev.EventType.String()).
		Time("event_time", ev.EventTime).
		Msg("Punch recorded")

	if dec.Alert {
		logging.Critical().
			Str("title", "Invalid last event").
			Int("employee_id", employeeID).
			Int("last_event", int(prevType)).
			Msg("Last recorded event is not valid, recording Entry")
	}

	if r.pub != nil {
		if err := r.pub.SendPunch(ctx, ev); err != nil {
			logging.Warn().Err(err).Int("employee_id", employeeID).Msg("Realtime punch send failed")
		}
	}
	return ev, nil
}
