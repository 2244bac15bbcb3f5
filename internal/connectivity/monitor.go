// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
)

const (
	DefaultOnlineInterval  = 30 * time.Second
	DefaultOfflineInterval = 5 * time.Second
)

// Checker is satisfied by *Prober.
type Checker interface {
	IsOnline(ctx context.Context) bool
}

// Monitor probes connectivity on a timer and reports transitions.
type Monitor struct {
	checker         Checker
	onlineInterval  time.Duration
	offlineInterval time.Duration

	// OnOnline runs in its own goroutine after each offline to online transition.
	OnOnline func(ctx context.Context)

	online     atomic.Bool
	lastChange atomic.Int64

	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// NewMonitor creates a monitor. Zero intervals use the 30s/5s defaults.
func NewMonitor(checker Checker, cfg config.ConnectivityConfig) *Monitor {
	m := &Monitor{
		checker:         checker,
		onlineInterval:  cfg.Interval,
		offlineInterval: cfg.OfflineInterval,
	}
	if m.onlineInterval <= 0 {
		m.onlineInterval = DefaultOnlineInterval
	}
	if m.offlineInterval <= 0 {
		m.offlineInterval = DefaultOfflineInterval
	}
	return m
}

// Online returns the last observed state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// LastChange returns when the state last flipped, or zero time.
func (m *Monitor) LastChange() time.Time {
	ns := m.lastChange.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Check probes once, records the result and fires OnOnline on a
// false to true transition. It returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	now := m.checker.IsOnline(ctx)
	was := m.online.Swap(now)
	if was == now {
		return now
	}

	m.lastChange.Store(time.Now().UnixNano())
	metrics.RecordConnectivity(now)

	if now {
		logging.Info().Msg("Connectivity restored")
		if m.OnOnline != nil {
			go m.OnOnline(ctx)
		}
	} else {
		logging.Warn().Msg("Connectivity lost")
	}
	return now
}

func (m *Monitor) nextInterval() time.Duration {
	if m.online.Load() {
		return m.onlineInterval
	}
	return m.offlineInterval
}

// Start probes immediately and then on the adaptive interval until Stop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	for m.stopping {
		done := m.stopDone
		m.mu.Unlock()
		<-done
		m.mu.Lock()
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.stopDone = make(chan struct{})
	done := m.stopDone
	m.mu.Unlock()

	go m.run(loopCtx, done)

	logging.Info().
		Dur("online_interval", m.onlineInterval).
		Dur("offline_interval", m.offlineInterval).
		Msg("Connectivity monitor started")
	return nil
}

// Stop ends the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running || m.stopping {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.stopping = true
	done := m.stopDone
	m.mu.Unlock()

	<-done

	m.mu.Lock()
	m.stopping = false
	m.mu.Unlock()

	logging.Info().Msg("Connectivity monitor stopped")
}

// IsRunning returns whether the loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.Check(ctx)
	timer := time.NewTimer(m.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.Check(ctx)
			timer.Reset(m.nextInterval())
		}
	}
}
