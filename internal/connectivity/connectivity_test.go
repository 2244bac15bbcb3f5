// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/tomtom215/checkclock/internal/config"
)

type fakeRemote struct {
	err         error
	calls       atomic.Int32
	hadDeadline atomic.Bool
}

func (f *fakeRemote) Probe(ctx context.Context) error {
	f.calls.Add(1)
	_, ok := ctx.Deadline()
	f.hadDeadline.Store(ok)
	return f.err
}

func staticCheck(up bool, err error) InterfaceCheck {
	return func(context.Context) (bool, error) { return up, err }
}

func TestProber_IsOnline(t *testing.T) {
	tests := []struct {
		name      string
		up        bool
		ifaceErr  error
		probeErr  error
		want      bool
		wantProbe bool
	}{
		{"interface up and probe ok", true, nil, nil, true, true},
		{"interface down", false, nil, nil, false, false},
		{"interface check error", true, errors.New("no /proc"), nil, false, false},
		{"probe fails", true, nil, errors.New("refused"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{err: tt.probeErr}
			p := NewProberWithCheck(remote, staticCheck(tt.up, tt.ifaceErr), 0)

			if got := p.IsOnline(context.Background()); got != tt.want {
				t.Errorf("IsOnline() = %v, want %v", got, tt.want)
			}
			if probed := remote.calls.Load() > 0; probed != tt.wantProbe {
				t.Errorf("remote probed = %v, want %v", probed, tt.wantProbe)
			}
			if tt.wantProbe && !remote.hadDeadline.Load() {
				t.Error("remote probe should carry a deadline")
			}
		})
	}
}

func TestInterfacesUp(t *testing.T) {
	tests := []struct {
		name   string
		ifaces psnet.InterfaceStatList
		want   bool
	}{
		{"none", nil, false},
		{"loopback only", psnet.InterfaceStatList{{Name: "lo", Flags: []string{"up", "loopback"}}}, false},
		{"ethernet down", psnet.InterfaceStatList{{Name: "eth0", Flags: []string{"broadcast"}}}, false},
		{"ethernet up", psnet.InterfaceStatList{
			{Name: "lo", Flags: []string{"up", "loopback"}},
			{Name: "eth0", Flags: []string{"up", "broadcast", "multicast"}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := interfacesUp(tt.ifaces); got != tt.want {
				t.Errorf("interfacesUp() = %v, want %v", got, tt.want)
			}
		})
	}
}

type scriptedChecker struct {
	mu      sync.Mutex
	results []bool
}

func (s *scriptedChecker) IsOnline(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return false
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r
}

func TestMonitor_TriggersOnceOnTransition(t *testing.T) {
	checker := &scriptedChecker{results: []bool{false, true, true, false, true}}
	m := NewMonitor(checker, config.ConnectivityConfig{})

	var triggered atomic.Int32
	m.OnOnline = func(context.Context) { triggered.Add(1) }

	ctx := context.Background()
	want := []bool{false, true, true, false, true}
	for i, w := range want {
		if got := m.Check(ctx); got != w {
			t.Fatalf("check %d = %v, want %v", i, got, w)
		}
	}

	deadline := time.Now().Add(time.Second)
	for triggered.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := triggered.Load(); got != 2 {
		t.Errorf("OnOnline ran %d times, want 2", got)
	}
	if m.LastChange().IsZero() {
		t.Error("LastChange should be set after a transition")
	}
}

func TestMonitor_Intervals(t *testing.T) {
	m := NewMonitor(&scriptedChecker{results: []bool{true}}, config.ConnectivityConfig{})

	if m.nextInterval() != 5*time.Second {
		t.Errorf("offline interval = %v, want 5s", m.nextInterval())
	}
	m.Check(context.Background())
	if m.nextInterval() != 30*time.Second {
		t.Errorf("online interval = %v, want 30s", m.nextInterval())
	}
}

func TestMonitor_StartStop(t *testing.T) {
	checker := &scriptedChecker{results: []bool{true}}
	m := NewMonitor(checker, config.ConnectivityConfig{Interval: 10 * time.Millisecond, OfflineInterval: 10 * time.Millisecond})

	started := make(chan struct{}, 1)
	m.OnOnline = func(context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("initial probe did not report online")
	}

	m.Stop()
	if m.IsRunning() {
		t.Error("monitor should be stopped")
	}
	m.Stop()
}
