// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package clockmonitor

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
)

func TestPollSource_Skewed(t *testing.T) {
	p := NewPollSource(time.Second, 2*time.Second)

	tests := []struct {
		name       string
		wall, mono time.Duration
		want       bool
	}{
		{"in step", time.Second, time.Second, false},
		{"within tolerance", 3 * time.Second, time.Second, false},
		{"forward jump", time.Hour, time.Second, true},
		{"backward jump", -90 * time.Second, time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := p.skewed(tt.wall, tt.mono); got != tt.want {
				t.Errorf("skewed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.ClockConfig{Source: SourcePoll})
	if err != nil || src.Name() != "poll" {
		t.Fatalf("NewSource(poll) = %v, %v", src, err)
	}

	src, err = NewSource(config.ClockConfig{Source: SourceAuto})
	if err != nil || src == nil {
		t.Fatalf("NewSource(auto) = %v, %v", src, err)
	}

	if _, err := NewSource(config.ClockConfig{Source: "sundial"}); err == nil {
		t.Error("unknown source should fail")
	}
}

func TestTimezoneWatcher_SignalsOnReplace(t *testing.T) {
	dir := t.TempDir()
	w := NewTimezoneWatcher(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Signal, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "unrelated"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "timezone"), []byte("Europe/Madrid\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case sig := <-out:
		if sig.Kind != KindTimezone || filepath.Base(sig.Detail) != "timezone" {
			t.Errorf("signal = %+v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no timezone signal")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestCurrentZone(t *testing.T) {
	dir := t.TempDir()

	if name, loc := CurrentZone(dir); loc != time.Local || name != time.Local.String() {
		t.Errorf("empty dir = %s, %v", name, loc)
	}

	if err := os.WriteFile(filepath.Join(dir, "timezone"), []byte("Europe/Madrid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	name, loc := CurrentZone(dir)
	if name != "Europe/Madrid" || loc.String() != "Europe/Madrid" {
		t.Errorf("timezone file = %s, %v", name, loc)
	}

	if err := os.Symlink("/usr/share/zoneinfo/America/Mexico_City", filepath.Join(dir, "localtime")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	if name, _ := CurrentZone(dir); name != "America/Mexico_City" {
		t.Errorf("localtime link = %s", name)
	}
}

func TestParseNTPServer(t *testing.T) {
	tests := []struct {
		name, conf, want string
	}{
		{"chrony pool", "# comment\npool 2.debian.pool.ntp.org iburst\n", "2.debian.pool.ntp.org"},
		{"ntp server", "driftfile /var/lib/ntp/drift\nserver time.example.org\n", "time.example.org"},
		{"timesyncd", "[Time]\nNTP=ntp.example.com ntp2.example.com\n", "ntp.example.com"},
		{"empty timesyncd", "[Time]\nNTP=\n", ""},
		{"nothing", "makestep 1 3\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseNTPServer(bufio.NewScanner(strings.NewReader(tt.conf))); got != tt.want {
				t.Errorf("parseNTPServer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHostProber_SnapshotNeverFails(t *testing.T) {
	h := &HostProber{
		OfficeName:     "Centro",
		InterfaceCheck: func(context.Context) (bool, error) { return true, nil },
	}
	snap := h.Snapshot(context.Background(), true)

	if snap.NetworkConnected == nil || !*snap.NetworkConnected {
		t.Error("interface check result should be recorded")
	}
	if snap.Location == nil || snap.IsDaylightSaving == nil || snap.NTPSyncEnabled == nil {
		t.Errorf("snapshot missing fields: %+v", snap)
	}
	if snap.Additional["office_name"] != "Centro" {
		t.Errorf("additional = %v", snap.Additional)
	}
}
