// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package main

import (
	"github.com/tomtom215/checkclock/internal/auth"
	"github.com/tomtom215/checkclock/internal/clockmonitor"
	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/realtime"
)

// newRealtimeChannel builds the configured channel. Only the hub needs the
// device auth client.
func newRealtimeChannel(cfg *config.Config) (realtime.Channel, error) {
	var tokens realtime.TokenProvider
	if cfg.Realtime.Mode == realtime.ModeHub {
		tokens = auth.NewClient(cfg.Realtime.Hub, cfg.Office, "")
	}
	return realtime.New(cfg, tokens, realtime.Handlers{
		OnPunch: func(senderID string, p models.PunchRecord) {
			logging.Info().
				Str("sender", senderID).
				Int("employee_id", p.IDEmployee).
				Str("event", p.EventName).
				Msg("Punch relayed from another device")
		},
		OnNotice: func(n models.Notice) {
			logging.Info().Str("notice_id", string(n.ID)).Str("caption", n.Caption).Msg("Notice received")
		},
		OnStateChange: func(s realtime.State) {
			logging.Debug().Str("state", s.String()).Msg("Realtime state changed")
		},
	})
}

// newClockMonitor returns nil when clock monitoring is disabled.
func newClockMonitor(cfg *config.Config, rec clockmonitor.Recorder) (*clockmonitor.Monitor, error) {
	if !cfg.Clock.Enabled {
		logging.Info().Msg("Clock change monitor disabled")
		return nil, nil
	}

	src, err := clockmonitor.NewSource(cfg.Clock)
	if err != nil {
		return nil, err
	}
	sources := []clockmonitor.Source{src}
	if cfg.Clock.ZoneInfoDir != "" {
		sources = append(sources, clockmonitor.NewTimezoneWatcher(cfg.Clock.ZoneInfoDir))
	}

	return clockmonitor.New(clockmonitor.Options{
		OfficeID:      cfg.Office.ID,
		Sources:       sources,
		Prober:        &clockmonitor.HostProber{ZoneDir: cfg.Clock.ZoneInfoDir, OfficeName: cfg.Office.Name},
		Recorder:      rec,
		EnrichTimeout: cfg.Clock.EnrichTimeout,
	}), nil
}
