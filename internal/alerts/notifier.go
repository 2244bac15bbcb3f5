// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/realtime"
)

// Notifier delivers one alert to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert models.AdminErrorAlert) error
}

// AlertSender is the part of a realtime channel used for alerts.
type AlertSender interface {
	Name() string
	SendAdminAlert(ctx context.Context, alert models.AdminErrorAlert) error
}

// RealtimeNotifier forwards alerts to a realtime channel.
type RealtimeNotifier struct {
	sender AlertSender
}

// NewRealtimeNotifier wraps sender.
func NewRealtimeNotifier(sender AlertSender) *RealtimeNotifier {
	return &RealtimeNotifier{sender: sender}
}

func (n *RealtimeNotifier) Name() string { return "realtime" }

// Notify implements Notifier. An alert the channel only queued is reported
// as ErrDeferred: the channel flushes it on reconnect by itself.
func (n *RealtimeNotifier) Notify(ctx context.Context, alert models.AdminErrorAlert) error {
	if n.sender == nil {
		return errors.New("no realtime channel")
	}
	err := n.sender.SendAdminAlert(ctx, alert)
	if errors.Is(err, realtime.ErrQueued) {
		return fmt.Errorf("%w: %w", ErrDeferred, err)
	}
	return err
}

// Notifiers builds the enabled notifiers in delivery order: email, Slack,
// then realtime when enabled and a sender is given.
func Notifiers(cfg config.AlertsConfig, office config.OfficeConfig, sender AlertSender) []Notifier {
	var out []Notifier

	if cfg.Email.Enabled {
		if missing := MissingEmailFields(cfg.Email); len(missing) > 0 {
			logging.Warn().Strs("missing", missing).
				Str("host", cfg.Email.Host).
				Int("port", cfg.Email.Port).
				Msg("SMTP configuration incomplete, alert email disabled")
		} else {
			out = append(out, NewEmailNotifier(cfg.Email, office))
		}
	} else {
		logging.Debug().Msg("Alert email disabled")
	}

	if cfg.Slack.WebhookURL != "" {
		out = append(out, NewSlackNotifier(cfg.Slack, office))
	}

	if cfg.RealtimeEnabled && sender != nil {
		out = append(out, NewRealtimeNotifier(sender))
	}
	return out
}
