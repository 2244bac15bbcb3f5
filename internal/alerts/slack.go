// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package alerts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/models"
)

// slackTextLimit is Slack's attachment text limit.
const slackTextLimit = 3000

// SlackNotifier posts alerts to an incoming webhook.
type SlackNotifier struct {
	cfg    config.SlackConfig
	office config.OfficeConfig
	client *http.Client
}

// NewSlackNotifier creates a webhook notifier.
func NewSlackNotifier(cfg config.SlackConfig, office config.OfficeConfig) *SlackNotifier {
	return &SlackNotifier{
		cfg:    cfg,
		office: office,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *SlackNotifier) Name() string { return "slack" }

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, alert models.AdminErrorAlert) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.cfg.WebhookURL, n.client, n.message(alert)); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

func (n *SlackNotifier) message(alert models.AdminErrorAlert) *slack.WebhookMessage {
	office := alert.OfficeID
	if office == "" {
		office = n.office.OfficeKey()
	}
	device := alert.DeviceID
	if device == "" {
		device = n.office.DeviceID()
	}

	text := alert.Message
	if alert.Exception != "" {
		text += "\n```" + alert.Exception + "```"
	}
	if len(text) > slackTextLimit {
		text = text[:slackTextLimit-3] + "..."
	}

	fields := []slack.AttachmentField{
		{Title: "Office", Value: office, Short: true},
		{Title: "Device", Value: device, Short: true},
		{Title: "Severity", Value: alert.Severity, Short: true},
	}
	if alert.Context != "" {
		fields = append(fields, slack.AttachmentField{Title: "Context", Value: alert.Context})
	}

	return &slack.WebhookMessage{
		Channel:  n.cfg.Channel,
		Username: "CheckClock",
		Text:     fmt.Sprintf(":rotating_light: *%s* (office %s)", alert.Title, office),
		Attachments: []slack.Attachment{{
			Color:  "#b00020",
			Title:  alert.Title,
			Text:   text,
			Fields: fields,
			Footer: "checkclock | " + alert.Timestamp.Format(time.RFC3339),
		}},
	}
}
