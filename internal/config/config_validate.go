// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Realtime modes.
const (
	RealtimeModeHub      = "hub"
	RealtimeModePubSub   = "pubsub"
	RealtimeModeDisabled = "disabled"
)

// MinPunchUploadInterval is the shortest allowed punch batch upload period.
const MinPunchUploadInterval = 10 * time.Minute

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateOffice(); err != nil {
		return err
	}

	if err := c.validateRemote(); err != nil {
		return err
	}

	if err := c.validateStores(); err != nil {
		return err
	}

	if err := c.validateClock(); err != nil {
		return err
	}

	if err := c.validateRealtime(); err != nil {
		return err
	}

	if err := c.validateAlerts(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateOffice() error {
	if c.Office.ID <= 0 {
		return fmt.Errorf("OFFICE_ID is required and must be positive")
	}
	if strings.TrimSpace(c.Office.DeviceUUID) == "" {
		return fmt.Errorf("DEVICE_UUID is required")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.DSN == "" {
		return fmt.Errorf("REMOTE_DSN is required")
	}
	if err := validatePostgresDSN(c.Remote.DSN); err != nil {
		return fmt.Errorf("REMOTE_DSN is invalid: %w", err)
	}
	if c.Remote.ProbeTimeout <= 0 {
		return fmt.Errorf("REMOTE_PROBE_TIMEOUT must be positive")
	}
	if c.Remote.QueryTimeout <= 0 {
		return fmt.Errorf("REMOTE_QUERY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateStores() error {
	if c.Offline.Path == "" {
		return fmt.Errorf("OFFLINE_DB_PATH is required")
	}
	if c.Offline.BatchLimit <= 0 {
		return fmt.Errorf("OFFLINE_BATCH_LIMIT must be positive, got %d", c.Offline.BatchLimit)
	}
	if c.Offline.MaxAttempts <= 0 {
		return fmt.Errorf("OFFLINE_MAX_ATTEMPTS must be positive, got %d", c.Offline.MaxAttempts)
	}
	if c.Offline.LockTimeout <= 0 {
		return fmt.Errorf("OFFLINE_LOCK_TIMEOUT must be positive")
	}
	if c.Offline.SyncInterval <= 0 {
		return fmt.Errorf("OFFLINE_SYNC_INTERVAL must be positive")
	}
	if c.Outbox.Path == "" {
		return fmt.Errorf("OUTBOX_PATH is required")
	}
	if c.Outbox.UploadInterval < MinPunchUploadInterval {
		return fmt.Errorf("PUNCH_UPLOAD_INTERVAL must be at least %v, got %v", MinPunchUploadInterval, c.Outbox.UploadInterval)
	}
	if c.Outbox.Separator == "" || strings.Contains(c.Outbox.Separator, "|") {
		return fmt.Errorf("PUNCH_BATCH_SEPARATOR must be non-empty and must not contain '|'")
	}
	if c.Connectivity.Interval <= 0 || c.Connectivity.OfflineInterval <= 0 {
		return fmt.Errorf("connectivity intervals must be positive")
	}
	return nil
}

func (c *Config) validateClock() error {
	if !c.Clock.Enabled {
		return nil
	}
	switch c.Clock.Source {
	case "auto", "os", "poll":
	default:
		return fmt.Errorf("CLOCK_SOURCE must be auto, os or poll, got %q", c.Clock.Source)
	}
	if c.Clock.PollInterval <= 0 {
		return fmt.Errorf("CLOCK_POLL_INTERVAL must be positive")
	}
	if c.Clock.DriftTolerance <= 0 {
		return fmt.Errorf("CLOCK_DRIFT_TOLERANCE must be positive")
	}
	return nil
}

func (c *Config) validateRealtime() error {
	switch c.Realtime.Mode {
	case RealtimeModeDisabled:
		return nil
	case RealtimeModeHub:
		if c.Realtime.Hub.URL == "" {
			return fmt.Errorf("HUB_URL is required when REALTIME_MODE=hub")
		}
		if err := validateHTTPURL(c.Realtime.Hub.URL, "HUB_URL"); err != nil {
			return err
		}
		if c.Realtime.Hub.PunchMethod == "" {
			return fmt.Errorf("HUB_PUNCH_METHOD is required when REALTIME_MODE=hub")
		}
		if c.Realtime.Hub.APISecret == "" {
			return fmt.Errorf("HUB_API_SECRET is required when REALTIME_MODE=hub")
		}
	case RealtimeModePubSub:
		if !c.Realtime.PubSub.EmbeddedBroker {
			if err := validateNATSURL(c.Realtime.PubSub.URL); err != nil {
				return fmt.Errorf("PUBSUB_URL is invalid: %w", err)
			}
		}
		if c.Realtime.PubSub.EventName == "" {
			return fmt.Errorf("PUBSUB_EVENT_NAME is required when REALTIME_MODE=pubsub")
		}
		if key := c.Realtime.PubSub.EncryptionKey; key != "" {
			raw, err := hex.DecodeString(key)
			if err != nil || len(raw) != 32 {
				return fmt.Errorf("PUBSUB_ENCRYPTION_KEY must be 64 hex characters")
			}
		}
	default:
		return fmt.Errorf("REALTIME_MODE must be hub, pubsub or disabled, got %q", c.Realtime.Mode)
	}

	if c.Realtime.Flush.MaxRetries <= 0 {
		return fmt.Errorf("FLUSH_MAX_RETRIES must be positive")
	}
	if c.Realtime.Flush.RetryDelay < 0 {
		return fmt.Errorf("FLUSH_RETRY_DELAY must not be negative")
	}
	return nil
}

func (c *Config) validateAlerts() error {
	if c.Alerts.MaxAttempts <= 0 {
		return fmt.Errorf("ALERTS_MAX_ATTEMPTS must be positive")
	}
	if c.Alerts.RealtimeEnabled && c.Realtime.Mode == RealtimeModeDisabled {
		return fmt.Errorf("ALERTS_REALTIME_ENABLED requires a realtime mode")
	}
	if c.Alerts.Slack.WebhookURL != "" && !strings.HasPrefix(c.Alerts.Slack.WebhookURL, "https://") {
		return fmt.Errorf("SLACK_WEBHOOK_URL must use https")
	}
	// Incomplete SMTP settings are not fatal: the email notifier logs the
	// missing fields and skips delivery.
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("ADMIN_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
