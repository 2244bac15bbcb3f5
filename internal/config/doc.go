// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package config provides configuration management for the CheckClock daemon.

Configuration is loaded with Koanf v2 from three layers, highest priority last:
built-in defaults, an optional YAML file (CONFIG_PATH or ./config.yaml,
/etc/checkclock/config.yaml) and mapped environment variables.

# Environment Variables

Identity:
  - OFFICE_ID: Numeric office id (required)
  - OFFICE_NAME: Office display name
  - DEVICE_UUID: Device identifier (required)

Remote store:
  - REMOTE_DSN: PostgreSQL URL (required)
  - REMOTE_PROBE_TIMEOUT: Connectivity probe timeout (default: 5s)

Offline audit store (DuckDB):
  - OFFLINE_DB_PATH: Database file (default: /var/lib/checkclock/offline.duckdb)
  - OFFLINE_BATCH_LIMIT: Rows per sync pass (default: 100)
  - OFFLINE_MAX_ATTEMPTS: Attempts before cool-down (default: 5)
  - OFFLINE_COOLDOWN: Cool-down before retrying exhausted rows (default: 1h)
  - OFFLINE_RETENTION: Retention for synced rows (default: 720h)

Punch outbox (BadgerDB):
  - OUTBOX_PATH: Directory (default: /var/lib/checkclock/outbox)
  - PUNCH_UPLOAD_INTERVAL: Batch upload period, minimum 10m (default: 10m)

Realtime:
  - REALTIME_MODE: hub, pubsub or disabled (default: hub)
  - HUB_URL, HUB_NAME, HUB_PUNCH_METHOD, HUB_ADMIN_METHOD, HUB_API_SECRET
  - PUBSUB_URL, PUBSUB_EVENT_NAME, PUBSUB_EMBEDDED_BROKER, PUBSUB_ENCRYPTION_KEY
  - FLUSH_MAX_RETRIES (default: 3), FLUSH_RETRY_DELAY (default: 5s)

Admin alerts:
  - ALERTS_MAX_ATTEMPTS (default: 3), ALERTS_RETRY_DELAY (default: 5s)
  - SMTP_ENABLED, SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASSWORD, SMTP_FROM, SMTP_RECIPIENTS
  - SLACK_WEBHOOK_URL

Logging:
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	store, err := offline.Open(ctx, cfg.Offline)
*/
package config
