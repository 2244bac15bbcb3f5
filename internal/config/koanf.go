// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/checkclock/config.yaml",
	"/etc/checkclock/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Office: OfficeConfig{
			ID:         0,
			Name:       "",
			DeviceUUID: "",
		},
		Remote: RemoteConfig{
			DSN:          "",
			ProbeTimeout: 5 * time.Second,
			QueryTimeout: 15 * time.Second,
			MaxConns:     4,
		},
		Offline: OfflineConfig{
			Path:         "/var/lib/checkclock/offline.duckdb",
			BatchLimit:   100,
			MaxAttempts:  5,
			Cooldown:     time.Hour,
			Retention:    30 * 24 * time.Hour,
			LockTimeout:  time.Second,
			SyncInterval: 5 * time.Minute,
		},
		Outbox: OutboxConfig{
			Path:            "/var/lib/checkclock/outbox",
			SyncWrites:      true,
			UploadInterval:  10 * time.Minute,
			CompactInterval: time.Hour,
			Separator:       "#",
		},
		Connectivity: ConnectivityConfig{
			Interval:        30 * time.Second,
			OfflineInterval: 5 * time.Second,
		},
		Clock: ClockConfig{
			Enabled:        true,
			Source:         "auto",
			PollInterval:   2 * time.Second,
			DriftTolerance: 2 * time.Second,
			ZoneInfoDir:    "/etc",
			EnrichTimeout:  10 * time.Second,
		},
		Punch: PunchConfig{
			DuplicateWindow: time.Minute,
			MaxShift:        16 * time.Hour,
		},
		Realtime: RealtimeConfig{
			Mode: "hub",
			Hub: HubConfig{
				URL:           "",
				HubName:       "checkclockhub",
				PunchMethod:   "SendPunch",
				AdminMethod:   "",
				ClientTimeout: 60 * time.Second,
			},
			PubSub: PubSubConfig{
				URL:            "nats://127.0.0.1:4222",
				EventName:      "notice",
				AdminChannel:   "checkclock-admin",
				EmbeddedBroker: false,
				BrokerHost:     "127.0.0.1",
				BrokerPort:     4222,
				ClientTimeout:  120 * time.Second,
				NoticeDelay:    200 * time.Millisecond,
			},
			Flush: FlushConfig{
				MaxRetries: 3,
				RetryDelay: 5 * time.Second,
			},
		},
		Alerts: AlertsConfig{
			MaxAttempts:     3,
			RetryDelay:      5 * time.Second,
			RealtimeEnabled: false,
			Email: EmailConfig{
				Enabled: false,
				Port:    587,
				UseTLS:  true,
			},
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            9477,
			Timeout:         30 * time.Second,
			RateLimitReqs:   6,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"alerts.email.recipients",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"office_id":   "office.id",
	"office_name": "office.name",
	"device_uuid": "office.device_uuid",

	"remote_dsn":           "remote.dsn",
	"remote_probe_timeout": "remote.probe_timeout",
	"remote_query_timeout": "remote.query_timeout",
	"remote_max_conns":     "remote.max_conns",

	"offline_db_path":       "offline.path",
	"offline_batch_limit":   "offline.batch_limit",
	"offline_max_attempts":  "offline.max_attempts",
	"offline_cooldown":      "offline.cooldown",
	"offline_retention":     "offline.retention",
	"offline_lock_timeout":  "offline.lock_timeout",
	"offline_sync_interval": "offline.sync_interval",

	"outbox_path":             "outbox.path",
	"outbox_sync_writes":      "outbox.sync_writes",
	"punch_upload_interval":   "outbox.upload_interval",
	"outbox_compact_interval": "outbox.compact_interval",
	"punch_batch_separator":   "outbox.separator",

	"connectivity_interval":         "connectivity.interval",
	"connectivity_offline_interval": "connectivity.offline_interval",

	"clock_monitor_enabled":  "clock.enabled",
	"clock_source":           "clock.source",
	"clock_poll_interval":    "clock.poll_interval",
	"clock_drift_tolerance":  "clock.drift_tolerance",
	"clock_zoneinfo_dir":     "clock.zoneinfo_dir",
	"clock_enrich_timeout":   "clock.enrich_timeout",
	"punch_duplicate_window": "punch.duplicate_window",
	"punch_max_shift":        "punch.max_shift",

	"realtime_mode":          "realtime.mode",
	"hub_url":                "realtime.hub.url",
	"hub_name":               "realtime.hub.hub_name",
	"hub_punch_method":       "realtime.hub.punch_method",
	"hub_admin_method":       "realtime.hub.admin_method",
	"hub_api_secret":         "realtime.hub.api_secret",
	"hub_client_timeout":     "realtime.hub.client_timeout",
	"pubsub_url":             "realtime.pubsub.url",
	"pubsub_event_name":      "realtime.pubsub.event_name",
	"pubsub_admin_channel":   "realtime.pubsub.admin_channel",
	"pubsub_embedded_broker": "realtime.pubsub.embedded_broker",
	"pubsub_broker_host":     "realtime.pubsub.broker_host",
	"pubsub_broker_port":     "realtime.pubsub.broker_port",
	"pubsub_encryption_key":  "realtime.pubsub.encryption_key",
	"pubsub_client_timeout":  "realtime.pubsub.client_timeout",
	"pubsub_notice_delay":    "realtime.pubsub.notice_delay",
	"flush_max_retries":      "realtime.flush.max_retries",
	"flush_retry_delay":      "realtime.flush.retry_delay",

	"alerts_max_attempts":     "alerts.max_attempts",
	"alerts_retry_delay":      "alerts.retry_delay",
	"alerts_realtime_enabled": "alerts.realtime_enabled",
	"smtp_enabled":            "alerts.email.enabled",
	"smtp_host":               "alerts.email.host",
	"smtp_port":               "alerts.email.port",
	"smtp_user":               "alerts.email.user",
	"smtp_password":           "alerts.email.password",
	"smtp_from":               "alerts.email.from",
	"smtp_recipients":         "alerts.email.recipients",
	"smtp_use_tls":            "alerts.email.use_tls",
	"slack_webhook_url":       "alerts.slack.webhook_url",
	"slack_channel":           "alerts.slack.channel",

	"admin_server_enabled":    "server.enabled",
	"admin_server_host":       "server.host",
	"admin_server_port":       "server.port",
	"admin_server_timeout":    "server.timeout",
	"admin_rate_limit_reqs":   "server.rate_limit_reqs",
	"admin_rate_limit_window": "server.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - OFFICE_ID -> office.id
//   - HUB_URL -> realtime.hub.url
//   - SMTP_RECIPIENTS -> alerts.email.recipients
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// do not pollute the config.
	return ""
}
