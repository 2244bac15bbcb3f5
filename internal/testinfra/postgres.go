// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultPostgresImage = "postgres:16-alpine"
	postgresDatabase     = "attendance"
	postgresUser         = "checkclock"
	postgresPassword     = "checkclock"
)

// AttendanceSchema mirrors the remote contracts: one audit table, one punch
// batch table and the two procedures the device calls.
const AttendanceSchema = `
CREATE SCHEMA IF NOT EXISTS attendance;

CREATE TABLE attendance.time_change_log (
	id BIGSERIAL PRIMARY KEY,
	office_id INT NOT NULL,
	event_date_time TIMESTAMPTZ NOT NULL,
	previous_time TIMESTAMPTZ,
	new_time TIMESTAMPTZ NOT NULL,
	time_difference_seconds BIGINT,
	machine_name TEXT,
	user_name TEXT,
	process_name TEXT,
	application_state TEXT,
	ntp_server_used TEXT,
	is_ntp_synchronization BOOLEAN,
	is_significant_change BOOLEAN,
	is_suspicious BOOLEAN,
	change_type TEXT,
	suspicion_reason TEXT,
	time_zone_id TEXT,
	is_daylight_saving BOOLEAN,
	network_connected BOOLEAN,
	ntp_sync_enabled BOOLEAN,
	system_uptime BIGINT,
	last_boot_time TIMESTAMPTZ,
	additional_data TEXT,
	original_timestamp TIMESTAMPTZ,
	sync_timestamp TIMESTAMPTZ,
	was_offline_sync BOOLEAN,
	sync_attempt_count INT
);

CREATE TABLE attendance.punch_batches (
	id BIGSERIAL PRIMARY KEY,
	office_id INT NOT NULL,
	payload TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE PROCEDURE attendance.sp_insert_time_change_log(
	INT, TIMESTAMPTZ, TIMESTAMPTZ, TIMESTAMPTZ, BIGINT,
	TEXT, TEXT, TEXT, TEXT, TEXT,
	BOOLEAN, BOOLEAN, BOOLEAN, TEXT, TEXT,
	TEXT, BOOLEAN, BOOLEAN, BOOLEAN, BIGINT,
	TIMESTAMPTZ, TEXT, TIMESTAMPTZ, TIMESTAMPTZ, BOOLEAN,
	INT)
LANGUAGE sql
AS $$
	INSERT INTO attendance.time_change_log (
		office_id, event_date_time, previous_time, new_time, time_difference_seconds,
		machine_name, user_name, process_name, application_state, ntp_server_used,
		is_ntp_synchronization, is_significant_change, is_suspicious, change_type, suspicion_reason,
		time_zone_id, is_daylight_saving, network_connected, ntp_sync_enabled, system_uptime,
		last_boot_time, additional_data, original_timestamp, sync_timestamp, was_offline_sync,
		sync_attempt_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26);
$$;

CREATE PROCEDURE attendance.sp_upload_punches(INT, TEXT)
LANGUAGE sql
AS $$
	INSERT INTO attendance.punch_batches (office_id, payload) VALUES ($1, $2);
$$;
`

// PostgresContainer is a running PostgreSQL with AttendanceSchema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
}

// PostgresOption configures NewPostgresContainer.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	image        string
	startTimeout time.Duration
}

// WithPostgresImage overrides the image.
func WithPostgresImage(image string) PostgresOption {
	return func(c *postgresConfig) {
		c.image = image
	}
}

// WithStartTimeout sets the readiness timeout.
func WithStartTimeout(timeout time.Duration) PostgresOption {
	return func(c *postgresConfig) {
		c.startTimeout = timeout
	}
}

// NewPostgresContainer starts PostgreSQL and installs the attendance schema.
func NewPostgresContainer(ctx context.Context, opts ...PostgresOption) (*PostgresContainer, error) {
	cfg := &postgresConfig{
		image:        DefaultPostgresImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	container, err := tcpostgres.Run(ctx, cfg.image,
		tcpostgres.WithDatabase(postgresDatabase),
		tcpostgres.WithUsername(postgresUser),
		tcpostgres.WithPassword(postgresPassword),
		testcontainers.WithWaitStrategyAndDeadline(cfg.startTimeout,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	if err := applySchema(ctx, dsn); err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, err
	}

	return &PostgresContainer{Container: container, DSN: dsn}, nil
}

func applySchema(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect for schema: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, AttendanceSchema); err != nil {
		return fmt.Errorf("apply attendance schema: %w", err)
	}
	return nil
}

// CountRows returns the row count of an attendance table.
func (p *PostgresContainer) CountRows(ctx context.Context, table string) (int64, error) {
	conn, err := pgx.Connect(ctx, p.DSN)
	if err != nil {
		return 0, err
	}
	defer conn.Close(ctx)

	var n int64
	err = conn.QueryRow(ctx, "SELECT count(*) FROM attendance."+pgx.Identifier{table}.Sanitize()).Scan(&n)
	return n, err
}
