// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

//go:build integration

package remote

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/outbox"
	"github.com/tomtom215/checkclock/internal/testinfra"
)

func TestStore_AgainstPostgres(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("NewPostgresContainer() error = %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg.Container)

	store, err := Open(ctx, config.RemoteConfig{DSN: pg.DSN, MaxConns: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if err := store.Probe(ctx); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	prev := time.Now().Add(-2 * time.Hour).UTC()
	diff := int64(7200)
	uptime := int64(86400)
	rec := &models.TimeChangeAuditRecord{
		OfficeID:              4,
		EventDateTime:         time.Now().UTC(),
		PreviousTime:          &prev,
		NewTime:               time.Now().UTC(),
		TimeDifferenceSeconds: &diff,
		MachineName:           "front-desk",
		ProcessName:           "checkclockd",
		ChangeType:            models.ChangeManual,
		IsSuspicious:          true,
		IsSignificantChange:   true,
		SuspicionReason:       "Cambio temporal significativo: 7200 segundos",
		SystemUptime:          &uptime,
		AdditionalData:        "{}",
	}
	if err := store.InsertTimeChange(ctx, rec); err != nil {
		t.Fatalf("InsertTimeChange() direct error = %v", err)
	}

	rec.SyncMetadata = &models.SyncMetadata{
		OriginalTimestamp: prev,
		SyncTimestamp:     time.Now(),
		AttemptCount:      1,
		WasOffline:        true,
	}
	if err := store.InsertTimeChange(ctx, rec); err != nil {
		t.Fatalf("InsertTimeChange() replay error = %v", err)
	}

	n, err := pg.CountRows(ctx, "time_change_log")
	if err != nil || n != 2 {
		t.Fatalf("time_change_log rows = %d, %v; want 2", n, err)
	}

	payload, err := outbox.EncodeBatch(4, []string{"12|1|2026/05/04 09:30:00|2026/05/04 09:29:58"}, "#")
	if err != nil {
		t.Fatalf("EncodeBatch() error = %v", err)
	}
	if err := store.UploadPunchBatch(ctx, 4, payload); err != nil {
		t.Fatalf("UploadPunchBatch() error = %v", err)
	}
	n, err = pg.CountRows(ctx, "punch_batches")
	if err != nil || n != 1 {
		t.Fatalf("punch_batches rows = %d, %v; want 1", n, err)
	}
}
