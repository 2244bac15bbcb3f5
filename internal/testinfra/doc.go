// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

// Package testinfra provides shared test infrastructure.
//
// # PostgreSQL Container
//
// Behind the integration build tag, PostgresContainer starts a real
// PostgreSQL instance with the attendance schema and its stored procedures
// installed, so the remote store can be tested against the actual CALL
// contracts:
//
//	func TestRemoteStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg.Container)
//
//	    store, err := remote.Open(ctx, config.RemoteConfig{DSN: pg.DSN})
//	    // ...
//	}
//
// Run with:
//
//	go test -tags integration ./internal/remote/...
//
// Tests are skipped when Docker is not available.
//
// # Webhook Capture
//
// WebhookServer is an httptest server that records every request. It is
// available without build tags and backs the Slack notifier tests.
package testinfra
