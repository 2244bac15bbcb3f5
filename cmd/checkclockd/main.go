// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

// Package main is the entry point of the CheckClock device daemon.
//
// The daemon runs on an office attendance terminal. It records punches into
// a local Badger cache, watches the system clock for changes, keeps every
// audit record in a local DuckDB file until the remote PostgreSQL store
// accepts it, and forwards punches and admin alerts over a realtime channel.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Local stores: DuckDB audit store, Badger punch cache
//  3. Remote store (pgx pool behind a circuit breaker) and connectivity prober
//  4. Realtime channel (hub with device auth, pub/sub, or disabled)
//  5. Admin alert pipeline, hooked into the logger at fatal level
//  6. Sync engine, punch uploader, clock monitor, punch recorder
//  7. Admin HTTP server (optional)
//
// Everything long-lived runs under the supervisor tree. SIGINT and SIGTERM
// cancel the tree; each service stops its component before the stores are
// closed.
//
// # Configuration
//
//	OFFICE_ID=12 DEVICE_UUID=... REMOTE_DSN=postgres://... ./checkclockd
//
// See internal/config for the full list of variables.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/checkclock/internal/alerts"
	"github.com/tomtom215/checkclock/internal/api"
	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/connectivity"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/offline"
	"github.com/tomtom215/checkclock/internal/outbox"
	"github.com/tomtom215/checkclock/internal/punch"
	"github.com/tomtom215/checkclock/internal/remote"
	"github.com/tomtom215/checkclock/internal/supervisor"
	"github.com/tomtom215/checkclock/internal/supervisor/services"
	"github.com/tomtom215/checkclock/internal/syncengine"
)

//nolint:gocyclo // sequential wiring
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	}
	logging.Init(logCfg)

	logging.Info().
		Int("office_id", cfg.Office.ID).
		Str("device_id", cfg.Office.DeviceID()).
		Str("realtime", cfg.Realtime.Mode).
		Msg("Starting CheckClock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Local stores ===

	auditStore, err := offline.Open(ctx, cfg.Offline)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Offline.Path).Msg("Failed to open offline audit store")
	}
	defer func() {
		if err := auditStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing offline audit store")
		}
	}()

	punches, err := outbox.Open(cfg.Outbox)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Outbox.Path).Msg("Failed to open punch cache")
	}
	defer func() {
		if err := punches.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing punch cache")
		}
	}()

	// === Remote store and connectivity ===

	remoteStore, err := remote.Open(ctx, cfg.Remote)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure remote store")
	}
	defer remoteStore.Close()

	prober := connectivity.NewProber(remoteStore, cfg.Remote.ProbeTimeout)
	monitor := connectivity.NewMonitor(prober, cfg.Connectivity)

	// === Realtime channel and alerts ===

	channel, err := newRealtimeChannel(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure realtime channel")
	}

	pipeline := alerts.NewPipeline(cfg.Alerts, alerts.Notifiers(cfg.Alerts, cfg.Office, channel)...)

	// Reinitialize so fatal events reach the pipeline while online.
	logCfg.Hooks = append(logCfg.Hooks,
		logging.NewAlertWriter(pipeline, cfg.Office.OfficeKey(), cfg.Office.DeviceID(), monitor.Online))
	logging.Init(logCfg)

	// === Sync ===

	engine := syncengine.NewEngine(auditStore, remoteStore, prober, cfg.Offline.SyncInterval)
	uploader := syncengine.NewUploader(punches, remoteStore, prober, cfg.Office.ID, cfg.Outbox.Separator, cfg.Outbox.UploadInterval)
	monitor.OnOnline = engine.OnOnline

	clockMonitor, err := newClockMonitor(cfg, engine)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure clock monitor")
	}

	recorder, err := punch.NewRecorder(ctx, punch.NewClock(), punches, channel, cfg.Office.ID, cfg.Punch)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load pending punches")
	}

	// === Supervisor tree ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddStorageService(services.NewLoopService("punch-compactor", outbox.NewCompactor(punches, cfg.Outbox.CompactInterval)))

	tree.AddSyncService(services.NewLoopService("connectivity", monitor))
	tree.AddSyncService(services.NewLoopService("audit-sync", engine))
	tree.AddSyncService(services.NewLoopService("punch-uploader", uploader))
	if clockMonitor != nil {
		tree.AddSyncService(services.NewClockMonitorService(clockMonitor))
	}

	tree.AddMessagingService(services.NewRealtimeService(channel))
	tree.AddMessagingService(services.NewAlertPipelineService(pipeline))

	if cfg.Server.Enabled {
		handler := api.NewHandler(api.Deps{
			Sync:         engine,
			Uploader:     uploader,
			Punch:        recorder,
			Connectivity: monitor,
			Audit:        auditStore,
			Punches:      punches,
			Realtime:     channel,
			Alerts:       pipeline,
			OfficeID:     cfg.Office.OfficeKey(),
			DeviceID:     cfg.Office.DeviceID(),
		})
		server := api.NewServer(cfg.Server, api.NewRouter(handler, cfg.Server))
		tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
		logging.Info().Str("addr", server.Addr).Msg("Admin HTTP server enabled")
	}

	// === Run ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("CheckClock stopped")
}
