// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import (
	"context"
	"time"

	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/offline"
	"github.com/tomtom215/checkclock/internal/outbox"
	"github.com/tomtom215/checkclock/internal/realtime"
	"github.com/tomtom215/checkclock/internal/syncengine"
)

// Syncer runs a forced audit sync. Satisfied by *syncengine.Engine.
type Syncer interface {
	ForceSync(ctx context.Context) (models.SyncResult, error)
}

// PunchUploader uploads the punch cache. Satisfied by *syncengine.Uploader.
type PunchUploader interface {
	UploadNow(ctx context.Context) (syncengine.UploadResult, error)
	LastUpload() syncengine.UploadResult
}

// Connectivity reports the cached online state. Satisfied by
// *connectivity.Monitor.
type Connectivity interface {
	Online() bool
	LastChange() time.Time
}

// AuditStats reports offline audit rows. Satisfied by *offline.Store.
type AuditStats interface {
	Stats(ctx context.Context) (offline.Stats, error)
}

// PunchStats reports punch cache counters. Satisfied by *outbox.Outbox.
type PunchStats interface {
	Stats() outbox.Stats
}

// RealtimeStatus is the read side of a realtime channel.
type RealtimeStatus interface {
	Name() string
	State() realtime.State
	IsConnected() bool
}

// AlertQueue reports queued admin alerts. Satisfied by *alerts.Pipeline.
type AlertQueue interface {
	Len() int
}

// Deps holds the components the handlers read from. Nil members are
// reported as unavailable.
type Deps struct {
	Sync         Syncer
	Uploader     PunchUploader
	Punch        PunchRecorder
	Connectivity Connectivity
	Audit        AuditStats
	Punches      PunchStats
	Realtime     RealtimeStatus
	Alerts       AlertQueue

	OfficeID string
	DeviceID string
}

// Handler contains dependencies for API handlers
type Handler struct {
	deps      Deps
	startTime time.Time
}

// NewHandler creates a handler over deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

// pendingCounter is implemented by realtime channels that queue while
// disconnected.
type pendingCounter interface {
	Pending() (punches, alerts int)
}
