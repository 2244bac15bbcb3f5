// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/checkclock/internal/offline"
	"github.com/tomtom215/checkclock/internal/outbox"
	"github.com/tomtom215/checkclock/internal/syncengine"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Alive         bool    `json:"alive"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	OfficeID string `json:"office_id"`
	DeviceID string `json:"device_id"`

	Online        bool       `json:"online"`
	OnlineSince   *time.Time `json:"online_changed_at,omitempty"`
	UptimeSeconds float64    `json:"uptime_seconds"`

	Audit        *offline.Stats           `json:"audit,omitempty"`
	AuditError   string                   `json:"audit_error,omitempty"`
	Punches      *outbox.Stats            `json:"punches,omitempty"`
	LastUpload   *syncengine.UploadResult `json:"last_upload,omitempty"`
	Realtime     *RealtimeState           `json:"realtime,omitempty"`
	AlertsQueued int                      `json:"alerts_queued"`
}

// RealtimeState describes the active realtime channel.
type RealtimeState struct {
	Channel        string `json:"channel"`
	State          string `json:"state"`
	Connected      bool   `json:"connected"`
	PendingPunches int    `json:"pending_punches"`
	PendingAlerts  int    `json:"pending_alerts"`
}

// Healthz handles liveness probes.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthResponse{
		Alive:         true,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// Status reports connectivity, pending work and realtime state. A failing
// audit store is reported in the payload rather than failing the request.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		OfficeID:      h.deps.OfficeID,
		DeviceID:      h.deps.DeviceID,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if c := h.deps.Connectivity; c != nil {
		resp.Online = c.Online()
		if changed := c.LastChange(); !changed.IsZero() {
			resp.OnlineSince = &changed
		}
	}

	if a := h.deps.Audit; a != nil {
		st, err := a.Stats(r.Context())
		if err != nil {
			resp.AuditError = err.Error()
		} else {
			resp.Audit = &st
		}
	}

	if p := h.deps.Punches; p != nil {
		st := p.Stats()
		resp.Punches = &st
	}
	if u := h.deps.Uploader; u != nil {
		if last := u.LastUpload(); !last.At.IsZero() {
			resp.LastUpload = &last
		}
	}

	if rt := h.deps.Realtime; rt != nil {
		state := &RealtimeState{
			Channel:   rt.Name(),
			State:     rt.State().String(),
			Connected: rt.IsConnected(),
		}
		if pc, ok := rt.(pendingCounter); ok {
			state.PendingPunches, state.PendingAlerts = pc.Pending()
		}
		resp.Realtime = state
	}

	if q := h.deps.Alerts; q != nil {
		resp.AlertsQueued = q.Len()
	}

	NewResponseWriter(w, r).Success(resp)
}
