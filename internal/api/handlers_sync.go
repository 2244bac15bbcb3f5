// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/models"
	"github.com/tomtom215/checkclock/internal/syncengine"
)

// ForceSyncResponse carries the operator summary and the raw counts.
type ForceSyncResponse struct {
	Summary string            `json:"summary"`
	Result  models.SyncResult `json:"result"`
}

// ForceSync runs one audit sync pass on demand.
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Sync == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, ErrSyncUnavailable.Error())
		return
	}

	result, err := h.deps.Sync.ForceSync(r.Context())
	if err != nil {
		rw.InternalError("Forced sync failed", err)
		return
	}

	summary := syncengine.Summary(result)
	logging.Ctx(r.Context()).Info().
		Int("initial", result.InitialPending).
		Int("remaining", result.RemainingPending).
		Msg(summary)
	rw.Success(ForceSyncResponse{Summary: summary, Result: result})
}

// UploadPunches uploads the punch cache as one batch on demand.
func (h *Handler) UploadPunches(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Uploader == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, ErrUploadUnavailable.Error())
		return
	}

	result, err := h.deps.Uploader.UploadNow(r.Context())
	switch {
	case errors.Is(err, syncengine.ErrOffline):
		rw.Error(http.StatusServiceUnavailable, ErrCodeOffline, "Remote store unreachable, punches stay cached")
		return
	case err != nil:
		rw.InternalError("Punch upload failed", err)
		return
	}
	rw.Success(result)
}
