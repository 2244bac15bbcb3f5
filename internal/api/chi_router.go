// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/middleware"
)

// NewRouter configures the admin routes on a chi router.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(rateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/healthz", h.Healthz)
		r.Get("/status", h.Status)
	})

	// Sync and upload hit the remote store; keep them on the strict limit.
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(RateLimitFromConfig(cfg)))
		r.Use(APISecurityHeaders())
		r.Post("/sync/force", h.ForceSync)
		r.Post("/punches/upload", h.UploadPunches)
	})

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(rateLimitPunch))
		r.Use(APISecurityHeaders())
		r.Post("/punches", h.RecordPunch)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
