// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package middleware provides the HTTP middleware used by the admin surface.

  - RequestID: tags each request with an X-Request-ID, reusing an upstream
    value when present, and stores it in the logging context so
    logging.Ctx(r.Context()) lines carry request_id.
  - PrometheusMetrics: records request count and latency per method, route
    pattern and status through metrics.RecordAPIRequest.

Both have the chi signature func(http.Handler) http.Handler:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Routes are labelled with the chi route pattern rather than the raw path so
the label set stays bounded.
*/
package middleware
