// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/tomtom215/checkclock/internal/config"
)

// RateLimitConfig defines rate limit parameters for a route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Disabled bool
}

// Health endpoints allow frequent monitoring checks.
var rateLimitHealth = RateLimitConfig{Requests: 600, Window: time.Minute}

// Punch recording follows the pace of a terminal queue.
var rateLimitPunch = RateLimitConfig{Requests: 120, Window: time.Minute}

// RateLimitFromConfig builds the limit for sync and upload routes.
func RateLimitFromConfig(cfg config.ServerConfig) RateLimitConfig {
	return RateLimitConfig{
		Requests: cfg.RateLimitReqs,
		Window:   cfg.RateLimitWindow,
		Disabled: cfg.RateLimitReqs <= 0 || cfg.RateLimitWindow <= 0,
	}
}

// RateLimit returns an IP keyed httprate limiter, or a no-op when disabled.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Disabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many requests, retry later")
		}),
	)
}

// APISecurityHeaders marks admin responses as non-cacheable and
// non-embeddable.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
