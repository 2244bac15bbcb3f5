// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// passIDKey tags every log line of one sync, flush or upload pass.
	passIDKey contextKey = "pass_id"

	// requestIDKey is the context key for admin HTTP request IDs.
	requestIDKey contextKey = "request_id"
)

// GeneratePassID returns a short id for one background pass.
func GeneratePassID() string {
	return uuid.New().String()[:8]
}

// ContextWithPassID returns a context carrying a new pass id.
//
//	ctx = logging.ContextWithPassID(ctx)
//	logging.Ctx(ctx).Info().Msg("Sync pass started")
func ContextWithPassID(ctx context.Context) context.Context {
	return context.WithValue(ctx, passIDKey, GeneratePassID())
}

// PassIDFromContext returns the pass id or "".
func PassIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(passIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger with pass_id and request_id added when present.
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := With()
	if id := PassIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("pass_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	l := logCtx.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
//
//	monitorLog := logging.WithComponent("clockmonitor")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
