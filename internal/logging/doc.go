// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package logging provides the zerolog based global logger for CheckClock.

# Quick Start

	logging.Init(logging.Config{
	    Level:  cfg.Logging.Level,
	    Format: cfg.Logging.Format,
	    Hooks:  []zerolog.LevelWriter{alertWriter},
	})

	logging.Info().Int("pending", n).Msg("Sync pass finished")
	logging.Critical().Err(err).Str("title", "Outbox").Msg("Cannot open punch cache")

# Admin Alerts

Only fatal events become admin alerts. Critical() logs at fatal level
without exiting, and AlertWriter, installed as a hook, rebuilds an
AdminErrorAlert from the JSON event and hands it to an AlertSink (the alert
pipeline). A "title" field becomes the alert title; every other field except
level, time, message and error goes into the alert context.

# Context

ContextWithPassID tags every log line of one background pass:

	ctx = logging.ContextWithPassID(ctx)
	logging.Ctx(ctx).Debug().Msg("Fetching pending rows")

# slog

NewSlogLogger adapts the global logger for libraries that take *slog.Logger,
such as sutureslog.
*/
package logging
