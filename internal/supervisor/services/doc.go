// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package services adapts the daemon's components to suture's Serve pattern.

	LoopService           Start/Stop loops: audit sync, punch uploader,
	                      connectivity monitor, punch cache compactor
	ClockMonitorService   clockmonitor.Monitor (Start/Dispose, not restartable)
	RealtimeService       realtime.Channel (Initialize/Close)
	AlertPipelineService  alerts.Pipeline (Close on shutdown)
	HTTPServerService     the admin *http.Server

Every wrapper blocks until its context is canceled, then stops the wrapped
component and returns ctx.Err(). Start failures are returned so the
supervisor restarts the service with backoff.
*/
package services
