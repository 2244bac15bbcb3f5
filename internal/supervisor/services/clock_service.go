// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/checkclock/internal/clockmonitor"
)

// ClockMonitor is the lifecycle of *clockmonitor.Monitor.
type ClockMonitor interface {
	Start(ctx context.Context) error
	Dispose()
}

// ClockMonitorService runs the clock change monitor. A disposed monitor
// cannot be restarted, so the service asks suture not to restart it once
// it has been disposed.
type ClockMonitorService struct {
	monitor ClockMonitor
}

// NewClockMonitorService wraps monitor.
func NewClockMonitorService(monitor ClockMonitor) *ClockMonitorService {
	return &ClockMonitorService{monitor: monitor}
}

// Serve implements suture.Service.
func (s *ClockMonitorService) Serve(ctx context.Context) error {
	if err := s.monitor.Start(ctx); err != nil {
		if errors.Is(err, clockmonitor.ErrDisposed) {
			return suture.ErrDoNotRestart
		}
		return fmt.Errorf("clock monitor start failed: %w", err)
	}

	<-ctx.Done()

	// Dispose waits for records that are still being enriched.
	s.monitor.Dispose()
	return ctx.Err()
}

func (s *ClockMonitorService) String() string { return "clock-monitor" }
