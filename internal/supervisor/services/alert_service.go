// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package services

import "context"

// AlertQueue is the shutdown side of *alerts.Pipeline.
type AlertQueue interface {
	Close()
}

// AlertPipelineService owns the alert pipeline's lifetime. The pipeline
// processes on its own goroutine; the service only closes it on shutdown.
type AlertPipelineService struct {
	queue AlertQueue
}

// NewAlertPipelineService wraps queue.
func NewAlertPipelineService(queue AlertQueue) *AlertPipelineService {
	return &AlertPipelineService{queue: queue}
}

// Serve implements suture.Service.
func (s *AlertPipelineService) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.queue.Close()
	return ctx.Err()
}

func (s *AlertPipelineService) String() string { return "alert-pipeline" }
