// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package services

import (
	"context"
	"fmt"
)

// StartStopper is the lifecycle of the periodic loops: the audit sync
// engine, the punch uploader, the connectivity monitor and the compactor.
// Start spawns the loop and returns; Stop blocks until it has exited.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// LoopService adapts a StartStopper to suture's Serve pattern.
type LoopService struct {
	loop StartStopper
	name string
}

// NewLoopService wraps loop under the given service name.
func NewLoopService(name string, loop StartStopper) *LoopService {
	return &LoopService{loop: loop, name: name}
}

// Serve implements suture.Service. A failed Start is returned so suture
// restarts the service with backoff.
func (s *LoopService) Serve(ctx context.Context) error {
	if err := s.loop.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	// Stop waits for an in-flight pass to finish.
	s.loop.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logs.
func (s *LoopService) String() string {
	return s.name
}
