// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/checkclock/internal/logging"
)

// RealtimeChannel is the lifecycle of a realtime.Channel.
type RealtimeChannel interface {
	Name() string
	Initialize(ctx context.Context) error
	Close() error
}

// RealtimeService connects the realtime channel and closes it on shutdown.
//
// Once connected the channel reconnects on its own. A failed initial
// connect is returned so suture retries it with backoff; sends made in the
// meantime are queued by the channel.
type RealtimeService struct {
	channel RealtimeChannel
}

// NewRealtimeService wraps channel.
func NewRealtimeService(channel RealtimeChannel) *RealtimeService {
	return &RealtimeService{channel: channel}
}

// Serve implements suture.Service.
func (s *RealtimeService) Serve(ctx context.Context) error {
	if err := s.channel.Initialize(ctx); err != nil {
		return fmt.Errorf("realtime %s initialize failed: %w", s.channel.Name(), err)
	}

	<-ctx.Done()

	if err := s.channel.Close(); err != nil {
		logging.Warn().Err(err).Str("channel", s.channel.Name()).Msg("Realtime channel close failed")
	}
	return ctx.Err()
}

func (s *RealtimeService) String() string {
	return "realtime-" + s.channel.Name()
}
