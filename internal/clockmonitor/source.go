// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package clockmonitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
)

// Source names accepted in ClockConfig.Source.
const (
	SourceAuto = "auto"
	SourceOS   = "os"
	SourcePoll = "poll"
)

// ChangeKind distinguishes wall clock jumps from timezone changes.
type ChangeKind int

const (
	KindClockSet ChangeKind = iota
	KindTimezone
)

func (k ChangeKind) String() string {
	if k == KindTimezone {
		return "TIMEZONE_CHANGED"
	}
	return "TIME_CHANGED"
}

// Signal is a raw notification from a source. The monitor derives the
// previous and new times itself.
type Signal struct {
	Kind ChangeKind
	At   time.Time

	// Detail carries source specific context such as the changed file.
	Detail string
}

// Source emits signals until ctx is done.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- Signal) error
}

// ErrNoOSHook is returned where the platform has no clock-set notification.
var ErrNoOSHook = errors.New("no OS clock-change hook on this platform")

// NewSource builds the source selected by cfg.Source. auto prefers the OS
// hook and falls back to polling.
func NewSource(cfg config.ClockConfig) (Source, error) {
	switch cfg.Source {
	case SourcePoll:
		return NewPollSource(cfg.PollInterval, cfg.DriftTolerance), nil
	case SourceOS:
		return newOSSource()
	case SourceAuto, "":
		src, err := newOSSource()
		if err == nil {
			return src, nil
		}
		logging.Info().Err(err).Msg("OS clock hook unavailable, polling for clock changes")
		return NewPollSource(cfg.PollInterval, cfg.DriftTolerance), nil
	default:
		return nil, fmt.Errorf("unknown clock source %q", cfg.Source)
	}
}
