// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package clockmonitor

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultDriftTolerance = 2 * time.Second
)

// PollSource detects clock jumps by comparing wall clock progress with
// monotonic progress between ticks.
type PollSource struct {
	interval  time.Duration
	tolerance time.Duration
}

// NewPollSource creates a polling source. Zero values use the defaults.
func NewPollSource(interval, tolerance time.Duration) *PollSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if tolerance <= 0 {
		tolerance = DefaultDriftTolerance
	}
	return &PollSource{interval: interval, tolerance: tolerance}
}

// Name implements Source.
func (p *PollSource) Name() string { return "poll" }

// Run implements Source.
func (p *PollSource) Run(ctx context.Context, out chan<- Signal) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now()
			mono := now.Sub(last)
			wall := now.Round(0).Sub(last.Round(0))
			if skew, jumped := p.skewed(wall, mono); jumped {
				sig := Signal{Kind: KindClockSet, At: now, Detail: fmt.Sprintf("wall clock skew %s", skew)}
				select {
				case out <- sig:
				case <-ctx.Done():
					return nil
				}
			}
			last = now
		}
	}
}

// skewed compares the wall clock delta with the monotonic delta.
func (p *PollSource) skewed(wall, mono time.Duration) (time.Duration, bool) {
	skew := wall - mono
	if skew < 0 {
		return skew, -skew > p.tolerance
	}
	return skew, skew > p.tolerance
}
