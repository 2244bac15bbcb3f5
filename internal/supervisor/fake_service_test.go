// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// fakeService fails its first failures runs, then blocks until canceled.
type fakeService struct {
	name       string
	failures   int32
	startCount atomic.Int32
	stopCount  atomic.Int32
}

func (f *fakeService) Serve(ctx context.Context) error {
	n := f.startCount.Add(1)
	defer f.stopCount.Add(1)
	if n <= f.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeService) String() string { return f.name }
