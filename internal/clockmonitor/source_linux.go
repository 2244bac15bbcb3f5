// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

//go:build linux

package clockmonitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// tfdTimerCancelOnSet makes a CLOCK_REALTIME timerfd read fail with
// ECANCELED when the clock is set discontinuously.
const tfdTimerCancelOnSet = 0x2

const pollTimeoutMillis = 1000

// timerfdSource arms an absolute timer far in the future and waits for the
// kernel to cancel it on clock_settime.
type timerfdSource struct {
	fd int
}

func newOSSource() (Source, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_REALTIME, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("timerfd_create: %w", err)
	}
	s := &timerfdSource{fd: fd}
	if err := s.arm(); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func (s *timerfdSource) Name() string { return "timerfd" }

func (s *timerfdSource) arm() error {
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(time.Now().AddDate(10, 0, 0).UnixNano()),
	}
	if err := unix.TimerfdSettime(s.fd, unix.TFD_TIMER_ABSTIME|tfdTimerCancelOnSet, &spec, nil); err != nil {
		return fmt.Errorf("timerfd_settime: %w", err)
	}
	return nil
}

// Run implements Source. The fd is closed when Run returns.
func (s *timerfdSource) Run(ctx context.Context, out chan<- Signal) error {
	defer unix.Close(s.fd)

	buf := make([]byte, 8)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.Poll(fds, pollTimeoutMillis)
		if errors.Is(err, unix.EINTR) || n == 0 {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll timerfd: %w", err)
		}

		_, err = unix.Read(s.fd, buf)
		switch {
		case errors.Is(err, unix.ECANCELED):
			if err := s.arm(); err != nil {
				return err
			}
			select {
			case out <- Signal{Kind: KindClockSet, At: time.Now(), Detail: "timerfd cancel on set"}:
			case <-ctx.Done():
				return nil
			}
		case errors.Is(err, unix.EAGAIN):
		case err != nil:
			return fmt.Errorf("read timerfd: %w", err)
		default:
			// The far-future timer expired; re-arm.
			if err := s.arm(); err != nil {
				return err
			}
		}
	}
}
