// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package connectivity

import (
	"context"
	"slices"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/tomtom215/checkclock/internal/logging"
)

// DefaultProbeTimeout bounds one remote probe.
const DefaultProbeTimeout = 5 * time.Second

// RemoteProber runs a trivial query against the remote store.
type RemoteProber interface {
	Probe(ctx context.Context) error
}

// InterfaceCheck reports whether any usable network interface is up.
type InterfaceCheck func(ctx context.Context) (bool, error)

// Prober combines the interface check with the remote probe.
type Prober struct {
	remote  RemoteProber
	ifaces  InterfaceCheck
	timeout time.Duration
}

// NewProber returns a prober using the host interface table.
func NewProber(remote RemoteProber, timeout time.Duration) *Prober {
	return NewProberWithCheck(remote, AnyInterfaceUp, timeout)
}

// NewProberWithCheck is NewProber with a custom interface check.
func NewProberWithCheck(remote RemoteProber, check InterfaceCheck, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{remote: remote, ifaces: check, timeout: timeout}
}

// IsOnline is true iff an interface is up and the remote probe succeeds.
// Failures are logged at debug level and reported as offline.
func (p *Prober) IsOnline(ctx context.Context) bool {
	up, err := p.ifaces(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("Interface check failed")
		return false
	}
	if !up {
		return false
	}
	if p.remote == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.remote.Probe(probeCtx); err != nil {
		logging.Debug().Err(err).Msg("Remote probe failed")
		return false
	}
	return true
}

// AnyInterfaceUp reports whether a non-loopback interface has the up flag.
func AnyInterfaceUp(ctx context.Context) (bool, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return false, err
	}
	return interfacesUp(ifaces), nil
}

func interfacesUp(ifaces psnet.InterfaceStatList) bool {
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		if slices.Contains(iface.Flags, "up") {
			return true
		}
	}
	return false
}
