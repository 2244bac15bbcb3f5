// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
)

const defaultWriteTimeout = 2 * time.Minute

// NewServer builds the admin http.Server. The write timeout covers a forced
// sync, which can run several remote calls.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	write := cfg.Timeout
	if write <= 0 {
		write = defaultWriteTimeout
	}
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       60 * time.Second,
	}
}
