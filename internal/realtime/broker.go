// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/checkclock/internal/logging"
)

const brokerReadyTimeout = 10 * time.Second

// Broker is an in-process NATS server for offices without a shared broker.
type Broker struct {
	server    *server.Server
	clientURL string
}

// StartBroker starts a core NATS server (no JetStream) on host:port.
// A port of -1 picks a random free port.
func StartBroker(host string, port int) (*Broker, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	opts := &server.Options{
		ServerName: "checkclock-broker",
		Host:       host,
		Port:       port,
		JetStream:  false,
		DontListen: false,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024, // 1MB
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(brokerReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", brokerReadyTimeout)
	}

	logging.Info().Str("url", ns.ClientURL()).Msg("Embedded NATS broker started")
	return &Broker{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL for clients.
func (b *Broker) ClientURL() string {
	return b.clientURL
}

// Shutdown stops the server and waits for it to exit.
func (b *Broker) Shutdown() {
	b.server.Shutdown()
	b.server.WaitForShutdown()
	logging.Info().Msg("Embedded NATS broker stopped")
}
