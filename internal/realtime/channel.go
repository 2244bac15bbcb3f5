// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/models"
)

// Channel modes accepted in realtime.mode.
const (
	ModeHub      = config.RealtimeModeHub
	ModePubSub   = config.RealtimeModePubSub
	ModeDisabled = config.RealtimeModeDisabled
)

// ErrClosed is returned by Initialize and Reload after Close.
var ErrClosed = errors.New("realtime channel closed")

// State is the connection state of a channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Channel is a realtime transport for punches and admin alerts.
//
// SendPunch never fails because the peer is unreachable: the punch is queued
// and flushed on the next connect. SendAdminAlert queues the same way but
// returns ErrQueued so callers can tell a delivered alert from a queued one.
type Channel interface {
	Name() string
	Initialize(ctx context.Context) error
	Reload(ctx context.Context) error
	SendPunch(ctx context.Context, punch *models.PunchEvent) error
	SendAdminAlert(ctx context.Context, alert models.AdminErrorAlert) error
	IsConnected() bool
	State() State
	Close() error
}

// Handlers receive inbound traffic and state changes. Any field may be nil.
// Handlers run on the channel's receive goroutine and must not block.
type Handlers struct {
	// OnPunch receives punches relayed by other devices of the office.
	OnPunch func(senderID string, punch models.PunchRecord)

	// OnNotice receives notices published to the office channel.
	OnNotice func(notice models.Notice)

	OnStateChange func(state State)
}

func (h Handlers) punch(senderID string, p models.PunchRecord) {
	if h.OnPunch != nil {
		h.OnPunch(senderID, p)
	}
}

func (h Handlers) notice(n models.Notice) {
	if h.OnNotice != nil {
		h.OnNotice(n)
	}
}

func (h Handlers) stateChange(s State) {
	if h.OnStateChange != nil {
		h.OnStateChange(s)
	}
}

// TokenProvider supplies the bearer token for the hub connection.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// tokenInvalidator is implemented by providers that cache tokens.
type tokenInvalidator interface {
	Invalidate()
}

// New builds the channel selected by cfg.Realtime.Mode. tokens is only used
// by the hub transport.
func New(cfg *config.Config, tokens TokenProvider, h Handlers) (Channel, error) {
	policy := PolicyFromConfig(cfg.Realtime.Flush)

	switch cfg.Realtime.Mode {
	case ModeHub:
		if tokens == nil {
			return nil, fmt.Errorf("hub mode requires a token provider")
		}
		return NewHubChannel(cfg.Realtime.Hub, cfg.Office, tokens, policy, h), nil
	case ModePubSub:
		return NewPubSubChannel(cfg.Realtime.PubSub, cfg.Office, policy, h)
	case ModeDisabled, "":
		logging.Info().Msg("Realtime channel disabled")
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown realtime mode %q", cfg.Realtime.Mode)
	}
}

// Disabled is the channel used when no realtime transport is configured.
// Sends are accepted and dropped.
type Disabled struct{}

func (Disabled) Name() string { return ModeDisabled }
func (Disabled) Initialize(context.Context) error { return nil }
func (Disabled) Reload(context.Context) error { return nil }
func (Disabled) IsConnected() bool { return false }
func (Disabled) State() State { return StateDisconnected }
func (Disabled) Close() error { return nil }
func (Disabled) SendPunch(_ context.Context, p *models.PunchEvent) error {
	if p == nil {
		return errNilPunch
	}
	return nil
}
func (Disabled) SendAdminAlert(context.Context, models.AdminErrorAlert) error {
	return ErrAlertsUnsupported
}

var (
	// ErrQueued means the item was kept for the next flush instead of sent.
	ErrQueued = errors.New("queued until the realtime channel reconnects")

	// ErrAlertsUnsupported is returned by channels with no admin alert route.
	ErrAlertsUnsupported = errors.New("realtime channel does not carry admin alerts")

	errNilPunch = errors.New("nil punch")
)
