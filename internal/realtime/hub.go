// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

const (
	hubChannelName = "hub"

	// Hub methods with fixed names.
	methodRegisterDevice     = "RegisterDevice"
	methodReceivePunch       = "ReceivePunch"
	methodDeviceConnected    = "DeviceConnected"
	methodDeviceDisconnected = "DeviceDisconnected"

	defaultKeepAlive     = 15 * time.Second
	defaultServerTimeout = 30 * time.Second
	defaultClientTimeout = 30 * time.Second
)

// DefaultReconnectSchedule is the wait before each reconnect attempt. The
// last entry repeats until the connection is restored.
var DefaultReconnectSchedule = []time.Duration{
	0,
	2 * time.Second,
	5 * time.Second,
	30 * time.Second,
	30 * time.Minute,
	time.Hour,
}

// HubChannel is a Channel over a persistent hub connection.
type HubChannel struct {
	cfg       config.HubConfig
	deviceID  string
	officeKey string
	tokens    TokenProvider
	handlers  Handlers
	policy    FlushPolicy

	dialer        *websocket.Dialer
	schedule      []time.Duration
	keepAlive     time.Duration
	serverTimeout time.Duration

	punches *Queue[models.PunchRecord]
	alerts  *Queue[models.AdminErrorAlert]

	// lifeMu serialises Initialize, Reload and Close.
	lifeMu sync.Mutex

	mu     sync.Mutex
	conn   *hubConn
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewHubChannel creates a hub channel. Nothing is dialled until Initialize.
func NewHubChannel(cfg config.HubConfig, office config.OfficeConfig, tokens TokenProvider, policy FlushPolicy, h Handlers) *HubChannel {
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = defaultClientTimeout
	}
	return &HubChannel{
		cfg:           cfg,
		deviceID:      office.DeviceID(),
		officeKey:     office.OfficeKey(),
		tokens:        tokens,
		handlers:      h,
		policy:        policy,
		dialer:        &websocket.Dialer{HandshakeTimeout: cfg.ClientTimeout},
		schedule:      DefaultReconnectSchedule,
		keepAlive:     defaultKeepAlive,
		serverTimeout: defaultServerTimeout,
		punches:       NewQueue[models.PunchRecord](hubChannelName, "punch"),
		alerts:        NewQueue[models.AdminErrorAlert](hubChannelName, "alert"),
	}
}

// Name implements Channel.
func (h *HubChannel) Name() string { return hubChannelName }

// Initialize connects, registers the device and starts automatic reconnect.
// The first connection error is returned; later ones are retried.
func (h *HubChannel) Initialize(ctx context.Context) error {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	return h.start(ctx)
}

// Reload drops the current connection and connects again.
func (h *HubChannel) Reload(ctx context.Context) error {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()

	h.stop()
	logging.Info().Msg("Reloading hub connection")
	return h.start(ctx)
}

// Close stops reconnecting and closes the connection. Queued items are
// kept in memory.
func (h *HubChannel) Close() error {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.stop()
	return nil
}

func (h *HubChannel) start(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.cancel != nil {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	h.setState(StateConnecting)
	conn, err := h.connect(ctx)
	if err != nil {
		h.setState(StateDisconnected)
		recordFailure(hubChannelName, "connect", err)
		return fmt.Errorf("connect hub: %w", err)
	}

	// The reconnect loop outlives the caller's context.
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	h.mu.Lock()
	h.cancel = cancel
	h.done = done
	h.mu.Unlock()

	go h.run(loopCtx, conn, done)

	logging.Info().
		Str("device_id", h.deviceID).
		Str("office", h.officeKey).
		Msg("Hub connection established")

	h.onConnected(loopCtx, conn)
	return nil
}

func (h *HubChannel) stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	h.setState(StateDisconnected)
}

func (h *HubChannel) run(ctx context.Context, conn *hubConn, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			conn.close(nil)
			h.clearConn(conn)
			return
		case <-conn.done:
		}

		disconnectedAt := time.Now()
		h.clearConn(conn)
		h.setState(StateReconnecting)
		logging.Warn().Err(conn.reason()).Msg("Hub connection lost, reconnecting")

		conn = h.reconnect(ctx)
		if conn == nil {
			return
		}
		if ctx.Err() != nil {
			conn.close(nil)
			h.clearConn(conn)
			return
		}

		down := time.Since(disconnectedAt)
		metrics.RealtimeDisconnectSeconds.WithLabelValues(hubChannelName).Observe(down.Seconds())
		logging.Info().Dur("disconnected_for", down).Msg("Hub connection restored")
		h.onConnected(ctx, conn)
	}
}

// reconnect walks the schedule until a connection succeeds or ctx ends.
func (h *HubChannel) reconnect(ctx context.Context) *hubConn {
	for attempt := 0; ; attempt++ {
		delay := h.schedule[min(attempt, len(h.schedule)-1)]
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		conn, err := h.connect(ctx)
		if err == nil {
			return conn
		}
		recordFailure(hubChannelName, "reconnect", err)
		logging.Debug().Int("attempt", attempt+1).Dur("next_delay", h.schedule[min(attempt+1, len(h.schedule)-1)]).Msg("Hub reconnect failed")
	}
}

// connect obtains a token, dials, runs the protocol handshake and starts
// the connection's read and keepalive loops.
func (h *HubChannel) connect(ctx context.Context) (*hubConn, error) {
	token, err := h.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("hub token: %w", err)
	}

	endpoint, err := h.endpoint(token)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, h.cfg.ClientTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := h.dialer.DialContext(dialCtx, endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			if inv, ok := h.tokens.(tokenInvalidator); ok && resp.StatusCode == http.StatusUnauthorized {
				inv.Invalidate()
			}
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("dial hub: %w", err)
	}

	conn := newHubConn(ws)
	leftover, err := conn.handshake(dialCtx)
	if err != nil {
		conn.close(err)
		return nil, err
	}

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	go conn.readLoop(h.serverTimeout, leftover, h.dispatch)
	go conn.pingLoop(h.keepAlive)

	h.setState(StateConnected)
	return conn, nil
}

// endpoint builds ws(s)://host/path/{hub}?access_token=...
func (h *HubChannel) endpoint(token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(h.cfg.URL, "/") + "/" + strings.Trim(h.cfg.HubName, "/"))
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub url scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// onConnected registers the device and drains both pending queues.
func (h *HubChannel) onConnected(ctx context.Context, conn *hubConn) {
	regCtx, cancel := context.WithTimeout(ctx, h.cfg.ClientTimeout)
	err := conn.invoke(regCtx, methodRegisterDevice, h.deviceID, h.officeKey)
	cancel()
	if err != nil {
		recordFailure(hubChannelName, "register", err)
	} else {
		logging.Info().Str("device_id", h.deviceID).Msg("Device registered with hub")
	}

	go h.flush(ctx)
}

func (h *HubChannel) flush(ctx context.Context) {
	Flush(ctx, h.punches, h.IsConnected, h.sendPunchNow, h.policy)
	Flush(ctx, h.alerts, h.IsConnected, h.sendAlertNow, h.policy)
}

func (h *HubChannel) dispatch(msg hubMessage) {
	switch {
	case strings.EqualFold(msg.Target, methodReceivePunch):
		if len(msg.Arguments) < 2 {
			logging.Warn().Int("args", len(msg.Arguments)).Msg("ReceivePunch with missing arguments")
			return
		}
		var sender string
		var rec models.PunchRecord
		if err := json.Unmarshal(msg.Arguments[0], &sender); err != nil {
			logging.Warn().Err(err).Msg("Invalid ReceivePunch sender")
			return
		}
		if err := json.Unmarshal(msg.Arguments[1], &rec); err != nil {
			logging.Warn().Err(err).Msg("Invalid ReceivePunch payload")
			return
		}
		logging.Debug().Str("sender", sender).Int("employee_id", rec.IDEmployee).Msg("Punch received from hub")
		h.handlers.punch(sender, rec)

	case strings.EqualFold(msg.Target, methodDeviceConnected),
		strings.EqualFold(msg.Target, methodDeviceDisconnected):
		var device string
		if len(msg.Arguments) > 0 {
			_ = json.Unmarshal(msg.Arguments[0], &device)
		}
		logging.Info().Str("event", msg.Target).Str("device_id", device).Msg("Hub device presence")

	default:
		logging.Debug().Str("target", msg.Target).Msg("Unhandled hub invocation")
	}
}

// SendPunch implements Channel.
func (h *HubChannel) SendPunch(ctx context.Context, punch *models.PunchEvent) error {
	if punch == nil {
		return errNilPunch
	}
	rec := punch.Record()

	if !h.IsConnected() {
		h.punches.Push(rec)
		logging.Warn().
			Int("employee_id", rec.IDEmployee).
			Int("pending", h.punches.Len()).
			Msg("Hub unavailable, punch queued")
		return nil
	}
	if h.punches.Len() > 0 {
		// Older punches are still queued; keep them ahead of this one.
		h.punches.Push(rec)
		Flush(ctx, h.punches, h.IsConnected, h.sendPunchNow, h.policy)
		return nil
	}
	if err := h.sendPunchNow(ctx, rec); err != nil {
		recordFailure(hubChannelName, "send_punch", err)
		h.punches.Push(rec)
	}
	return nil
}

// SendAdminAlert implements Channel. It returns ErrAlertsUnsupported when no
// admin method is configured.
func (h *HubChannel) SendAdminAlert(ctx context.Context, alert models.AdminErrorAlert) error {
	if h.cfg.AdminMethod == "" {
		return ErrAlertsUnsupported
	}
	if !h.IsConnected() {
		h.alerts.Push(alert)
		logging.Warn().Str("title", alert.Title).Msg("Hub unavailable, admin alert queued")
		return ErrQueued
	}
	if h.alerts.Len() > 0 {
		h.alerts.Push(alert)
		return drained(Flush(ctx, h.alerts, h.IsConnected, h.sendAlertNow, h.policy))
	}
	if err := h.sendAlertNow(ctx, alert); err != nil {
		recordFailure(hubChannelName, "send_alert", err)
		h.alerts.Push(alert)
		return ErrQueued
	}
	return nil
}

func (h *HubChannel) sendPunchNow(ctx context.Context, rec models.PunchRecord) error {
	return h.invoke(ctx, h.cfg.PunchMethod, h.deviceID, rec)
}

func (h *HubChannel) sendAlertNow(ctx context.Context, alert models.AdminErrorAlert) error {
	return h.invoke(ctx, h.cfg.AdminMethod, h.deviceID, alert)
}

func (h *HubChannel) invoke(ctx context.Context, target string, args ...any) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return errConnClosed
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.ClientTimeout)
	defer cancel()
	return conn.invoke(ctx, target, args...)
}

// IsConnected implements Channel.
func (h *HubChannel) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil && h.state == StateConnected
}

// State implements Channel.
func (h *HubChannel) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Pending returns the number of queued punches and alerts.
func (h *HubChannel) Pending() (punches, alerts int) {
	return h.punches.Len(), h.alerts.Len()
}

func (h *HubChannel) clearConn(c *hubConn) {
	h.mu.Lock()
	if h.conn == c {
		h.conn = nil
	}
	h.mu.Unlock()
}

func (h *HubChannel) setState(s State) {
	h.mu.Lock()
	if h.state == s {
		h.mu.Unlock()
		return
	}
	h.state = s
	h.mu.Unlock()

	metrics.SetRealtimeConnected(hubChannelName, s == StateConnected)
	logging.Debug().Str("state", s.String()).Msg("Hub state changed")
	h.handlers.stateChange(s)
}
