// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/checkclock/internal/logging"
)

// JSON hub protocol framing and message types.
const (
	recordSeparator = 0x1e

	msgInvocation = 1
	msgCompletion = 3
	msgPing       = 6
	msgClose      = 7

	writeWait      = 10 * time.Second
	handshakeWait  = 10 * time.Second
	maxMessageSize = 512 * 1024 // 512 KB
)

var errConnClosed = errors.New("hub connection closed")

var handshakeRequest = []byte(`{"protocol":"json","version":1}`)

// hubMessage is any inbound protocol record.
type hubMessage struct {
	Type           int               `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

type invocation struct {
	Type         int    `json:"type"`
	InvocationID string `json:"invocationId"`
	Target       string `json:"target"`
	Arguments    []any  `json:"arguments"`
}

type completion struct {
	err error
}

// hubConn is one protocol session over a WebSocket.
type hubConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan completion
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

func newHubConn(ws *websocket.Conn) *hubConn {
	return &hubConn{
		ws:      ws,
		pending: make(map[string]chan completion),
		done:    make(chan struct{}),
	}
}

// splitRecords splits a frame into its 0x1E terminated records.
func splitRecords(data []byte) [][]byte {
	var out [][]byte
	for _, rec := range bytes.Split(data, []byte{recordSeparator}) {
		if len(bytes.TrimSpace(rec)) > 0 {
			out = append(out, rec)
		}
	}
	return out
}

// handshake negotiates the JSON protocol. Records that arrived in the same
// frame as the handshake response are returned for dispatch.
func (c *hubConn) handshake(ctx context.Context) ([][]byte, error) {
	if err := c.writeRaw(handshakeRequest); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}

	deadline := time.Now().Add(handshakeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	records := splitRecords(data)
	if len(records) == 0 {
		return nil, fmt.Errorf("empty handshake response")
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(records[0], &resp); err != nil {
		return nil, fmt.Errorf("decode handshake: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("hub handshake: %s", resp.Error)
	}
	return records[1:], nil
}

func (c *hubConn) readLoop(timeout time.Duration, leftover [][]byte, dispatch func(hubMessage)) {
	c.ws.SetReadLimit(maxMessageSize)

	if !c.handle(leftover, dispatch) {
		return
	}
	for {
		if err := c.ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			c.close(err)
			return
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().Err(err).Msg("Unexpected hub close")
			}
			c.close(err)
			return
		}
		if !c.handle(splitRecords(data), dispatch) {
			return
		}
	}
}

// handle processes records and reports whether the session is still open.
func (c *hubConn) handle(records [][]byte, dispatch func(hubMessage)) bool {
	for _, rec := range records {
		var m hubMessage
		if err := json.Unmarshal(rec, &m); err != nil {
			logging.Warn().Err(err).Msg("Invalid hub message")
			continue
		}

		switch m.Type {
		case msgInvocation:
			dispatch(m)
		case msgCompletion:
			c.complete(m)
		case msgPing:
		case msgClose:
			err := errConnClosed
			if m.Error != "" {
				err = fmt.Errorf("%w: %s", errConnClosed, m.Error)
			}
			c.close(err)
			return false
		default:
			logging.Debug().Int("type", m.Type).Msg("Ignoring hub message type")
		}
	}
	return true
}

func (c *hubConn) complete(m hubMessage) {
	c.mu.Lock()
	ch, ok := c.pending[m.InvocationID]
	delete(c.pending, m.InvocationID)
	c.mu.Unlock()
	if !ok {
		return
	}

	var res completion
	if m.Error != "" {
		res.err = fmt.Errorf("hub invocation failed: %s", m.Error)
	}
	ch <- res
}

func (c *hubConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(struct {
				Type int `json:"type"`
			}{msgPing}); err != nil {
				c.close(err)
				return
			}
		}
	}
}

// invoke calls a hub method and waits for its completion.
func (c *hubConn) invoke(ctx context.Context, target string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan completion, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return c.reason()
	default:
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(invocation{Type: msgInvocation, InvocationID: id, Target: target, Arguments: args}); err != nil {
		return fmt.Errorf("invoke %s: %w", target, err)
	}

	select {
	case res := <-ch:
		return res.err
	case <-ctx.Done():
		return fmt.Errorf("invoke %s: %w", target, ctx.Err())
	case <-c.done:
		return fmt.Errorf("invoke %s: %w", target, c.reason())
	}
}

func (c *hubConn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

func (c *hubConn) writeRaw(data []byte) error {
	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, data...)
	frame = append(frame, recordSeparator)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// close ends the session once. err is the reason reported to waiters.
func (c *hubConn) close(err error) {
	c.closeOnce.Do(func() {
		if err == nil {
			err = errConnClosed
		}
		c.mu.Lock()
		c.err = err
		close(c.done)
		c.mu.Unlock()
		_ = c.ws.Close() // best-effort
	})
}

func (c *hubConn) reason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return errConnClosed
	}
	return c.err
}
