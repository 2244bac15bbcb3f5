// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// WebhookCapture is one captured request.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// WebhookServer records incoming webhook requests.
type WebhookServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []WebhookCapture
	status   int
}

// NewWebhookServer starts a capture server that answers 200 OK. It is closed
// by t.Cleanup.
func NewWebhookServer(t *testing.T) *WebhookServer {
	t.Helper()

	ws := &WebhookServer{status: http.StatusOK}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()

		ws.mu.Lock()
		ws.captures = append(ws.captures, WebhookCapture{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		status := ws.status
		ws.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(ws.Server.Close)
	return ws
}

// URL returns the server URL.
func (w *WebhookServer) URL() string {
	return w.Server.URL
}

// SetStatus changes the status code returned to later requests.
func (w *WebhookServer) SetStatus(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = code
}

// Captures returns a copy of every captured request.
func (w *WebhookServer) Captures() []WebhookCapture {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WebhookCapture, len(w.captures))
	copy(out, w.captures)
	return out
}

// WaitForCaptures waits until at least n requests arrived or timeout passes.
func (w *WebhookServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(w.Captures()) >= n {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return len(w.Captures()) >= n
}
