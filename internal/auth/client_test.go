// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/errs"
)

// fakeAuth records calls and answers each endpoint with a scripted status.
type fakeAuth struct {
	mu       sync.Mutex
	calls    []string
	queries  []string
	bodies   []string
	status   map[string]int
	token    string
	rawReply string
}

func (f *fakeAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/auth/")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, action)
	f.queries = append(f.queries, r.URL.RawQuery)
	f.bodies = append(f.bodies, string(body))
	status := f.status[action]
	token := f.token
	raw := f.rawReply
	f.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if raw != "" {
		_, _ = w.Write([]byte(raw))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (f *fakeAuth) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestClient(t *testing.T, f *fakeAuth, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c := NewClient(
		config.HubConfig{URL: srv.URL + "/", APISecret: "s3cret", ClientTimeout: 2 * time.Second},
		config.OfficeConfig{ID: 3, DeviceUUID: "abc"},
		apiKey,
	)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "checkclock_offices_abc",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("hub-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestAPIKey(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("dev:1700000000"))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	got := APIKey("s3cret", "dev", ts)
	if got != want {
		t.Errorf("APIKey() = %s, want %s", got, want)
	}
	if strings.ContainsAny(got, "+/=") {
		t.Errorf("APIKey() = %s is not unpadded base64url", got)
	}
	if APIKey("other", "dev", ts) == got {
		t.Error("APIKey() ignores the secret")
	}
}

func TestClient_TokenRegistersThenCaches(t *testing.T) {
	f := &fakeAuth{token: signedToken(t, time.Now().Add(time.Hour))}
	c := newTestClient(t, f, "")
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	tok, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != f.token {
		t.Errorf("Token() = %s", tok)
	}
	// The fixed clock is far in the past, so the hour-long token stays valid.
	if _, err := c.Token(context.Background()); err != nil {
		t.Fatalf("second Token() error = %v", err)
	}

	calls := f.callList()
	if len(calls) != 1 || calls[0] != "register" {
		t.Fatalf("calls = %v, want [register]", calls)
	}

	var body struct {
		DeviceID  string `json:"deviceId"`
		APIKey    string `json:"apiKey"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(f.bodies[0]), &body); err != nil {
		t.Fatalf("register body %q: %v", f.bodies[0], err)
	}
	if body.DeviceID != "checkclock_offices_abc" || body.Timestamp != "1700000000" {
		t.Errorf("register body = %+v", body)
	}
	if body.APIKey != APIKey("s3cret", "checkclock_offices_abc", time.Unix(1700000000, 0)) {
		t.Errorf("register apiKey = %s", body.APIKey)
	}
	if c.APIKey() != body.APIKey {
		t.Errorf("APIKey() = %s, want registered key", c.APIKey())
	}
}

func TestClient_TokenLogsInWithKnownKey(t *testing.T) {
	f := &fakeAuth{token: "opaque"}
	c := newTestClient(t, f, "key-1")

	tok, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "opaque" {
		t.Errorf("Token() = %s", tok)
	}
	calls := f.callList()
	if len(calls) != 1 || calls[0] != "login" {
		t.Fatalf("calls = %v, want [login]", calls)
	}
	if f.queries[0] != "apiKey=key-1&deviceId=checkclock_offices_abc" {
		t.Errorf("login query = %s", f.queries[0])
	}
	if f.bodies[0] != "" {
		t.Errorf("login body = %q, want empty", f.bodies[0])
	}
}

func TestClient_ExpiredTokenRefreshes(t *testing.T) {
	tests := []struct {
		name          string
		refreshStatus int
		wantCalls     []string
	}{
		{"refresh succeeds", http.StatusOK, []string{"login", "refresh"}},
		{"refresh rejected falls back to login", http.StatusUnauthorized, []string{"login", "refresh", "login"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			f := &fakeAuth{
				token:  signedToken(t, now.Add(30*time.Second)),
				status: map[string]int{"refresh": tt.refreshStatus},
			}
			c := newTestClient(t, f, "key-1")
			ctx := context.Background()

			if _, err := c.Token(ctx); err != nil {
				t.Fatalf("first Token() error = %v", err)
			}
			// Inside the refresh skew: the next call must renew.
			f.mu.Lock()
			f.token = signedToken(t, now.Add(time.Hour))
			f.mu.Unlock()

			tok, err := c.Token(ctx)
			if err != nil {
				t.Fatalf("Token() error = %v", err)
			}
			if tok != f.token {
				t.Error("Token() did not return the renewed token")
			}
			calls := f.callList()
			if strings.Join(calls, ",") != strings.Join(tt.wantCalls, ",") {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
		})
	}
}

func TestClient_InvalidateForcesLogin(t *testing.T) {
	f := &fakeAuth{token: "opaque"}
	c := newTestClient(t, f, "key-1")
	ctx := context.Background()

	if _, err := c.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if _, err := c.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	c.Invalidate()
	if _, err := c.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if calls := f.callList(); len(calls) != 2 {
		t.Errorf("calls = %v, want two logins", calls)
	}
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		raw    string
		want   errs.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, "", errs.Authentication},
		{"forbidden", http.StatusForbidden, "", errs.Authentication},
		{"bad request", http.StatusBadRequest, "", errs.Authentication},
		{"server error", http.StatusBadGateway, "", errs.TransientNetwork},
		{"garbage body", http.StatusOK, "not json", errs.Serialization},
		{"missing token", http.StatusOK, `{"other":"x"}`, errs.Authentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAuth{status: map[string]int{"login": tt.status}, rawReply: tt.raw}
			c := newTestClient(t, f, "key-1")

			_, err := c.Login(context.Background())
			if err == nil {
				t.Fatal("Login() error = nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Login() error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestClient_RegisterFailureKeepsNoKey(t *testing.T) {
	f := &fakeAuth{status: map[string]int{"register": http.StatusConflict}}
	c := newTestClient(t, f, "")

	if _, err := c.Token(context.Background()); !errors.Is(err, errs.Authentication) {
		t.Fatalf("Token() error = %v, want authentication", err)
	}
	if c.APIKey() != "" {
		t.Errorf("APIKey() = %s after failed register", c.APIKey())
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient(config.HubConfig{URL: "http://127.0.0.1:1", ClientTimeout: time.Second}, config.OfficeConfig{}, "k")
	c.limiter = rate.NewLimiter(rate.Inf, 1)

	_, err := c.Login(context.Background())
	if !errors.Is(err, errs.TransientNetwork) {
		t.Errorf("Login() error = %v, want transient network", err)
	}

	empty := NewClient(config.HubConfig{}, config.OfficeConfig{}, "k")
	if _, err := empty.Login(context.Background()); !errors.Is(err, errs.Configuration) {
		t.Errorf("Login() without url error = %v, want configuration", err)
	}
}
