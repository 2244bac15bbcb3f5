// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/logging"
)

const (
	// refreshSkew renews tokens that expire within this window.
	refreshSkew = time.Minute

	defaultTimeout = 30 * time.Second
	maxBodySize    = 64 * 1024
)

// ErrNoToken is returned when an auth endpoint answers without a token.
var ErrNoToken = errors.New("auth response carried no token")

// APIKey derives the device API key for a timestamp.
func APIKey(secret, deviceID string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(deviceID + ":" + strconv.FormatInt(ts.Unix(), 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Client talks to the hub's auth endpoints and caches the current token.
type Client struct {
	baseURL  string
	secret   string
	deviceID string
	http     *http.Client
	limiter  *rate.Limiter
	now      func() time.Time

	mu     sync.Mutex
	apiKey string
	token  string
	expiry time.Time
}

// NewClient creates an auth client for the hub in cfg. apiKey may be empty,
// in which case the first Token call registers the device.
func NewClient(cfg config.HubConfig, office config.OfficeConfig, apiKey string) *Client {
	timeout := cfg.ClientTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		secret:   cfg.APISecret,
		deviceID: office.DeviceID(),
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
		now:      time.Now,
		apiKey:   apiKey,
	}
}

// APIKey returns the key in use, empty before registration.
func (c *Client) APIKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey
}

// Token returns a usable bearer token, registering, refreshing or logging in
// as needed.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && (c.expiry.IsZero() || c.now().Add(refreshSkew).Before(c.expiry)) {
		return c.token, nil
	}

	if c.apiKey == "" {
		return c.registerLocked(ctx)
	}

	if c.token != "" {
		token, err := c.postLocked(ctx, "refresh", nil)
		if err == nil {
			return c.storeLocked(token), nil
		}
		logging.Warn().Err(err).Msg("Token refresh failed, logging in again")
	}

	token, err := c.postLocked(ctx, "login", nil)
	if err != nil {
		c.token, c.expiry = "", time.Time{}
		return "", err
	}
	return c.storeLocked(token), nil
}

// Register creates a fresh API key and registers the device with it.
func (c *Client) Register(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registerLocked(ctx)
}

// Login authenticates with the current API key.
func (c *Client) Login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, err := c.postLocked(ctx, "login", nil)
	if err != nil {
		return "", err
	}
	return c.storeLocked(token), nil
}

// RefreshToken renews the token with the current API key.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, err := c.postLocked(ctx, "refresh", nil)
	if err != nil {
		return "", err
	}
	return c.storeLocked(token), nil
}

// Invalidate drops the cached token so the next Token call logs in again.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.token, c.expiry = "", time.Time{}
	c.mu.Unlock()
}

func (c *Client) registerLocked(ctx context.Context) (string, error) {
	ts := c.now()
	key := APIKey(c.secret, c.deviceID, ts)

	body, err := json.Marshal(struct {
		DeviceID  string `json:"deviceId"`
		APIKey    string `json:"apiKey"`
		Timestamp string `json:"timestamp"`
	}{c.deviceID, key, strconv.FormatInt(ts.Unix(), 10)})
	if err != nil {
		return "", errs.New(errs.Serialization, "auth register", err)
	}

	c.apiKey = key
	token, err := c.postLocked(ctx, "register", body)
	if err != nil {
		c.apiKey = ""
		return "", err
	}
	logging.Info().Str("device_id", c.deviceID).Msg("Device registered with auth service")
	return c.storeLocked(token), nil
}

// postLocked calls one auth endpoint. Login and refresh carry the
// credentials in the query string; register sends body.
func (c *Client) postLocked(ctx context.Context, action string, body []byte) (string, error) {
	op := "auth " + action
	if c.baseURL == "" {
		return "", errs.New(errs.Configuration, op, fmt.Errorf("hub url not configured"))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errs.New(errs.TransientNetwork, op, err)
	}

	endpoint := c.baseURL + "/api/auth/" + action
	if body == nil {
		q := url.Values{}
		q.Set("deviceId", c.deviceID)
		q.Set("apiKey", c.apiKey)
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return "", errs.New(errs.Configuration, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errs.New(errs.TransientNetwork, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", errs.New(errs.TransientNetwork, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", errs.New(errs.Authentication, op, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", errs.New(errs.TransientNetwork, op, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return "", errs.New(errs.Authentication, op, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errs.New(errs.Serialization, op, err)
	}
	if out.Token == "" {
		return "", errs.New(errs.Authentication, op, ErrNoToken)
	}
	return out.Token, nil
}

// storeLocked caches token with the expiry read from its exp claim. Tokens
// that are not JWTs are cached until invalidated.
func (c *Client) storeLocked(token string) string {
	c.token = token
	c.expiry = time.Time{}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		c.expiry = claims.ExpiresAt.Time
	}
	logging.Debug().Time("expires", c.expiry).Msg("Hub token stored")
	return token
}
