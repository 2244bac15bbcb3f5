// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
)

// FailureKind classifies realtime transport failures.
type FailureKind int

const (
	KindTransport FailureKind = iota
	KindNotAuthorized
	KindForbidden
	KindTimeout
	KindDecryptionFailure
)

// String returns the label used in logs and metrics.
func (k FailureKind) String() string {
	switch k {
	case KindNotAuthorized:
		return "not_authorized"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	case KindDecryptionFailure:
		return "decryption_failure"
	default:
		return "transport"
	}
}

// ErrDecryption is returned when a channel payload cannot be opened.
var ErrDecryption = errors.New("channel payload decryption failed")

// StatusError is a rejected hub handshake.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hub handshake rejected: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Classify maps a transport error to its FailureKind.
func Classify(err error) FailureKind {
	var se *StatusError
	switch {
	case err == nil:
		return KindTransport
	case errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized,
		errors.Is(err, errs.Authentication),
		errors.Is(err, natsgo.ErrAuthorization),
		errors.Is(err, natsgo.ErrAuthExpired):
		return KindNotAuthorized
	case errors.As(err, &se) && se.StatusCode == http.StatusForbidden,
		errors.Is(err, natsgo.ErrPermissionViolation):
		return KindForbidden
	case errors.Is(err, ErrDecryption):
		return KindDecryptionFailure
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, natsgo.ErrTimeout):
		return KindTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// recordFailure logs and counts a failure. It returns the kind for callers
// that branch on it.
func recordFailure(channel, op string, err error) FailureKind {
	kind := Classify(err)
	metrics.RealtimeErrors.WithLabelValues(channel, kind.String()).Inc()

	ev := logging.Warn()
	if kind == KindNotAuthorized || kind == KindForbidden {
		ev = logging.Error()
	}
	ev.Err(err).
		Str("channel", channel).
		Str("op", op).
		Str("kind", kind.String()).
		Msg("Realtime channel failure")
	return kind
}
