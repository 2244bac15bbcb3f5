// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

// Package errs provides the error taxonomy shared by the sync, queue and
// monitor paths.
//
// Every failure that crosses a component boundary is wrapped in an *Error
// carrying a Kind. Callers branch on the kind with errors.Is against the
// Kind sentinels or with KindOf:
//
//	if errors.Is(err, errs.Authentication) {
//	    // token refresh failed; requeue the send
//	}
package errs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind is the category of a failure.
type Kind int

const (
	Unclassified Kind = iota
	TransientNetwork
	Authentication
	Serialization
	LocalStorage
	Configuration
)

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case TransientNetwork:
		return "transient_network"
	case Authentication:
		return "authentication"
	case Serialization:
		return "serialization"
	case LocalStorage:
		return "local_storage"
	case Configuration:
		return "configuration"
	default:
		return "unclassified"
	}
}

// Error implements error so a Kind can be used as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with a kind and the operation that failed.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or the result
// of Classify when none is present.
func KindOf(err error) Kind {
	if err == nil {
		return Unclassified
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err)
}

// Classify infers a kind from well-known network, driver and decoding failures.
func Classify(err error) Kind {
	if err == nil {
		return Unclassified
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return TransientNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return TransientNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransientNetwork
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return TransientNetwork
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "28P01" {
		return Authentication
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return Serialization
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Serialization
	}

	return Unclassified
}

// Wrap classifies err and wraps it with op. It returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return New(KindOf(err), op, err)
}
