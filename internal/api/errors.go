// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package api

import "errors"

var (
	// ErrSyncUnavailable is reported when no sync engine is wired.
	ErrSyncUnavailable = errors.New("audit sync is not configured")

	// ErrUploadUnavailable is reported when no punch uploader is wired.
	ErrUploadUnavailable = errors.New("punch upload is not configured")
)
