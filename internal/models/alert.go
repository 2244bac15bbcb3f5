// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// AdminErrorAlert is one administrator-facing critical notification.
type AdminErrorAlert struct {
	Title     string    `json:"title"`
	OfficeID  string    `json:"office_id"`
	DeviceID  string    `json:"device_id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Exception string    `json:"exception,omitempty"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notice is the inner payload of an inbound pub/sub envelope.
type Notice struct {
	ID      NoticeID `json:"id"`
	Caption string   `json:"caption"`
	Body    string   `json:"body"`
	Image   string   `json:"image,omitempty"`
}

// NoticeID accepts both string and numeric ids from publishers.
type NoticeID string

// UnmarshalJSON implements json.Unmarshaler.
func (n *NoticeID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*n = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NoticeID(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("notice id must be string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(num.String(), 64); err != nil {
		return fmt.Errorf("notice id must be string or number: %w", err)
	}
	*n = NoticeID(num.String())
	return nil
}

// Envelope is the outer JSON document carried on pub/sub channels.
// Data holds either a Notice or an encrypted box, depending on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
