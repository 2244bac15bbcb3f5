// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package models

import "time"

// ChangeType classifies an observed system clock change.
type ChangeType string

const (
	ChangeNTPSync         ChangeType = "NTP_SYNC"
	ChangeSystemBoot      ChangeType = "SYSTEM_BOOT"
	ChangeDSTTimezone     ChangeType = "DST_TIMEZONE_CHANGE"
	ChangeAutomaticSync   ChangeType = "AUTOMATIC_SYNC"
	ChangeManual          ChangeType = "MANUAL"
	ChangeUnknown         ChangeType = "UNKNOWN"
	ChangeTimezoneChanged ChangeType = "TIMEZONE_CHANGED"
)

// SyncMetadata is attached to an audit record when it is replayed from the
// offline store.
type SyncMetadata struct {
	OriginalTimestamp time.Time `json:"original_timestamp"`
	SyncTimestamp     time.Time `json:"sync_timestamp"`
	AttemptCount      int       `json:"attempt_count"`
	WasOffline        bool      `json:"was_offline"`
}

// TimeChangeAuditRecord is one observed system clock change.
//
// ChangeType, IsSuspicious and SuspicionReason are set once by the
// classifier and never rewritten afterwards.
type TimeChangeAuditRecord struct {
	OfficeID      int        `json:"office_id"`
	EventDateTime time.Time  `json:"event_date_time"`
	PreviousTime  *time.Time `json:"previous_system_time,omitempty"`
	NewTime       time.Time  `json:"new_system_time"`

	// TimeDifferenceSeconds is nil when no previous time was known.
	TimeDifferenceSeconds *int64 `json:"time_difference_seconds,omitempty"`

	MachineName      string `json:"machine_name"`
	UserName         string `json:"user_name,omitempty"`
	ProcessName      string `json:"process_name"`
	ApplicationState string `json:"application_state"`

	NTPServerUsed        string `json:"ntp_server_used"`
	IsNTPSynchronization bool   `json:"is_ntp_synchronization"`
	IsSignificantChange  bool   `json:"is_significant_change"`
	IsSuspicious         bool   `json:"is_suspicious"`

	ChangeType         ChangeType `json:"change_type"`
	SuspicionReason    string     `json:"suspicion_reason"`
	ClassificationNote string     `json:"classification_note,omitempty"`

	TimeZoneID       string     `json:"time_zone_id"`
	IsDaylightSaving *bool      `json:"is_daylight_saving_time,omitempty"`
	NetworkConnected *bool      `json:"network_connected,omitempty"`
	NTPSyncEnabled   *bool      `json:"ntp_sync_enabled,omitempty"`
	SystemUptime     *int64     `json:"system_uptime,omitempty"`
	LastBootTime     *time.Time `json:"last_boot_time,omitempty"`

	// AdditionalData is a JSON document with probe details.
	AdditionalData string `json:"additional_data"`

	SyncMetadata *SyncMetadata `json:"sync_metadata,omitempty"`
}

// Diff returns the time difference in seconds, or 0 when unknown.
func (r *TimeChangeAuditRecord) Diff() int64 {
	if r.TimeDifferenceSeconds == nil {
		return 0
	}
	return *r.TimeDifferenceSeconds
}

// Uptime returns the recorded uptime in seconds, or -1 when unknown.
func (r *TimeChangeAuditRecord) Uptime() int64 {
	if r.SystemUptime == nil {
		return -1
	}
	return *r.SystemUptime
}

// SyncResult summarises a forced synchronization of the offline audit store.
type SyncResult struct {
	InitialPending   int  `json:"initial_pending"`
	RemainingPending int  `json:"remaining_pending"`
	SyncedCount      int  `json:"synced_count"`
	Success          bool `json:"success"`
}

// NewSyncResult derives the synced count and success flag from the
// before and after pending counts.
func NewSyncResult(initial, remaining int) SyncResult {
	return SyncResult{
		InitialPending:   initial,
		RemainingPending: remaining,
		SyncedCount:      initial - remaining,
		Success:          remaining < initial,
	}
}
