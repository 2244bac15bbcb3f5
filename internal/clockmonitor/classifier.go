// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package clockmonitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/checkclock/internal/models"
)

// Classification thresholds, in seconds.
const (
	significantChangeSeconds = 30
	bootWindowSeconds        = 300
	dstMinSeconds            = 3500
	dstMaxSeconds            = 3700
	automaticSyncMaxSeconds  = 120
	manualMinSeconds         = 300
	backwardJumpSeconds      = 60
	largeJumpSeconds         = 3600
	nonNTPJumpSeconds        = 60
	stableSystemJumpSeconds  = 10
)

const (
	reasonSignificant = "Cambio temporal significativo: %d segundos"
	reasonBackward    = "Cambio de hora hacia atrás"
	reasonManual      = "Cambio manual sin sincronización NTP"
	reasonStable      = "Cambio en sistema estable"
)

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// DetermineChangeType applies the priority rules to an enriched record.
// Unknown uptime never counts as a fresh boot.
func DetermineChangeType(rec *models.TimeChangeAuditRecord, dstTransitionDay bool) models.ChangeType {
	d := abs64(rec.Diff())
	uptime := rec.Uptime()

	switch {
	case rec.IsNTPSynchronization:
		return models.ChangeNTPSync
	case uptime >= 0 && uptime < bootWindowSeconds:
		return models.ChangeSystemBoot
	case dstTransitionDay && d >= dstMinSeconds && d <= dstMaxSeconds:
		return models.ChangeDSTTimezone
	case isTrue(rec.NetworkConnected) && isTrue(rec.NTPSyncEnabled) && d < automaticSyncMaxSeconds:
		return models.ChangeAutomaticSync
	case d > manualMinSeconds:
		return models.ChangeManual
	default:
		return models.ChangeUnknown
	}
}

// IsSuspicious reports whether any heuristic fires for the classified record.
func IsSuspicious(rec *models.TimeChangeAuditRecord) bool {
	d := rec.Diff()
	switch {
	case rec.ChangeType == models.ChangeManual:
		return true
	case d < -backwardJumpSeconds:
		return true
	case abs64(d) > largeJumpSeconds:
		return true
	}
	return rec.ChangeType == models.ChangeUnknown &&
		!rec.IsNTPSynchronization &&
		abs64(d) > significantChangeSeconds &&
		rec.Uptime() > bootWindowSeconds
}

// SuspicionReasons lists the free-text reasons for a suspicious record.
func SuspicionReasons(rec *models.TimeChangeAuditRecord) []string {
	d := rec.Diff()
	var reasons []string

	if abs64(d) > manualMinSeconds {
		reasons = append(reasons, fmt.Sprintf(reasonSignificant, d))
	}
	if d < -backwardJumpSeconds {
		reasons = append(reasons, reasonBackward)
	}
	if !rec.IsNTPSynchronization && abs64(d) > nonNTPJumpSeconds {
		reasons = append(reasons, reasonManual)
	}
	if rec.Uptime() > bootWindowSeconds && abs64(d) > stableSystemJumpSeconds {
		reasons = append(reasons, reasonStable)
	}
	return reasons
}

// Classify sets ChangeType, IsSuspicious, SuspicionReason and, when the
// suspicion pass refines a coarse type, ClassificationNote. It is called
// once per record.
func Classify(rec *models.TimeChangeAuditRecord, dstTransitionDay bool) {
	rec.ChangeType = DetermineChangeType(rec, dstTransitionDay)
	rec.IsSuspicious = IsSuspicious(rec)
	if !rec.IsSuspicious {
		return
	}

	reasons := SuspicionReasons(rec)
	rec.SuspicionReason = strings.Join(reasons, "; ")

	if rec.ChangeType != models.ChangeUnknown && rec.ChangeType != models.ChangeAutomaticSync {
		return
	}

	refined := rec.ChangeType
	switch {
	case containsReason(reasons, reasonManual):
		refined = models.ChangeManual
	case rec.Uptime() >= 0 && rec.Uptime() < bootWindowSeconds:
		refined = models.ChangeSystemBoot
	}
	if refined != rec.ChangeType {
		rec.ClassificationNote = fmt.Sprintf("refined from %s to %s", rec.ChangeType, refined)
		rec.ChangeType = refined
	}
}

// ClassifyTimezone marks a timezone preference change. No NTP analysis is
// done for these records.
func ClassifyTimezone(rec *models.TimeChangeAuditRecord) {
	rec.ChangeType = models.ChangeTimezoneChanged
	rec.IsSuspicious = false
	rec.SuspicionReason = ""
}

// IsDSTTransitionDay reports whether the DST flag of loc differs between
// yesterday, today and tomorrow at local midnight.
func IsDSTTransitionDay(now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	return yesterday.IsDST() != today.IsDST() || today.IsDST() != tomorrow.IsDST()
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
