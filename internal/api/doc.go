// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package api serves the local admin HTTP surface of the clock daemon.

Routes (chi):

	GET  /healthz          liveness, always 200 while the process runs
	GET  /status           connectivity, pending counts and realtime state
	POST /sync/force       one audit sync pass, answers the operator summary
	POST /punches          records the next punch of an employee
	POST /punches/upload   uploads the punch cache as one batch
	GET  /metrics          Prometheus exposition

Routes are rate limited per client IP with go-chi/httprate. The sync and
upload routes run remote work and use the strict configured limit. Every
response except /metrics uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}

The server binds to 127.0.0.1 by default and carries no authentication; it
is an operator surface, not a public API.
*/
package api
