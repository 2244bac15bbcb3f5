// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package auth obtains bearer tokens for the realtime hub.

The device proves its identity with an API key derived from a shared secret:

	apiKey = base64url(HMAC-SHA256(secret, deviceId + ":" + unixSeconds))

encoded without padding. The key is created once by Register and then used
for Login and RefreshToken. All three endpoints live under the hub URL:

	POST {hub}/api/auth/register   body {deviceId, apiKey, timestamp}
	POST {hub}/api/auth/login?deviceId=..&apiKey=..
	POST {hub}/api/auth/refresh?deviceId=..&apiKey=..

and answer {"token": "..."}.

Client.Token is the realtime.TokenProvider used by the hub channel. It
returns the cached token while its exp claim is more than a minute away,
refreshes it when it is about to expire, and falls back to a fresh login.
Requests are paced by a token bucket limiter so a reconnect storm cannot
hammer the auth endpoints.

Failures are returned as *errs.Error with kind Authentication for rejected
credentials, TransientNetwork for transport errors and Serialization for
unreadable responses.
*/
package auth
