// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

/*
Package supervisor runs the long-lived components of the clock daemon under
a suture v4 supervisor tree.

	RootSupervisor ("checkclock")
	├── "storage-layer"
	│   └── punch cache compactor
	├── "sync-layer"
	│   ├── connectivity monitor
	│   ├── clock change monitor
	│   ├── offline audit sync loop
	│   └── punch uploader
	├── "messaging-layer"
	│   ├── realtime channel (hub or pub/sub)
	│   └── admin alert pipeline
	└── "api-layer"
	    └── admin HTTP server (when server.enabled)

Crashed services are restarted with suture's failure decay and backoff.
Supervisor events are logged through sutureslog into the zerolog logger:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewLoopService("audit-sync", engine))
	err = tree.Serve(ctx)

The lifecycle adapters live in the services subpackage.
*/
package supervisor
