// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package supervisor runs the client's long-lived services under a suture v4
tree.

# Overview

	RootSupervisor ("moimo")
	├── RealtimeSupervisor ("realtime-layer")
	│   └── RealtimeService (credential-driven chat connection)
	└── OpsSupervisor ("ops-layer")
	    ├── HTTPServerService (metrics endpoint, if METRICS_ADDR is set)
	    └── FakeBackendService (if -fake-backend is set)

A crash in the ops layer (a metrics listener that cannot bind, say) restarts
only that layer and never drops the chat connection.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRealtimeService(services.NewRealtimeService(store, holder, services.RealtimeOptions{
	    Interval: cfg.Realtime.ReconcileInterval,
	}))
	return tree.Serve(ctx)

Supervisor events (start, panic, backoff) are logged through sutureslog and
the zerolog slog adapter, so they share the application's log stream.
*/
package supervisor
