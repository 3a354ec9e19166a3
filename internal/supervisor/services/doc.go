// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package services provides suture.Service wrappers for Moimo components.

Each wrapper implements suture's Service interface and fmt.Stringer:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

RealtimeService:
  - Keeps the realtime holder in step with the credential store
  - Connects when a token appears, or at once in mock mode
  - Reconnects on a token change, closing the old connection first
  - Tears the connection down when the token disappears

HTTPServerService:
  - Wraps *http.Server with graceful shutdown
  - Used for the Prometheus endpoint

FakeBackendService:
  - Serves the in-process fake backend on a TCP address for offline use
*/
package services
