// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Moimo is a terminal client for the meetup service: it logs in, keeps the
session fresh and chats in meeting rooms over the realtime channel.

# Startup

 1. Configuration: defaults, optional config.yaml, environment (koanf)
 2. Logging: zerolog, configured from LOG_LEVEL / LOG_FORMAT / LOG_CALLER
 3. Credential store: in memory, or persisted to BadgerDB when
    CREDENTIAL_STORE_PATH is set
 4. HTTP gateway and REST client
 5. Supervisor tree: realtime reconciliation, optional metrics endpoint,
    optional local fake backend
 6. Login (when -email is given), session verify, room list
 7. Chat loop on stdin

# Flags

	-email         account email; without it a persisted credential is reused
	-password      account password (or MOIMO_PASSWORD)
	-room          meeting id to open (default: most recent room)
	-mock          use the in-process mock chat transport
	-fake-backend  serve a fake backend on this address and point the client at it

# Chat Commands

	/rooms         list rooms, most recent first
	/join <id>     switch to another room
	/quit          exit

Any other line is sent to the open room.

# Examples

Offline, against the built-in fake backend:

	moimo -fake-backend 127.0.0.1:8089 -email moimo@email.com -password 12345678

Against a real server:

	export API_BASE_URL=https://meetup.example.com/api
	export REALTIME_URL=wss://meetup.example.com/ws
	export CREDENTIAL_STORE_PATH=$HOME/.moimo
	moimo -email me@example.com

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor closes the chat
connection and the metrics server, then the credential store is closed.
*/
package main
