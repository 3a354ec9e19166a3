// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package models defines the wire and state types shared across Moimo.

Key Components:

  - Credential: bearer token plus derived identity, owned by internal/credential
  - SessionSnapshot: result of GET /users/verify
  - User, Meeting: REST resources
  - ChatRoom, ChatMessage, MessagePreview: chat resources shared by the REST
    room list and the realtime channel

Request payloads carry `validate` tags checked by internal/validation before
anything is sent to the server.

JSON encoding uses github.com/goccy/go-json throughout the module. Field names
follow the server's camelCase contract.
*/
package models
