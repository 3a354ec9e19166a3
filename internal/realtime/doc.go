// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package realtime implements the chat channel: one bidirectional connection per
credential that multiplexes room joins, history fetches and message sends.

# Layers

  - Transport moves frames. WebSocketTransport speaks JSON frames over a
    gorilla/websocket connection; MockTransport emulates the same event
    surface in process for offline use.
  - Client gives the transport a typed surface: JoinRoom, GetMessages,
    SendMessage and OnNewMessage.
  - Holder keeps at most one live Client and swaps it when the credential
    changes, closing the old one before dialing the new one.

# Wire format

Every frame is a JSON object:

	{"id":"<uuid>","event":"getMessages","data":{"meetingId":3},"ts":1767225600000}

A request that expects an answer is resolved by the server sending an "ack"
frame whose replyTo is the request id:

	{"event":"ack","replyTo":"<uuid>","data":{"meetingId":3,"messages":[...]}}

Outstanding requests are kept in a pending table keyed by id. When the
connection drops, every pending request fails with ErrConnectionClosed. A send
whose answer never arrives blocks only until its context ends.

# Reconnection

The initial dial and reconnection after a dropped connection are both bounded
by the configured attempt count, with exponential backoff from one second up
to 32 seconds.
*/
package realtime
