// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package chat is the consumer side of the realtime channel.

Session tracks the connection and room selection:

	Disconnected --Attach(client)--> Connected
	Connected    --SelectRoom(id)--> InRoom(id)   joinRoom + getMessages
	InRoom(a)    --SelectRoom(b)---> InRoom(b)    same connection, new room state
	any          --Attach(nil)-----> Disconnected

Every newMessage event updates two projections: the transcript, when the
message belongs to the open room, and the RoomCache, unconditionally.

A history acknowledgment that arrives after the user has already switched to
another room is discarded, so the transcript always belongs to the room that
was selected last.

RoomCache keeps the room list ordered by recency. ApplyMessage never invents
rooms: a message for a room that is not in the list changes nothing.
*/
package chat
