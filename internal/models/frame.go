// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package models

import "github.com/goccy/go-json"

// Realtime event names.
const (
	EventJoinRoom    = "joinRoom"
	EventGetMessages = "getMessages"
	EventSendMessage = "sendMessage"
	EventNewMessage  = "newMessage"

	// EventAck answers a request frame. Its ReplyTo is the request's ID.
	EventAck = "ack"
)

// Frame is one realtime message in either direction.
type Frame struct {
	ID        string          `json:"id,omitempty"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	ReplyTo   string          `json:"replyTo,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"ts"`
}

// IsAck reports whether the frame answers an earlier request.
func (f *Frame) IsAck() bool {
	return f.Event == EventAck && f.ReplyTo != ""
}
