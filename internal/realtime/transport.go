// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrConnectionClosed fails requests outstanding when a connection ends.
	ErrConnectionClosed = errors.New("realtime: connection closed")
)

// EventHandler receives server-initiated events.
type EventHandler func(event string, data json.RawMessage)

// Transport is a realtime connection.
type Transport interface {
	// Connect establishes the connection. Calling it on a connected
	// transport is a no-op.
	Connect(ctx context.Context) error

	// Emit sends an event without waiting for an answer.
	Emit(ctx context.Context, event string, payload interface{}) error

	// Request sends an event and decodes the acknowledgment into reply.
	Request(ctx context.Context, event string, payload, reply interface{}) error

	// SetHandler registers the receiver for server events.
	SetHandler(h EventHandler)

	// SetReconnectHandler registers h to run, on its own goroutine, each
	// time a connection is established after the first one. Server-side
	// room membership does not survive a new connection.
	SetReconnectHandler(h func())

	Connected() bool

	// Close ends the connection. Later calls are no-ops.
	Close() error
}

// RemoteError is an acknowledgment carrying an error.
type RemoteError struct {
	Event   string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("realtime %s: %s", e.Event, e.Message)
}
