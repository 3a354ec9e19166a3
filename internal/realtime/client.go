// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package realtime

import (
	"context"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/validation"
)

// MessageHandler receives newMessage events in arrival order.
type MessageHandler func(models.ChatMessage)

// Client is the typed chat surface of a Transport.
type Client struct {
	transport   Transport
	onMessage   atomic.Pointer[MessageHandler]
	onReconnect atomic.Pointer[func()]
}

// NewClient wraps t and registers itself as t's event and reconnect handler.
func NewClient(t Transport) *Client {
	c := &Client{transport: t}
	t.SetHandler(c.dispatch)
	t.SetReconnectHandler(c.reconnected)
	return c
}

// OnReconnect replaces the callback run after the transport comes back on a
// new connection. Rooms joined before must be joined again.
func (c *Client) OnReconnect(fn func()) {
	if fn == nil {
		c.onReconnect.Store(nil)
		return
	}
	c.onReconnect.Store(&fn)
}

func (c *Client) reconnected() {
	logging.Info().Msg("[realtime] Reconnected")
	if fn := c.onReconnect.Load(); fn != nil {
		(*fn)()
	}
}

// OnNewMessage replaces the message handler. The registered transport
// handler is stable; it reads the latest handler on every event.
func (c *Client) OnNewMessage(h MessageHandler) {
	if h == nil {
		c.onMessage.Store(nil)
		return
	}
	c.onMessage.Store(&h)
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	if event != models.EventNewMessage {
		logging.Debug().Str("event", event).Msg("[realtime] Ignoring event")
		return
	}

	var msg models.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.RecordRealtimeError("decode")
		logging.Warn().Err(err).Msg("[realtime] Malformed newMessage")
		return
	}

	if h := c.onMessage.Load(); h != nil {
		(*h)(msg)
	}
}

// Connect connects the underlying transport.
func (c *Client) Connect(ctx context.Context) error {
	return c.transport.Connect(ctx)
}

// JoinRoom subscribes the connection to a room's messages.
func (c *Client) JoinRoom(ctx context.Context, meetingID int64) error {
	return c.transport.Emit(ctx, models.EventJoinRoom, models.JoinRoomPayload{MeetingID: meetingID})
}

// GetMessages fetches a room's history.
func (c *Client) GetMessages(ctx context.Context, meetingID int64) (*models.MessageHistory, error) {
	var history models.MessageHistory
	if err := c.transport.Request(ctx, models.EventGetMessages, models.GetMessagesPayload{MeetingID: meetingID}, &history); err != nil {
		return nil, err
	}
	if history.MeetingID == 0 {
		history.MeetingID = meetingID
	}
	return &history, nil
}

// SendMessage posts a message to a room. The server echoes it back as a
// newMessage event.
func (c *Client) SendMessage(ctx context.Context, p models.SendMessagePayload) error {
	if err := validation.Validate(p); err != nil {
		return err
	}
	return c.transport.Emit(ctx, models.EventSendMessage, p)
}

// Connected reports whether the transport is live.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport {
	return c.transport
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
