// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/realtime"
)

var (
	// ErrNotConnected is returned when no live realtime client is attached.
	ErrNotConnected = realtime.ErrNotConnected

	// ErrNoRoomSelected is returned by SendMessage before SelectRoom.
	ErrNoRoomSelected = errors.New("chat: no room selected")

	// ErrNoUser is returned by SendMessage when the credential has no user id
	// and mock mode is off.
	ErrNoUser = errors.New("chat: no user id")
)

// rejoinTimeout bounds the join and history fetch run after a reconnect.
const rejoinTimeout = 15 * time.Second

// State is the session's connection and room state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one chat consumer bound to the current realtime client.
type Session struct {
	store credential.Store
	rooms *RoomCache
	mock  bool

	mu         sync.Mutex
	client     *realtime.Client
	state      State
	roomID     int64
	transcript []models.ChatMessage
	// selection is bumped by every SelectRoom and Attach; a history ack is
	// applied only if the selection it was requested under is still current.
	selection uint64

	onMessage atomic.Pointer[realtime.MessageHandler]
}

// Option configures a Session.
type Option func(*Session)

// WithMockMode lets SendMessage proceed without a user id.
func WithMockMode(mock bool) Option {
	return func(s *Session) { s.mock = mock }
}

// NewSession creates a disconnected session. rooms may be nil.
func NewSession(store credential.Store, rooms *RoomCache, opts ...Option) *Session {
	s := &Session{store: store, rooms: rooms}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach binds the session to c, or detaches it when c is nil. Either way the
// room selection and transcript are reset. It is suitable as a
// realtime.Holder subscriber.
func (s *Session) Attach(c *realtime.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection++
	s.roomID = 0
	s.transcript = nil
	s.client = c

	if c == nil {
		s.state = StateDisconnected
		return
	}
	s.state = StateConnected
	c.OnNewMessage(s.handleMessage)
	c.OnReconnect(func() { s.rejoin(c) })
}

// rejoin restores the open room on c after it reconnected: the new
// connection is joined to the room again and the transcript is refreshed
// from history, picking up messages missed while disconnected.
func (s *Session) rejoin(c *realtime.Client) {
	s.mu.Lock()
	if s.client != c || s.state != StateInRoom {
		s.mu.Unlock()
		return
	}
	s.selection++
	selection, roomID := s.selection, s.roomID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), rejoinTimeout)
	defer cancel()

	log := logging.With().Str("component", "chat").Int64("meeting_id", roomID).Logger()
	if err := c.JoinRoom(ctx, roomID); err != nil {
		log.Warn().Err(err).Msg("Failed to rejoin room after reconnect")
		return
	}
	history, err := c.GetMessages(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to refresh history after reconnect")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection != selection {
		return
	}
	s.transcript = mergeHistory(history.Messages, s.transcript)
	log.Info().Int("messages", len(s.transcript)).Msg("Rejoined room after reconnect")
}

// OnMessage sets the consumer callback run after each incoming message has
// been applied. Replacing it does not touch the connection.
func (s *Session) OnMessage(h realtime.MessageHandler) {
	if h == nil {
		s.onMessage.Store(nil)
		return
	}
	s.onMessage.Store(&h)
}

// SelectRoom opens a room: it joins it, fetches its history and makes it the
// transcript. Switching rooms keeps the connection.
func (s *Session) SelectRoom(ctx context.Context, meetingID int64) error {
	s.mu.Lock()
	c := s.client
	if c == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.selection++
	selection := s.selection
	prevRoom, prevState, prevTranscript := s.roomID, s.state, s.transcript
	s.roomID = meetingID
	s.state = StateInRoom
	s.transcript = nil
	s.mu.Unlock()

	// A failed switch puts the previous room back, unless another
	// selection has been made since.
	restore := func(err error) error {
		s.mu.Lock()
		if s.selection == selection {
			s.roomID = prevRoom
			s.state = prevState
			s.transcript = prevTranscript
		}
		s.mu.Unlock()
		return err
	}

	if err := c.JoinRoom(ctx, meetingID); err != nil {
		return restore(fmt.Errorf("join room %d: %w", meetingID, err))
	}
	history, err := c.GetMessages(ctx, meetingID)
	if err != nil {
		return restore(fmt.Errorf("get messages for room %d: %w", meetingID, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selection != selection {
		logging.Debug().
			Int64("meeting_id", meetingID).
			Int64("current_room", s.roomID).
			Msg("discarding history for a room no longer selected")
		return nil
	}

	s.transcript = mergeHistory(history.Messages, s.transcript)
	return nil
}

// mergeHistory appends to history the live messages it does not already
// contain. Messages that arrived while history was in flight may be in both.
func mergeHistory(history, live []models.ChatMessage) []models.ChatMessage {
	seen := make(map[int64]bool, len(history))
	merged := make([]models.ChatMessage, 0, len(history)+len(live))
	for _, m := range history {
		seen[m.ID] = true
		merged = append(merged, m)
	}
	for _, m := range live {
		if !seen[m.ID] {
			merged = append(merged, m)
		}
	}
	return merged
}

// SendMessage posts content to the open room. Preconditions are checked
// before anything is transmitted.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	s.mu.Lock()
	c, roomID := s.client, s.roomID
	s.mu.Unlock()

	if c == nil || !c.Connected() {
		return ErrNotConnected
	}
	if roomID == 0 {
		return ErrNoRoomSelected
	}
	if !s.mock && s.store.Get().UserID == 0 {
		return ErrNoUser
	}

	return c.SendMessage(ctx, models.SendMessagePayload{MeetingID: roomID, Content: content})
}

func (s *Session) handleMessage(msg models.ChatMessage) {
	if s.rooms != nil {
		s.rooms.ApplyMessage(msg)
	}

	s.mu.Lock()
	if s.state == StateInRoom && msg.MeetingID == s.roomID {
		s.transcript = append(s.transcript, msg)
	}
	s.mu.Unlock()

	if h := s.onMessage.Load(); h != nil {
		(*h)(msg)
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the open room, or 0.
func (s *Session) RoomID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Transcript returns a copy of the open room's messages in arrival order.
func (s *Session) Transcript() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}
