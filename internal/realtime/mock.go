// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package realtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
)

// MockConfig seeds a MockTransport.
type MockConfig struct {
	// Self is the sender attached to messages sent through the mock.
	Self models.Sender

	Rooms   []models.ChatRoom
	History map[int64][]models.ChatMessage

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultMockConfig returns the seed used in mock mode.
func DefaultMockConfig() MockConfig {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	host := models.Sender{ID: 2, Nickname: "hiker_kim"}
	guide := models.Sender{ID: 3, Nickname: "lee_guide"}

	history := map[int64][]models.ChatMessage{
		1: {
			{ID: 1, MeetingID: 1, SenderID: host.ID, Sender: host, Content: "Meet at the north gate at 8", CreatedAt: base},
			{ID: 2, MeetingID: 1, SenderID: guide.ID, Sender: guide, Content: "Bring water, it will be hot", CreatedAt: base.Add(5 * time.Minute)},
		},
		2: {
			{ID: 3, MeetingID: 2, SenderID: guide.ID, Sender: guide, Content: "Book club starts with chapter 3", CreatedAt: base.Add(-time.Hour)},
		},
		3: {},
	}

	return MockConfig{
		Self: models.Sender{ID: 1, Nickname: "moimo"},
		Rooms: []models.ChatRoom{
			{MeetingID: 1, Title: "Saturday Hiking", MemberCount: 8, LastMessage: history[1][1].Preview()},
			{MeetingID: 2, Title: "Book Club", MemberCount: 5, LastMessage: history[2][0].Preview()},
			{MeetingID: 3, Title: "Board Game Night", MemberCount: 4},
		},
		History: history,
	}
}

// MockTransport emulates the realtime server in process. Events are
// delivered to the handler on a single goroutine in the order produced.
type MockTransport struct {
	mu        sync.Mutex
	cfg       MockConfig
	connected bool
	closed    bool
	joined    map[int64]bool
	history   map[int64][]models.ChatMessage
	nextID    int64
	emitted   []string

	handler   EventHandler
	handlerMu sync.RWMutex

	events chan models.Frame
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewMockTransport creates a mock seeded from cfg.
func NewMockTransport(cfg MockConfig) *MockTransport {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &MockTransport{
		cfg:     cfg,
		joined:  make(map[int64]bool),
		history: make(map[int64][]models.ChatMessage, len(cfg.History)),
		events:  make(chan models.Frame, 64),
		done:    make(chan struct{}),
	}
	for id, msgs := range cfg.History {
		m.history[id] = append([]models.ChatMessage(nil), msgs...)
		for _, msg := range msgs {
			if msg.ID > m.nextID {
				m.nextID = msg.ID
			}
		}
	}
	return m
}

// SetHandler registers the receiver for server events.
func (m *MockTransport) SetHandler(h EventHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handler = h
}

// SetReconnectHandler is a no-op: a mock connects once and never drops.
func (m *MockTransport) SetReconnectHandler(func()) {}

// Connect marks the mock connected and starts event delivery.
func (m *MockTransport) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrConnectionClosed
	}
	if m.connected {
		return nil
	}
	m.connected = true
	metrics.SetRealtimeConnected(true)

	m.wg.Add(1)
	go m.deliver()

	logging.Info().Msg("[realtime] Mock transport connected")
	return nil
}

func (m *MockTransport) deliver() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case frame := <-m.events:
			metrics.RecordRealtimeEvent("in", frame.Event)
			m.handlerMu.RLock()
			h := m.handler
			m.handlerMu.RUnlock()
			if h != nil {
				h(frame.Event, frame.Data)
			}
		}
	}
}

// Emit handles a fire-and-forget event.
func (m *MockTransport) Emit(ctx context.Context, event string, payload interface{}) error {
	_, err := m.handle(ctx, event, payload)
	return err
}

// Request handles an event and decodes its acknowledgment into reply.
func (m *MockTransport) Request(ctx context.Context, event string, payload, reply interface{}) error {
	ack, err := m.handle(ctx, event, payload)
	if err != nil {
		return err
	}
	if reply == nil || ack == nil {
		return nil
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("encode %s ack: %w", event, err)
	}
	return json.Unmarshal(data, reply)
}

func (m *MockTransport) handle(ctx context.Context, event string, payload interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Round-trip the payload so the mock sees exactly what the wire would carry.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrNotConnected
	}
	m.emitted = append(m.emitted, event)
	metrics.RecordRealtimeEvent("out", event)

	switch event {
	case models.EventJoinRoom:
		var p models.JoinRoomPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &RemoteError{Event: event, Message: "invalid payload"}
		}
		m.joined[p.MeetingID] = true
		return nil, nil

	case models.EventGetMessages:
		var p models.GetMessagesPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &RemoteError{Event: event, Message: "invalid payload"}
		}
		msgs := append([]models.ChatMessage{}, m.history[p.MeetingID]...)
		return models.MessageHistory{MeetingID: p.MeetingID, Messages: msgs}, nil

	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &RemoteError{Event: event, Message: "invalid payload"}
		}
		m.nextID++
		msg := models.ChatMessage{
			ID:        m.nextID,
			MeetingID: p.MeetingID,
			SenderID:  m.cfg.Self.ID,
			Sender:    m.cfg.Self,
			Content:   p.Content,
			CreatedAt: m.cfg.Now(),
		}
		m.history[p.MeetingID] = append(m.history[p.MeetingID], msg)
		m.enqueueLocked(msg)
		return msg, nil

	default:
		return nil, &RemoteError{Event: event, Message: "unknown event"}
	}
}

// enqueueLocked queues a newMessage event. m.mu must be held.
func (m *MockTransport) enqueueLocked(msg models.ChatMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Warn().Err(err).Msg("[realtime] Mock failed to encode message")
		return
	}
	frame := models.Frame{Event: models.EventNewMessage, Data: data, Timestamp: m.cfg.Now().UnixMilli()}
	select {
	case m.events <- frame:
	case <-m.done:
	}
}

// Inject simulates a message from another member arriving on the channel.
// The message is appended to the room history and delivered as newMessage.
func (m *MockTransport) Inject(msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if msg.ID == 0 {
		m.nextID++
		msg.ID = m.nextID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.cfg.Now()
	}
	if msg.SenderID == 0 {
		msg.SenderID = msg.Sender.ID
	}
	m.history[msg.MeetingID] = append(m.history[msg.MeetingID], msg)
	m.enqueueLocked(msg)
	return nil
}

// Rooms returns the seeded room list, most recent message first.
func (m *MockTransport) Rooms() []models.ChatRoom {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := append([]models.ChatRoom(nil), m.cfg.Rooms...)
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i].LastMessage, rooms[j].LastMessage
		if a == nil || b == nil {
			return a != nil
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return rooms
}

// Emitted returns the events sent through the mock, in order.
func (m *MockTransport) Emitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.emitted...)
}

// Joined reports whether the room was joined.
func (m *MockTransport) Joined(meetingID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined[meetingID]
}

// Connected reports whether Connect succeeded and Close was not called.
func (m *MockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Close stops event delivery. Later calls are no-ops.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	wasConnected := m.connected
	m.connected = false
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	if wasConnected {
		metrics.SetRealtimeConnected(false)
	}
	return nil
}
