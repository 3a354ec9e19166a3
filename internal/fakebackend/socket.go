// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package fakebackend

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var socketIDCounter atomic.Uint64

// socket is one realtime connection.
type socket struct {
	id     uint64
	userID int64
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// hub tracks connections and their room membership. Broadcasts visit
// sockets in id order.
type hub struct {
	mu      sync.Mutex
	sockets map[uint64]*socket
	joined  map[uint64]map[int64]bool
	joins   map[int64]int
}

func newHub() *hub {
	return &hub{
		sockets: make(map[uint64]*socket),
		joined:  make(map[uint64]map[int64]bool),
		joins:   make(map[int64]int),
	}
}

func (h *hub) register(s *socket) {
	h.mu.Lock()
	h.sockets[s.id] = s
	h.joined[s.id] = make(map[int64]bool)
	h.mu.Unlock()
}

func (h *hub) unregister(s *socket) {
	h.mu.Lock()
	delete(h.sockets, s.id)
	delete(h.joined, s.id)
	h.mu.Unlock()

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()
}

func (h *hub) join(s *socket, meetingID int64) {
	h.mu.Lock()
	if rooms, ok := h.joined[s.id]; ok {
		rooms[meetingID] = true
		h.joins[meetingID]++
	}
	h.mu.Unlock()
}

func (h *hub) joinCount(meetingID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joins[meetingID]
}

func (h *hub) broadcast(meetingID int64, msg models.ChatMessage) {
	raw, err := encodeFrame(models.EventNewMessage, "", msg, "")
	if err != nil {
		logging.Error().Err(err).Msg("[fakebackend] encode newMessage failed")
		return
	}

	h.mu.Lock()
	ids := make([]uint64, 0, len(h.sockets))
	for id := range h.sockets {
		if h.joined[id][meetingID] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	targets := make([]*socket, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, h.sockets[id])
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.enqueue(raw)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	all := make([]*socket, 0, len(h.sockets))
	for _, s := range h.sockets {
		all = append(all, s)
	}
	h.mu.Unlock()
	for _, s := range all {
		_ = s.conn.Close()
	}
}

// enqueue drops the frame when the socket is slow or gone.
func (s *socket) enqueue(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- raw:
	default:
		logging.Warn().Uint64("socket", s.id).Msg("[fakebackend] send buffer full, dropping frame")
	}
}

func encodeFrame(event, replyTo string, data interface{}, errMsg string) ([]byte, error) {
	f := models.Frame{
		Event:     event,
		ReplyTo:   replyTo,
		Error:     errMsg,
		Timestamp: time.Now().UnixMilli(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		f.Data = raw
	}
	return json.Marshal(f)
}

// handleSocket upgrades an authenticated request to a realtime connection.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired access token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("[fakebackend] websocket upgrade failed")
		return
	}

	sock := &socket{
		id:     socketIDCounter.Add(1),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	s.hub.register(sock)
	go s.writePump(sock)
	go s.readPump(sock)
}

func (s *Server) readPump(sock *socket) {
	defer func() {
		s.hub.unregister(sock)
		_ = sock.conn.Close()
	}()

	sock.conn.SetReadLimit(maxMessageSize)
	if err := sock.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	sock.conn.SetPongHandler(func(string) error {
		return sock.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := sock.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().Err(err).Msg("[fakebackend] websocket closed")
			}
			return
		}
		// Any inbound traffic proves liveness.
		_ = sock.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logging.Debug().Err(err).Msg("[fakebackend] malformed frame")
			continue
		}
		s.dispatch(sock, &frame)
	}
}

func (s *Server) writePump(sock *socket) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sock.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-sock.send:
			_ = sock.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sock.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sock.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = sock.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch handles one request frame. Every frame with an id is acked,
// including fire-and-forget events.
func (s *Server) dispatch(sock *socket, frame *models.Frame) {
	var (
		reply  interface{}
		errMsg string
	)

	switch frame.Event {
	case models.EventJoinRoom:
		var p models.JoinRoomPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			errMsg = "malformed joinRoom payload"
			break
		}
		if !s.member(p.MeetingID, sock.userID) {
			errMsg = "not a member of this room"
			break
		}
		s.hub.join(sock, p.MeetingID)
		reply = p

	case models.EventGetMessages:
		var p models.GetMessagesPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			errMsg = "malformed getMessages payload"
			break
		}
		history, ok := s.history(p.MeetingID, sock.userID)
		if !ok {
			errMsg = "not a member of this room"
			break
		}
		reply = history

	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.Content == "" {
			errMsg = "malformed sendMessage payload"
			break
		}
		msg, err := s.PostMessage(p.MeetingID, sock.userID, p.Content)
		if err != nil {
			errMsg = "not a member of this room"
			break
		}
		reply = msg

	default:
		errMsg = "unknown event " + frame.Event
	}

	if frame.ID == "" {
		return
	}
	raw, err := encodeFrame(models.EventAck, frame.ID, reply, errMsg)
	if err != nil {
		logging.Error().Err(err).Msg("[fakebackend] encode ack failed")
		return
	}
	sock.enqueue(raw)
}

func (s *Server) member(meetingID, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMember(meetingID, userID)
}

func (s *Server) history(meetingID, userID int64) (models.MessageHistory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isMember(meetingID, userID) {
		return models.MessageHistory{}, false
	}
	msgs := make([]models.ChatMessage, len(s.messages[meetingID]))
	copy(msgs, s.messages[meetingID])
	return models.MessageHistory{MeetingID: meetingID, Messages: msgs}, true
}
