// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package chat

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/fakebackend"
	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/realtime"
)

type fixture struct {
	mock    *realtime.MockTransport
	client  *realtime.Client
	store   *credential.MemoryStore
	rooms   *RoomCache
	session *Session
}

func newFixture(t *testing.T, mockMode bool, transport func(*realtime.MockTransport) realtime.Transport) *fixture {
	t.Helper()

	cfg := realtime.DefaultMockConfig()
	cfg.History[2] = []models.ChatMessage{
		{ID: 20, MeetingID: 2, Content: "room two history"},
	}
	mock := realtime.NewMockTransport(cfg)

	var tr realtime.Transport = mock
	if transport != nil {
		tr = transport(mock)
	}
	client := realtime.NewClient(tr)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	rooms := NewRoomCache(0)
	t.Cleanup(rooms.Close)
	rooms.SetRooms(mock.Rooms())

	store := credential.NewStore()
	s := NewSession(store, rooms, WithMockMode(mockMode))
	s.Attach(client)

	return &fixture{mock: mock, client: client, store: store, rooms: rooms, session: s}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 5s")
}

func count(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

func TestSession_SequentialRoomSwitches(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()

	if f.session.State() != StateConnected {
		t.Fatalf("state = %v, want connected", f.session.State())
	}

	if err := f.session.SelectRoom(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := len(f.session.Transcript()); got != 2 {
		t.Fatalf("room 1 transcript has %d messages, want 2", got)
	}

	if err := f.session.SelectRoom(ctx, 2); err != nil {
		t.Fatal(err)
	}

	emitted := f.mock.Emitted()
	if count(emitted, models.EventJoinRoom) != 2 || count(emitted, models.EventGetMessages) != 2 || len(emitted) != 4 {
		t.Errorf("emitted = %v, want one join and one getMessages per switch", emitted)
	}

	transcript := f.session.Transcript()
	if len(transcript) != 1 || transcript[0].Content != "room two history" {
		t.Errorf("transcript = %+v, want only room 2 history", transcript)
	}
	if f.session.RoomID() != 2 || f.session.State() != StateInRoom {
		t.Errorf("room = %d state = %v", f.session.RoomID(), f.session.State())
	}
	if !f.client.Connected() {
		t.Error("room switch must not drop the connection")
	}
}

func TestSession_SendWithoutRoomEmitsNothing(t *testing.T) {
	f := newFixture(t, true, nil)

	err := f.session.SendMessage(context.Background(), "hello")
	if !errors.Is(err, ErrNoRoomSelected) {
		t.Fatalf("expected ErrNoRoomSelected, got %v", err)
	}
	if len(f.mock.Emitted()) != 0 {
		t.Errorf("nothing should be emitted, got %v", f.mock.Emitted())
	}
}

func TestSession_SendRequiresUserOutsideMockMode(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	if err := f.session.SelectRoom(ctx, 1); err != nil {
		t.Fatal(err)
	}
	before := len(f.mock.Emitted())

	if err := f.session.SendMessage(ctx, "hi"); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
	if len(f.mock.Emitted()) != before {
		t.Error("rejected send must not emit")
	}

	id := int64(1)
	f.store.Login("moimo", "tok", &id)
	if err := f.session.SendMessage(ctx, "hi"); err != nil {
		t.Fatalf("send with user: %v", err)
	}
}

func TestSession_SendWhenDetached(t *testing.T) {
	s := NewSession(credential.NewStore(), nil, WithMockMode(true))
	if err := s.SendMessage(context.Background(), "hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := s.SelectRoom(context.Background(), 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSession_IncomingMessageUpdatesBothProjections(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()

	if err := f.session.SelectRoom(ctx, 3); err != nil {
		t.Fatal(err)
	}

	delivered := make(chan models.ChatMessage, 2)
	f.session.OnMessage(func(m models.ChatMessage) { delivered <- m })

	other := models.Sender{ID: 5, Nickname: "park"}
	if err := f.mock.Inject(models.ChatMessage{MeetingID: 3, Sender: other, Content: "open room"}); err != nil {
		t.Fatal(err)
	}
	if err := f.mock.Inject(models.ChatMessage{MeetingID: 2, Sender: other, Content: "background room"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(5 * time.Second):
			t.Fatal("message not delivered")
		}
	}

	transcript := f.session.Transcript()
	if len(transcript) != 1 || transcript[0].Content != "open room" {
		t.Errorf("transcript = %+v, want only the open room's message", transcript)
	}

	rooms, _ := f.rooms.Rooms()
	if got := order(rooms); !equalIDs(got, []int64{2, 3, 1}) {
		t.Errorf("room order = %v, want [2 3 1]", got)
	}
	if rooms[0].LastMessage.Content != "background room" {
		t.Errorf("room 2 preview = %q", rooms[0].LastMessage.Content)
	}
}

func TestSession_SentMessageEchoesIntoTranscript(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()

	if err := f.session.SelectRoom(ctx, 1); err != nil {
		t.Fatal(err)
	}

	delivered := make(chan struct{}, 1)
	f.session.OnMessage(func(models.ChatMessage) { delivered <- struct{}{} })

	if err := f.session.SendMessage(ctx, "on my way"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("echo not delivered")
	}

	transcript := f.session.Transcript()
	if last := transcript[len(transcript)-1]; last.Content != "on my way" {
		t.Errorf("last transcript message = %q", last.Content)
	}
}

// gatedTransport holds getMessages for one room until released.
type gatedTransport struct {
	*realtime.MockTransport
	room    int64
	gate    chan struct{}
	waiting chan struct{}
	once    sync.Once
}

func (g *gatedTransport) Request(ctx context.Context, event string, payload, reply interface{}) error {
	if p, ok := payload.(models.GetMessagesPayload); ok && event == models.EventGetMessages && p.MeetingID == g.room {
		g.once.Do(func() { close(g.waiting) })
		<-g.gate
	}
	return g.MockTransport.Request(ctx, event, payload, reply)
}

func TestSession_StaleHistoryDiscarded(t *testing.T) {
	gt := &gatedTransport{room: 1, gate: make(chan struct{}), waiting: make(chan struct{})}
	f := newFixture(t, true, func(m *realtime.MockTransport) realtime.Transport {
		gt.MockTransport = m
		return gt
	})
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() { firstDone <- f.session.SelectRoom(ctx, 1) }()

	select {
	case <-gt.waiting:
	case <-time.After(5 * time.Second):
		t.Fatal("room 1 history request never issued")
	}

	if err := f.session.SelectRoom(ctx, 2); err != nil {
		t.Fatal(err)
	}
	close(gt.gate)

	if err := <-firstDone; err != nil {
		t.Fatalf("stale selection returned %v", err)
	}

	transcript := f.session.Transcript()
	if len(transcript) != 1 || transcript[0].MeetingID != 2 {
		t.Errorf("transcript = %+v, want room 2 only", transcript)
	}
	if f.session.RoomID() != 2 {
		t.Errorf("room = %d, want 2", f.session.RoomID())
	}
}

func TestSession_DetachResets(t *testing.T) {
	f := newFixture(t, true, nil)
	if err := f.session.SelectRoom(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	f.session.Attach(nil)

	if f.session.State() != StateDisconnected {
		t.Errorf("state = %v", f.session.State())
	}
	if f.session.RoomID() != 0 || len(f.session.Transcript()) != 0 {
		t.Error("room state should be cleared")
	}
}

func TestSession_HolderSubscription(t *testing.T) {
	h := realtime.NewHolder(realtime.MockFactory(realtime.DefaultMockConfig()))
	defer h.Close()

	s := NewSession(credential.NewStore(), nil, WithMockMode(true))
	h.Subscribe(s.Attach)

	if _, err := h.Ensure(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateConnected {
		t.Errorf("state after ensure = %v", s.State())
	}

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state after close = %v", s.State())
	}
}

func TestState_String(t *testing.T) {
	if StateInRoom.String() != "in_room" || State(9).String() != "State(9)" {
		t.Error("unexpected State strings")
	}
}

// rejectingTransport fails getMessages for one room, as a server does for a
// room the user is not a member of.
type rejectingTransport struct {
	*realtime.MockTransport
	room int64
}

func (r *rejectingTransport) Request(ctx context.Context, event string, payload, reply interface{}) error {
	if p, ok := payload.(models.GetMessagesPayload); ok && event == models.EventGetMessages && p.MeetingID == r.room {
		return &realtime.RemoteError{Event: event, Message: "not a member of this room"}
	}
	return r.MockTransport.Request(ctx, event, payload, reply)
}

func TestSession_FailedSwitchKeepsPreviousRoom(t *testing.T) {
	f := newFixture(t, true, func(m *realtime.MockTransport) realtime.Transport {
		return &rejectingTransport{MockTransport: m, room: 4}
	})
	ctx := context.Background()

	if err := f.session.SelectRoom(ctx, 1); err != nil {
		t.Fatal(err)
	}
	before := f.session.Transcript()

	var remote *realtime.RemoteError
	if err := f.session.SelectRoom(ctx, 4); !errors.As(err, &remote) {
		t.Fatalf("SelectRoom(4) error = %v, want RemoteError", err)
	}

	if f.session.State() != StateInRoom || f.session.RoomID() != 1 {
		t.Errorf("after failed switch: state=%v room=%d, want in_room 1", f.session.State(), f.session.RoomID())
	}
	if got := f.session.Transcript(); len(got) != len(before) {
		t.Errorf("transcript has %d messages, want the %d of room 1", len(got), len(before))
	}

	if err := f.session.SendMessage(ctx, "still here"); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool {
		tr := f.session.Transcript()
		return len(tr) == len(before)+1 && tr[len(tr)-1].MeetingID == 1
	})
}

func TestSession_FailedFirstSelectionLeavesNoRoom(t *testing.T) {
	f := newFixture(t, true, func(m *realtime.MockTransport) realtime.Transport {
		return &rejectingTransport{MockTransport: m, room: 4}
	})
	ctx := context.Background()

	if err := f.session.SelectRoom(ctx, 4); err == nil {
		t.Fatal("expected SelectRoom(4) to fail")
	}
	if f.session.State() != StateConnected || f.session.RoomID() != 0 {
		t.Errorf("state=%v room=%d, want connected with no room", f.session.State(), f.session.RoomID())
	}
	if err := f.session.SendMessage(ctx, "hello"); !errors.Is(err, ErrNoRoomSelected) {
		t.Errorf("SendMessage error = %v, want ErrNoRoomSelected", err)
	}
	if n := count(f.mock.Emitted(), models.EventSendMessage); n != 0 {
		t.Errorf("sendMessage emitted %d times", n)
	}
}

func TestSession_RejoinsOpenRoomAfterReconnect(t *testing.T) {
	fb := fakebackend.New(fakebackend.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(fb.Handler())
	t.Cleanup(func() {
		fb.Close()
		srv.Close()
	})

	token, err := fb.TokenFor(fakebackend.SeedUserID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tr := realtime.NewWebSocketTransport(realtime.WebSocketConfig{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Token:             token,
		HandshakeTimeout:  2 * time.Second,
		ReconnectAttempts: 5,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
	})
	client := realtime.NewClient(tr)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	store := credential.NewStore()
	id := int64(fakebackend.SeedUserID)
	store.Login(fakebackend.SeedNickname, token, &id)
	s := NewSession(store, nil)
	s.Attach(client)

	var liveMu sync.Mutex
	var live []string
	s.OnMessage(func(m models.ChatMessage) {
		liveMu.Lock()
		live = append(live, m.Content)
		liveMu.Unlock()
	})
	sawLive := func(content string) func() bool {
		return func() bool {
			liveMu.Lock()
			defer liveMu.Unlock()
			for _, c := range live {
				if c == content {
					return true
				}
			}
			return false
		}
	}

	if err := s.SelectRoom(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := fb.PostMessage(1, 2, "before drop"); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, sawLive("before drop"))

	// Drop every socket; the transport reconnects on its own.
	fb.Close()
	waitUntil(t, func() bool { return fb.RoomJoins(1) >= 2 })
	if s.State() != StateInRoom || s.RoomID() != 1 {
		t.Fatalf("state=%v room=%d after reconnect", s.State(), s.RoomID())
	}

	if _, err := fb.PostMessage(1, 2, "after reconnect"); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, sawLive("after reconnect"))

	transcript := s.Transcript()
	if last := transcript[len(transcript)-1]; last.Content != "after reconnect" {
		t.Errorf("last transcript message = %q", last.Content)
	}
	seen := make(map[int64]bool)
	for _, m := range transcript {
		if seen[m.ID] {
			t.Errorf("message %d appears twice in the transcript", m.ID)
		}
		seen[m.ID] = true
	}
}
