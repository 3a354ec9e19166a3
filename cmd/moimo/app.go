// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tomtom215/moimo/internal/api"
	"github.com/tomtom215/moimo/internal/chat"
	"github.com/tomtom215/moimo/internal/config"
	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/gateway"
	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/realtime"
	"github.com/tomtom215/moimo/internal/session"
)

// errNotLoggedIn is returned when there is neither a login nor a session to
// resume and the realtime channel needs a credential.
var errNotLoggedIn = errors.New("not logged in: pass -email and -password")

// app holds the wired client components.
type app struct {
	cfg       *config.Config
	persister *credential.BadgerPersister
	store     *credential.MemoryStore
	client    *api.Client
	verifier  *session.Verifier
	holder    *realtime.Holder
	rooms     *chat.RoomCache
	chat      *chat.Session

	outMu sync.Mutex
	out   io.Writer
}

func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, out: out}

	var storeOpts []credential.Option
	if cfg.Credential.StorePath != "" {
		p, err := credential.OpenBadgerPersister(cfg.Credential.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		a.persister = p
		storeOpts = append(storeOpts, credential.WithPersister(p))
	}
	a.store = credential.NewStore(storeOpts...)

	gw, err := gateway.New(gateway.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.HTTP.Timeout,
		MaxRetries:      cfg.Session.MaxRetries,
		RateLimit:       cfg.HTTP.RateLimit,
		RateBurst:       cfg.HTTP.RateBurst,
		BreakerFailures: cfg.HTTP.BreakerFailures,
		BreakerTimeout:  cfg.HTTP.BreakerTimeout,
	}, a.store)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = api.New(gw, a.store)
	a.verifier = session.NewVerifier(a.client, a.store, session.WithFreshness(cfg.Session.Freshness))

	factory := realtime.MockFactory(realtime.DefaultMockConfig())
	if !cfg.Realtime.MockMode {
		factory = realtime.WebSocketFactory(realtime.WebSocketConfig{
			URL:               cfg.Realtime.URL,
			HandshakeTimeout:  cfg.Realtime.HandshakeTimeout,
			ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		})
	}
	a.holder = realtime.NewHolder(factory)

	a.rooms = chat.NewRoomCache(chat.DefaultRoomTTL)
	a.chat = chat.NewSession(a.store, a.rooms, chat.WithMockMode(cfg.Realtime.MockMode))
	a.chat.OnMessage(a.printLive)
	a.holder.Subscribe(a.chat.Attach)

	return a, nil
}

func (a *app) close() {
	if a.verifier != nil {
		a.verifier.Close()
	}
	if a.rooms != nil {
		a.rooms.Close()
	}
	if a.holder != nil {
		if err := a.holder.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing realtime connection failed")
		}
	}
	if a.persister != nil {
		if err := a.persister.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing credential store failed")
		}
	}
}

// authenticate logs in when an email is given, then confirms the session.
// In mock mode a missing session is not an error.
func (a *app) authenticate(ctx context.Context, email, password string) (*models.SessionSnapshot, error) {
	if email != "" {
		if _, err := a.client.Login(ctx, models.LoginRequest{Email: email, Password: password}); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		a.verifier.Invalidate()
	} else if !a.store.Get().HasToken() && a.cfg.Realtime.MockMode {
		return nil, nil
	}

	snap := a.verifier.Verify(ctx)
	if snap == nil && !a.cfg.Realtime.MockMode {
		return nil, errNotLoggedIn
	}
	return snap, nil
}

// waitConnected blocks until the supervisor has attached a realtime client.
func (a *app) waitConnected(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for a.chat.State() == chat.StateDisconnected {
		select {
		case <-ctx.Done():
			return fmt.Errorf("realtime connection: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// roomSource lists rooms from the REST service, or from the mock transport
// in mock mode.
func (a *app) roomSource() chat.RoomSource {
	return chat.RoomSourceFunc(func(ctx context.Context) ([]models.ChatRoom, error) {
		if !a.cfg.Realtime.MockMode {
			return a.client.ChatRooms(ctx)
		}
		if c := a.holder.Current(); c != nil {
			if mt, ok := c.Transport().(*realtime.MockTransport); ok {
				return mt.Rooms(), nil
			}
		}
		return nil, chat.ErrNotConnected
	})
}

func (a *app) loadRooms(ctx context.Context) ([]models.ChatRoom, error) {
	rooms, err := a.rooms.Load(ctx, a.roomSource())
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	return rooms, nil
}

// openRoom selects meetingID, or the most recent room when it is zero, and
// prints its transcript.
func (a *app) openRoom(ctx context.Context, meetingID int64) error {
	if meetingID == 0 {
		rooms, ok := a.rooms.Rooms()
		if !ok || len(rooms) == 0 {
			return errors.New("no chat rooms")
		}
		meetingID = rooms[0].MeetingID
	}
	if err := a.chat.SelectRoom(ctx, meetingID); err != nil {
		return fmt.Errorf("open room %d: %w", meetingID, err)
	}

	a.printf("--- room %d ---\n", meetingID)
	for _, msg := range a.chat.Transcript() {
		a.printMessage(msg)
	}
	return nil
}

func (a *app) printRooms() {
	rooms, ok := a.rooms.Rooms()
	if !ok {
		a.printf("rooms not loaded\n")
		return
	}
	for _, r := range rooms {
		last := "(no messages)"
		if r.LastMessage != nil {
			last = r.LastMessage.SenderNickname + ": " + r.LastMessage.Content
		}
		a.printf("%4d  %-20s %2d members  %s\n", r.MeetingID, r.Title, r.MemberCount, last)
	}
}

// printLive prints incoming messages for the open room.
func (a *app) printLive(msg models.ChatMessage) {
	if msg.MeetingID == a.chat.RoomID() {
		a.printMessage(msg)
		return
	}
	a.printf("(new message in room %d)\n", msg.MeetingID)
}

func (a *app) printMessage(msg models.ChatMessage) {
	a.printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.Sender.Nickname, msg.Content)
}

func (a *app) printf(format string, args ...interface{}) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
