// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/moimo/internal/config"
	"github.com/tomtom215/moimo/internal/fakebackend"
	"github.com/tomtom215/moimo/internal/gateway"
	"github.com/tomtom215/moimo/internal/supervisor/services"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startBackend(t *testing.T) (*fakebackend.Server, *config.Config) {
	t.Helper()
	fb := fakebackend.New(fakebackend.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(fb.Handler())
	t.Cleanup(func() {
		fb.Close()
		srv.Close()
	})

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL + "/api"
	cfg.Realtime.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cfg.Realtime.ReconcileInterval = 20 * time.Millisecond
	cfg.HTTP.Timeout = 5 * time.Second
	return fb, cfg
}

func startRealtime(t *testing.T, a *app) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	svc := services.NewRealtimeService(a.store, a.holder, services.RealtimeOptions{
		Interval: a.cfg.Realtime.ReconcileInterval,
		MockMode: a.cfg.Realtime.MockMode,
	})
	done := make(chan struct{})
	go func() {
		_ = svc.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChatAgainstFakeBackend(t *testing.T) {
	fb, cfg := startBackend(t)
	out := &lockedBuffer{}
	a, err := newApp(cfg, out)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()
	ctx := context.Background()

	snap, err := a.authenticate(ctx, fakebackend.SeedEmail, fakebackend.SeedPassword)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if snap == nil || snap.User == nil || snap.User.Nickname != fakebackend.SeedNickname {
		t.Fatalf("snapshot = %+v", snap)
	}

	startRealtime(t, a)
	if err := a.waitConnected(ctx, 5*time.Second); err != nil {
		t.Fatalf("waitConnected: %v", err)
	}

	rooms, err := a.loadRooms(ctx)
	if err != nil {
		t.Fatalf("loadRooms: %v", err)
	}
	if len(rooms) != 3 || rooms[0].MeetingID != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}

	if err := a.openRoom(ctx, 0); err != nil {
		t.Fatalf("openRoom: %v", err)
	}
	if a.chat.RoomID() != 1 || len(a.chat.Transcript()) != 2 {
		t.Fatalf("room %d transcript %d, want room 1 with 2 messages", a.chat.RoomID(), len(a.chat.Transcript()))
	}

	if quit := a.handleLine(ctx, "hello from the cli"); quit {
		t.Fatal("plain message ended the loop")
	}
	waitFor(t, "echo of sent message", func() bool {
		tr := a.chat.Transcript()
		return len(tr) == 3 && tr[2].Content == "hello from the cli"
	})

	if _, err := fb.PostMessage(2, 3, "chapter 4 next"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	a.handleLine(ctx, "/join 2")
	if a.chat.RoomID() != 2 {
		t.Fatalf("RoomID = %d after /join 2", a.chat.RoomID())
	}
	tr := a.chat.Transcript()
	if len(tr) == 0 || tr[len(tr)-1].Content != "chapter 4 next" {
		t.Errorf("room 2 transcript = %+v", tr)
	}

	if !strings.Contains(out.String(), "--- room 2 ---") {
		t.Errorf("output missing room header:\n%s", out.String())
	}
}

func TestAuthenticateFailures(t *testing.T) {
	_, cfg := startBackend(t)
	a, err := newApp(cfg, &lockedBuffer{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	if _, err := a.authenticate(context.Background(), "", ""); !errors.Is(err, errNotLoggedIn) {
		t.Errorf("no email err = %v, want errNotLoggedIn", err)
	}
	_, err = a.authenticate(context.Background(), fakebackend.SeedEmail, "wrong-password")
	if !gateway.IsUnauthorized(err) {
		t.Errorf("bad password err = %v, want 401", err)
	}
	if a.store.Get().LoggedIn {
		t.Error("failed login left the store logged in")
	}
}

func TestRunMockMode(t *testing.T) {
	cfg := config.Default()
	cfg.Realtime.MockMode = true
	cfg.Realtime.ReconcileInterval = 20 * time.Millisecond

	out := &lockedBuffer{}
	in := strings.NewReader("/rooms\n/bogus\n/join x\nhi there\n/quit\n")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, cfg, options{}, in, out); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Saturday Hiking", "--- room ", "unknown command /bogus", "usage: /join"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(cfg, options{mock: true, fakeBackend: "127.0.0.1:9999"})

	if !cfg.Realtime.MockMode {
		t.Error("mock flag not applied")
	}
	if cfg.API.BaseURL != "http://127.0.0.1:9999/api" || cfg.Realtime.URL != "ws://127.0.0.1:9999/ws" {
		t.Errorf("urls = %q %q", cfg.API.BaseURL, cfg.Realtime.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
