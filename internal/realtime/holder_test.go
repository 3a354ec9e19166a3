// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingFactory struct {
	mu     sync.Mutex
	tokens []string
	made   []*MockTransport
}

func (f *countingFactory) factory(token string) Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := NewMockTransport(DefaultMockConfig())
	f.tokens = append(f.tokens, token)
	f.made = append(f.made, m)
	return m
}

func TestHolder_EnsureIdempotent(t *testing.T) {
	f := &countingFactory{}
	h := NewHolder(f.factory)
	defer h.Close()

	c1, err := h.Ensure(context.Background(), "tok")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := h.Ensure(context.Background(), "tok")
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Error("same token should return the same client")
	}
	if len(f.made) != 1 {
		t.Errorf("factory calls = %d, want 1", len(f.made))
	}
}

func TestHolder_TokenChangeTearsDownFirst(t *testing.T) {
	f := &countingFactory{}
	h := NewHolder(f.factory)
	defer h.Close()

	if _, err := h.Ensure(context.Background(), "old"); err != nil {
		t.Fatal(err)
	}

	var events []bool
	h.Subscribe(func(c *Client) {
		events = append(events, c != nil)
		if c != nil && f.made[0].Connected() {
			t.Error("new client announced while old connection still live")
		}
	})

	c, err := h.Ensure(context.Background(), "new")
	if err != nil {
		t.Fatal(err)
	}
	if f.made[0].Connected() {
		t.Error("old transport should be closed")
	}
	if !c.Connected() || h.Current() != c {
		t.Error("new client should be current and connected")
	}
	if len(events) != 2 || events[0] || !events[1] {
		t.Errorf("listener events = %v, want [false true]", events)
	}
	if f.tokens[1] != "new" {
		t.Errorf("factory tokens = %v", f.tokens)
	}
}

func TestHolder_CloseOnce(t *testing.T) {
	f := &countingFactory{}
	h := NewHolder(f.factory)

	if _, err := h.Ensure(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}

	closes := 0
	h.Subscribe(func(c *Client) {
		if c == nil {
			closes++
		}
	})

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if closes != 1 {
		t.Errorf("close notifications = %d, want 1", closes)
	}
	if h.Current() != nil {
		t.Error("holder should be empty")
	}
	if f.made[0].Connected() {
		t.Error("transport should be closed")
	}
}

type failingTransport struct {
	*MockTransport
}

func (failingTransport) Connect(context.Context) error { return errors.New("dial refused") }

func TestHolder_ConnectFailureLeavesEmpty(t *testing.T) {
	h := NewHolder(func(string) Transport {
		return failingTransport{NewMockTransport(DefaultMockConfig())}
	})

	if _, err := h.Ensure(context.Background(), "tok"); err == nil {
		t.Fatal("expected connect error")
	}
	if h.Current() != nil {
		t.Error("failed connect must not be held")
	}
}

// slowTransport holds Connect until released.
type slowTransport struct {
	*MockTransport
	started chan struct{}
	release chan struct{}
}

func (s *slowTransport) Connect(ctx context.Context) error {
	close(s.started)
	<-s.release
	return s.MockTransport.Connect(ctx)
}

func newSlowHolder() (*Holder, *slowTransport) {
	st := &slowTransport{
		MockTransport: NewMockTransport(DefaultMockConfig()),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	return NewHolder(func(string) Transport { return st }), st
}

func TestHolder_CurrentDoesNotWaitForDial(t *testing.T) {
	h, st := newSlowHolder()
	defer h.Close()

	type result struct {
		c   *Client
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := h.Ensure(context.Background(), "tok")
		done <- result{c, err}
	}()
	<-st.started

	current := make(chan *Client, 1)
	go func() { current <- h.Current() }()
	select {
	case c := <-current:
		if c != nil {
			t.Error("no client should be held while dialing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Current blocked on an in-flight dial")
	}

	close(st.release)
	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	if h.Current() != res.c {
		t.Error("dialed client was not installed")
	}
}

func TestHolder_CloseDuringDialDiscardsClient(t *testing.T) {
	h, st := newSlowHolder()

	done := make(chan error, 1)
	go func() {
		_, err := h.Ensure(context.Background(), "tok")
		done <- err
	}()
	<-st.started

	closed := make(chan struct{})
	go func() {
		_ = h.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an in-flight dial")
	}

	close(st.release)
	if err := <-done; !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Ensure error = %v, want ErrConnectionClosed", err)
	}
	if h.Current() != nil {
		t.Error("a client dialed across Close must not be held")
	}
	if st.Connected() {
		t.Error("discarded transport should be closed")
	}
}
