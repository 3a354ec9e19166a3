// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package realtime

import (
	"context"
	"sync"

	"github.com/tomtom215/moimo/internal/logging"
)

// Factory builds a transport for a credential. In mock mode token may be empty.
type Factory func(token string) Transport

// WebSocketFactory returns a Factory dialing cfg.URL with the given token.
func WebSocketFactory(cfg WebSocketConfig) Factory {
	return func(token string) Transport {
		c := cfg
		c.Token = token
		return NewWebSocketTransport(c)
	}
}

// MockFactory returns a Factory producing mock transports seeded from cfg.
func MockFactory(cfg MockConfig) Factory {
	return func(string) Transport {
		return NewMockTransport(cfg)
	}
}

// Holder keeps at most one live Client, keyed by the credential it was
// opened with.
type Holder struct {
	// ensureMu serializes Ensure. Dialing happens under it, not under mu,
	// so Current and Close stay responsive while a connect backs off.
	ensureMu sync.Mutex

	mu        sync.Mutex
	factory   Factory
	current   *Client
	token     string
	listeners []func(*Client)
	// closes counts Close calls; a dial that spans one is discarded.
	closes uint64
}

// NewHolder creates an empty holder.
func NewHolder(factory Factory) *Holder {
	return &Holder{factory: factory}
}

// Subscribe registers fn to be called with the new client whenever the held
// client changes, and with nil when it is closed. Calls happen with the
// holder lock held, so fn must not call back into the holder.
func (h *Holder) Subscribe(fn func(*Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Ensure returns a connected client for token. A live client for the same
// token is returned as is. A client for a different token is closed before
// the new one is dialed. A Close that lands while the new client is dialing
// wins: the client is discarded and ErrConnectionClosed returned.
func (h *Holder) Ensure(ctx context.Context, token string) (*Client, error) {
	h.ensureMu.Lock()
	defer h.ensureMu.Unlock()

	h.mu.Lock()
	cur, curToken := h.current, h.token
	h.mu.Unlock()

	if cur != nil && curToken == token {
		if cur.Connected() {
			return cur, nil
		}
		// Same credential but the transport gave up; try it again.
		if err := cur.Connect(ctx); err != nil {
			return nil, err
		}
		return cur, nil
	}

	h.mu.Lock()
	if h.current != nil {
		logging.Info().Msg("[realtime] Credential changed, closing connection")
		_ = h.closeLocked()
	}
	closes := h.closes
	h.mu.Unlock()

	c := NewClient(h.factory(token))
	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closes != closes {
		_ = c.Close()
		return nil, ErrConnectionClosed
	}
	h.current = c
	h.token = token
	h.notifyLocked(c)
	return c, nil
}

// Current returns the held client, or nil.
func (h *Holder) Current() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Close closes the held client, if any.
func (h *Holder) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return h.closeLocked()
}

func (h *Holder) closeLocked() error {
	if h.current == nil {
		return nil
	}
	err := h.current.Close()
	h.current = nil
	h.token = ""
	h.notifyLocked(nil)
	return err
}

func (h *Holder) notifyLocked(c *Client) {
	for _, fn := range h.listeners {
		fn(c)
	}
}
