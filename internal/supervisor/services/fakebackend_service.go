// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package services

import (
	"context"
	"fmt"
)

// Backend is satisfied by *fakebackend.Server.
type Backend interface {
	ListenAndServe(ctx context.Context, addr string) error
}

// FakeBackendService serves a fake backend on addr.
type FakeBackendService struct {
	backend Backend
	addr    string
}

// NewFakeBackendService creates the service.
func NewFakeBackendService(backend Backend, addr string) *FakeBackendService {
	return &FakeBackendService{backend: backend, addr: addr}
}

// Serve implements suture.Service.
func (f *FakeBackendService) Serve(ctx context.Context) error {
	if err := f.backend.ListenAndServe(ctx, f.addr); err != nil {
		return fmt.Errorf("fake backend on %s: %w", f.addr, err)
	}
	return ctx.Err()
}

func (f *FakeBackendService) String() string {
	return "fake-backend"
}
