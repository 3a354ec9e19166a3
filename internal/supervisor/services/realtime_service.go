// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package services

import (
	"context"
	"time"

	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/realtime"
)

// CredentialSource is the read side of the credential store.
type CredentialSource interface {
	Get() models.Credential
}

// ConnectionHolder is satisfied by *realtime.Holder.
type ConnectionHolder interface {
	Ensure(ctx context.Context, token string) (*realtime.Client, error)
	Current() *realtime.Client
	Close() error
}

// RealtimeOptions configures a RealtimeService.
type RealtimeOptions struct {
	// Interval between reconciliations. Default: 1s
	Interval time.Duration

	// MockMode connects without a credential.
	MockMode bool
}

// RealtimeService drives the realtime connection from the credential store.
//
// Example usage:
//
//	svc := services.NewRealtimeService(store, holder, services.RealtimeOptions{Interval: time.Second})
//	tree.AddRealtimeService(svc)
type RealtimeService struct {
	creds    CredentialSource
	holder   ConnectionHolder
	interval time.Duration
	mockMode bool
	lastErr  string
}

// NewRealtimeService creates the service.
func NewRealtimeService(creds CredentialSource, holder ConnectionHolder, opts RealtimeOptions) *RealtimeService {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &RealtimeService{
		creds:    creds,
		holder:   holder,
		interval: opts.Interval,
		mockMode: opts.MockMode,
	}
}

// Serve implements suture.Service. It reconciles once immediately, then on
// every tick, and closes the held connection on return.
func (s *RealtimeService) Serve(ctx context.Context) error {
	defer func() {
		if err := s.holder.Close(); err != nil {
			logging.Warn().Err(err).Msg("[realtime] close on shutdown failed")
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

func (s *RealtimeService) reconcile(ctx context.Context) {
	var token string
	if cred := s.creds.Get(); cred.HasToken() {
		token = cred.Token
	}

	if token == "" && !s.mockMode {
		if s.holder.Current() == nil {
			return
		}
		logging.Info().Msg("[realtime] Credential cleared, closing connection")
		if err := s.holder.Close(); err != nil {
			logging.Warn().Err(err).Msg("[realtime] close failed")
		}
		metrics.RecordReconcile("teardown")
		return
	}

	prev := s.holder.Current()
	c, err := s.holder.Ensure(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.RecordReconcile("error")
		// Repeat failures log at debug so a down server does not flood the log.
		if msg := err.Error(); msg != s.lastErr {
			s.lastErr = msg
			logging.Warn().Err(err).Msg("[realtime] Connection attempt failed")
		} else {
			logging.Debug().Err(err).Msg("[realtime] Connection attempt failed")
		}
		return
	}
	s.lastErr = ""

	if c != prev {
		metrics.RecordReconcile("connect")
		logging.Info().Bool("mock", s.mockMode).Msg("[realtime] Connection established")
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *RealtimeService) String() string {
	return "realtime-service"
}
