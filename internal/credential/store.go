// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

// Package credential holds the process-wide access credential.
//
// The store has exactly two mutators, Login and Logout, and a snapshot read,
// Get. Reads never block on I/O and never fail. The HTTP gateway reads the
// store on every request and the refresh path writes it; the session verifier
// and the API client write it on login, registration and logout.
//
// A Persister can be attached so the credential survives restarts. Persistence
// failures are logged and never surface to callers.
package credential

import (
	"errors"
	"sync"

	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
)

// Store is the credential holder used by the rest of the module.
type Store interface {
	// Get returns a snapshot of the current credential.
	Get() models.Credential
	// Login stores a credential. A nil userID is derived from the token's claims.
	Login(nickname, token string, userID *int64)
	// Logout clears the credential to its logged-out defaults.
	Logout()
}

// MemoryStore is a Store guarded by a RWMutex with optional persistence.
type MemoryStore struct {
	mu        sync.RWMutex
	cred      models.Credential
	persister Persister
	log       *logging.SessionLogger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithPersister restores any saved credential from p and writes every later
// change back to it.
func WithPersister(p Persister) Option {
	return func(s *MemoryStore) { s.persister = p }
}

// WithSessionLogger replaces the default session logger.
func WithSessionLogger(l *logging.SessionLogger) Option {
	return func(s *MemoryStore) { s.log = l }
}

// NewStore creates a store. When a persister is configured its saved
// credential becomes the initial state.
func NewStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{log: logging.NewSessionLogger()}
	for _, opt := range opts {
		opt(s)
	}

	if s.persister != nil {
		cred, err := s.persister.Load()
		switch {
		case err == nil:
			s.cred = cred
			logging.Info().
				Str("nickname", logging.SanitizeUsername(cred.Nickname)).
				Msg("restored saved credential")
		case !errors.Is(err, ErrNoCredential):
			logging.Warn().Err(err).Msg("failed to load saved credential")
		}
	}
	metrics.SetLoggedIn(s.cred.LoggedIn)

	return s
}

// Get returns a snapshot of the current credential.
func (s *MemoryStore) Get() models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Login marks the store logged in with the given identity.
func (s *MemoryStore) Login(nickname, token string, userID *int64) {
	var id int64
	if userID != nil {
		id = *userID
	} else if claims, err := ParseClaims(token); err == nil {
		id = claims.UserID
	}

	cred := models.Credential{
		Token:    token,
		UserID:   id,
		Nickname: nickname,
		LoggedIn: true,
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	metrics.SetLoggedIn(true)
	s.log.LogLogin(nickname, id, token)
	s.persist(cred)
}

// Logout clears every field.
func (s *MemoryStore) Logout() {
	s.mu.Lock()
	wasLoggedIn := s.cred.LoggedIn
	s.cred = models.Credential{}
	s.mu.Unlock()

	metrics.SetLoggedIn(false)
	if wasLoggedIn {
		s.log.LogLogout("logout")
	}
	if s.persister != nil {
		if err := s.persister.Clear(); err != nil {
			logging.Warn().Err(err).Msg("failed to clear saved credential")
		}
	}
}

func (s *MemoryStore) persist(cred models.Credential) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(cred); err != nil {
		logging.Warn().Err(err).Msg("failed to save credential")
	}
}
