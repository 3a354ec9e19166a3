// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

// Package session answers "is the current user logged in" with a memoized,
// deduplicated call to the verify endpoint.
//
// Verify never returns an error. Any failure, and any negative answer, is
// reported as a nil snapshot, and a previously logged-in credential is
// cleared. A positive answer is written back to the credential store,
// adopting a freshly issued token when the server sends one.
//
// The result, nil included, is cached for the freshness window. It is never
// re-fetched in the background; call Invalidate after a login or logout.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/moimo/internal/cache"
	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
)

// DefaultFreshness is how long a verify result is served from cache.
const DefaultFreshness = 30 * time.Minute

const snapshotKey = "session:snapshot"

// Fetcher performs the network verify call. *api.Client implements it.
type Fetcher interface {
	Verify(ctx context.Context) (*models.SessionSnapshot, error)
}

// result wraps a snapshot so that a cached nil is distinguishable from a miss.
type result struct {
	snap *models.SessionSnapshot
}

// Verifier is the cached session check.
type Verifier struct {
	fetcher Fetcher
	store   credential.Store
	cache   *cache.Cache
	flight  singleflight.Group

	// gen is bumped by Invalidate so a fetch already in flight does not
	// repopulate the cache with a result from before the invalidation.
	gen atomic.Uint64
}

// Option configures a Verifier.
type Option func(*options)

type options struct {
	freshness time.Duration
	cacheOpts []cache.Option
}

// WithFreshness overrides DefaultFreshness.
func WithFreshness(d time.Duration) Option {
	return func(o *options) { o.freshness = d }
}

// WithClock sets the clock used to expire cached results.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, cache.WithClock(now)) }
}

// NewVerifier creates a verifier. Call Close to stop the cache sweeper.
func NewVerifier(fetcher Fetcher, store credential.Store, opts ...Option) *Verifier {
	o := options{freshness: DefaultFreshness}
	for _, opt := range opts {
		opt(&o)
	}
	if o.freshness <= 0 {
		o.freshness = DefaultFreshness
	}
	return &Verifier{
		fetcher: fetcher,
		store:   store,
		cache:   cache.New(o.freshness, o.cacheOpts...),
	}
}

// Verify returns the current session snapshot, or nil when not authenticated.
// Concurrent callers on a cold cache share a single network call.
func (v *Verifier) Verify(ctx context.Context) *models.SessionSnapshot {
	if cached, ok := v.cache.Get(snapshotKey); ok {
		metrics.RecordSessionCache(true)
		return cached.(*result).snap
	}
	metrics.RecordSessionCache(false)

	// The shared fetch must outlive any single caller giving up.
	fctx := context.WithoutCancel(ctx)
	out, _, _ := v.flight.Do(snapshotKey, func() (interface{}, error) {
		gen := v.gen.Load()
		r := &result{snap: v.fetch(fctx)}
		if v.gen.Load() == gen {
			v.cache.Set(snapshotKey, r)
		}
		return r, nil
	})
	return out.(*result).snap
}

// Invalidate drops the cached result so the next Verify hits the network.
func (v *Verifier) Invalidate() {
	v.gen.Add(1)
	v.flight.Forget(snapshotKey)
	v.cache.Delete(snapshotKey)
}

// Close releases the cache.
func (v *Verifier) Close() {
	v.cache.Close()
}

func (v *Verifier) fetch(ctx context.Context) *models.SessionSnapshot {
	log := logging.Ctx(ctx)

	snap, err := v.fetcher.Verify(ctx)
	switch {
	case err != nil:
		metrics.RecordSessionVerify("error")
		log.Debug().Err(err).Msg("session verify failed, treating as logged out")
		v.logoutIfLoggedIn()
		return nil
	case snap == nil || !snap.Authenticated:
		metrics.RecordSessionVerify("unauthenticated")
		v.logoutIfLoggedIn()
		return nil
	}

	metrics.RecordSessionVerify("authenticated")

	prev := v.store.Get()
	token := snap.AccessToken
	if token == "" {
		token = prev.Token
	}

	nickname := prev.Nickname
	var userID *int64
	if snap.User != nil {
		if snap.User.Nickname != "" {
			nickname = snap.User.Nickname
		}
		if snap.User.ID != 0 {
			id := snap.User.ID
			userID = &id
		}
	}
	v.store.Login(nickname, token, userID)

	return snap
}

func (v *Verifier) logoutIfLoggedIn() {
	if v.store.Get().LoggedIn {
		v.store.Logout()
	}
}
