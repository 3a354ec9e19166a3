// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/models"
)

type fakeFetcher struct {
	calls atomic.Int32
	mu    sync.Mutex
	snap  *models.SessionSnapshot
	err   error
	gate  chan struct{}
}

func (f *fakeFetcher) Verify(ctx context.Context) (*models.SessionSnapshot, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.snap == nil {
		return nil, nil
	}
	cp := *f.snap
	return &cp, nil
}

func (f *fakeFetcher) set(snap *models.SessionSnapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = snap, err
}

func authenticated(token string) *models.SessionSnapshot {
	return &models.SessionSnapshot{
		Authenticated: true,
		User:          &models.User{ID: 7, Nickname: "moimo"},
		AccessToken:   token,
	}
}

func TestVerify_AuthenticatedAdoptsNewToken(t *testing.T) {
	f := &fakeFetcher{snap: authenticated("new-token")}
	store := credential.NewStore()
	id := int64(7)
	store.Login("moimo", "old-token", &id)

	v := NewVerifier(f, store)
	defer v.Close()

	snap := v.Verify(context.Background())
	if snap == nil || !snap.Authenticated {
		t.Fatalf("expected authenticated snapshot, got %+v", snap)
	}
	cred := store.Get()
	if cred.Token != "new-token" || cred.UserID != 7 || cred.Nickname != "moimo" {
		t.Errorf("store not updated: %+v", cred)
	}
}

func TestVerify_AuthenticatedKeepsPreviousToken(t *testing.T) {
	f := &fakeFetcher{snap: authenticated("")}
	store := credential.NewStore()
	id := int64(7)
	store.Login("moimo", "old-token", &id)

	v := NewVerifier(f, store)
	defer v.Close()

	if snap := v.Verify(context.Background()); snap == nil {
		t.Fatal("expected snapshot")
	}
	if got := store.Get().Token; got != "old-token" {
		t.Errorf("token = %q, want previous token kept", got)
	}
	if !store.Get().LoggedIn {
		t.Error("store should be logged in")
	}
}

func TestVerify_UnauthenticatedLogsOut(t *testing.T) {
	f := &fakeFetcher{snap: &models.SessionSnapshot{Authenticated: false}}
	store := credential.NewStore()
	id := int64(7)
	store.Login("moimo", "tok", &id)

	v := NewVerifier(f, store)
	defer v.Close()

	if snap := v.Verify(context.Background()); snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
	if store.Get().LoggedIn {
		t.Error("expected logout")
	}
}

func TestVerify_ErrorIsNotAuthenticated(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	store := credential.NewStore()
	id := int64(7)
	store.Login("moimo", "tok", &id)

	v := NewVerifier(f, store)
	defer v.Close()

	if snap := v.Verify(context.Background()); snap != nil {
		t.Fatalf("expected nil snapshot on error, got %+v", snap)
	}
	if store.Get().LoggedIn {
		t.Error("expected logout after failed verify")
	}
}

func TestVerify_ErrorWhileLoggedOutLeavesStore(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	store := credential.NewStore()

	v := NewVerifier(f, store)
	defer v.Close()

	if snap := v.Verify(context.Background()); snap != nil {
		t.Fatal("expected nil snapshot")
	}
	if store.Get() != (models.Credential{}) {
		t.Errorf("store should stay empty, got %+v", store.Get())
	}
}

func TestVerify_CachedWithinFreshness(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	f := &fakeFetcher{snap: authenticated("t")}
	v := NewVerifier(f, credential.NewStore(), WithFreshness(30*time.Minute), WithClock(clock))
	defer v.Close()

	v.Verify(context.Background())
	v.Verify(context.Background())
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1 within freshness window", got)
	}

	now.Add(int64(29 * time.Minute))
	v.Verify(context.Background())
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1 at 29 minutes", got)
	}

	now.Add(int64(2 * time.Minute))
	v.Verify(context.Background())
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2 after freshness window", got)
	}
}

func TestVerify_NilResultIsCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	v := NewVerifier(f, credential.NewStore())
	defer v.Close()

	v.Verify(context.Background())
	v.Verify(context.Background())
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestVerify_Invalidate(t *testing.T) {
	f := &fakeFetcher{snap: &models.SessionSnapshot{Authenticated: false}}
	store := credential.NewStore()
	v := NewVerifier(f, store)
	defer v.Close()

	if v.Verify(context.Background()) != nil {
		t.Fatal("expected nil before login")
	}

	f.set(authenticated("fresh"), nil)
	if v.Verify(context.Background()) != nil {
		t.Fatal("stale cached result expected until invalidated")
	}

	v.Invalidate()
	snap := v.Verify(context.Background())
	if snap == nil || !snap.Authenticated {
		t.Fatalf("expected authenticated after invalidate, got %+v", snap)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if store.Get().Token != "fresh" {
		t.Errorf("token = %q", store.Get().Token)
	}
}

func TestVerify_ConcurrentCallersShareFetch(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{snap: authenticated("t"), gate: gate}
	v := NewVerifier(f, credential.NewStore())
	defer v.Close()

	const n = 10
	var wg sync.WaitGroup
	results := make(chan *models.SessionSnapshot, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- v.Verify(context.Background())
		}()
	}

	// Let every caller reach the in-flight fetch before releasing it.
	deadline := time.Now().Add(5 * time.Second)
	for f.calls.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)

	wg.Wait()
	close(results)
	for snap := range results {
		if snap == nil || !snap.Authenticated {
			t.Errorf("caller got %+v", snap)
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestVerify_CanceledCallerDoesNotBreakFetch(t *testing.T) {
	f := &fakeFetcher{snap: authenticated("t")}
	v := NewVerifier(f, credential.NewStore())
	defer v.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if snap := v.Verify(ctx); snap == nil {
		t.Error("a canceled caller context must not turn into a failed verify")
	}
}
