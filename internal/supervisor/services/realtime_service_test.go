// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/realtime"
)

type refusingTransport struct {
	*realtime.MockTransport
}

func (refusingTransport) Connect(context.Context) error {
	return errors.New("connection refused")
}

func mockHolder() *realtime.Holder {
	return realtime.NewHolder(realtime.MockFactory(realtime.DefaultMockConfig()))
}

func TestReconcileFollowsCredential(t *testing.T) {
	store := credential.NewStore()
	holder := mockHolder()
	svc := NewRealtimeService(store, holder, RealtimeOptions{})
	ctx := context.Background()

	svc.reconcile(ctx)
	if holder.Current() != nil {
		t.Fatal("connected without a credential")
	}

	id := int64(1)
	store.Login("moimo", "token-a", &id)
	svc.reconcile(ctx)
	first := holder.Current()
	if first == nil || !first.Connected() {
		t.Fatal("no connection after login")
	}

	svc.reconcile(ctx)
	if holder.Current() != first {
		t.Error("unchanged credential replaced the connection")
	}

	store.Login("moimo", "token-b", &id)
	svc.reconcile(ctx)
	second := holder.Current()
	if second == nil || second == first {
		t.Fatal("token change did not replace the connection")
	}
	if first.Connected() {
		t.Error("old connection still open after token change")
	}

	store.Logout()
	svc.reconcile(ctx)
	if holder.Current() != nil {
		t.Error("connection kept after logout")
	}
	if second.Connected() {
		t.Error("connection still open after logout")
	}
}

func TestReconcileMockModeWithoutCredential(t *testing.T) {
	holder := mockHolder()
	svc := NewRealtimeService(credential.NewStore(), holder, RealtimeOptions{MockMode: true})

	svc.reconcile(context.Background())
	if c := holder.Current(); c == nil || !c.Connected() {
		t.Fatal("mock mode did not connect")
	}
}

func TestReconcileRecordsFailure(t *testing.T) {
	holder := realtime.NewHolder(func(string) realtime.Transport {
		return refusingTransport{realtime.NewMockTransport(realtime.DefaultMockConfig())}
	})
	svc := NewRealtimeService(credential.NewStore(), holder, RealtimeOptions{MockMode: true})

	before := testutil.ToFloat64(metrics.RealtimeReconcileTotal.WithLabelValues("error"))
	svc.reconcile(context.Background())
	svc.reconcile(context.Background())

	if holder.Current() != nil {
		t.Error("failed connect left a client in the holder")
	}
	if got := testutil.ToFloat64(metrics.RealtimeReconcileTotal.WithLabelValues("error")) - before; got != 2 {
		t.Errorf("error count delta = %v, want 2", got)
	}
}

func TestRealtimeServiceServe(t *testing.T) {
	holder := mockHolder()
	svc := NewRealtimeService(credential.NewStore(), holder, RealtimeOptions{
		Interval: 10 * time.Millisecond,
		MockMode: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for holder.Current() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c := holder.Current()
	if c == nil {
		cancel()
		t.Fatal("service never connected")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if holder.Current() != nil || c.Connected() {
		t.Error("connection left open after Serve returned")
	}
	if svc.String() != "realtime-service" {
		t.Errorf("String() = %q", svc.String())
	}
}
