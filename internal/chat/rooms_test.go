// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
)

func seedRooms() []models.ChatRoom {
	return []models.ChatRoom{
		{MeetingID: 1, Title: "A"},
		{MeetingID: 2, Title: "B"},
		{MeetingID: 3, Title: "C"},
		{MeetingID: 4, Title: "D"},
	}
}

func message(room int64, content string, minute int) models.ChatMessage {
	return models.ChatMessage{
		ID:        int64(minute),
		MeetingID: room,
		Sender:    models.Sender{ID: 9, Nickname: "kim"},
		Content:   content,
		CreatedAt: time.Date(2026, 3, 1, 10, minute, 0, 0, time.UTC),
	}
}

func order(rooms []models.ChatRoom) []int64 {
	ids := make([]int64, len(rooms))
	for i, r := range rooms {
		ids[i] = r.MeetingID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRoomCache_MoveToFront(t *testing.T) {
	rc := NewRoomCache(0)
	defer rc.Close()
	rc.SetRooms(seedRooms())

	if !rc.ApplyMessage(message(3, "hello", 1)) {
		t.Fatal("expected change")
	}
	rooms, _ := rc.Rooms()
	if got := order(rooms); !equalIDs(got, []int64{3, 1, 2, 4}) {
		t.Errorf("order = %v, want [3 1 2 4]", got)
	}
	if rooms[0].LastMessage == nil || rooms[0].LastMessage.Content != "hello" {
		t.Errorf("preview not updated: %+v", rooms[0].LastMessage)
	}
}

func TestRoomCache_ABASequence(t *testing.T) {
	rc := NewRoomCache(0)
	defer rc.Close()
	rc.SetRooms(seedRooms())

	const roomA, roomB = 2, 4
	rc.ApplyMessage(message(roomA, "a-first", 1))
	rc.ApplyMessage(message(roomB, "b-only", 2))
	rc.ApplyMessage(message(roomA, "a-latest", 3))

	rooms, _ := rc.Rooms()
	if got := order(rooms); !equalIDs(got, []int64{2, 4, 1, 3}) {
		t.Fatalf("order = %v, want [2 4 1 3]", got)
	}
	if rooms[0].LastMessage.Content != "a-latest" {
		t.Errorf("A preview = %q, want a-latest", rooms[0].LastMessage.Content)
	}
	if rooms[1].LastMessage.Content != "b-only" {
		t.Errorf("B preview = %q", rooms[1].LastMessage.Content)
	}
}

func TestRoomCache_UnknownRoomIsNoop(t *testing.T) {
	rc := NewRoomCache(0)
	defer rc.Close()
	rc.SetRooms(seedRooms())

	before := testutil.ToFloat64(metrics.ChatRoomCacheUpdates.WithLabelValues("unknown_room"))
	if rc.ApplyMessage(message(99, "ghost", 1)) {
		t.Error("message for unknown room must not change the list")
	}
	rooms, _ := rc.Rooms()
	if got := order(rooms); !equalIDs(got, []int64{1, 2, 3, 4}) {
		t.Errorf("order = %v", got)
	}
	if len(rooms) != 4 {
		t.Errorf("room must not be invented, len = %d", len(rooms))
	}
	after := testutil.ToFloat64(metrics.ChatRoomCacheUpdates.WithLabelValues("unknown_room"))
	if after != before+1 {
		t.Errorf("unknown_room counter delta = %v, want 1", after-before)
	}
}

func TestRoomCache_NotLoaded(t *testing.T) {
	rc := NewRoomCache(0)
	defer rc.Close()

	if rc.ApplyMessage(message(1, "x", 1)) {
		t.Error("no list loaded, nothing should change")
	}
	if _, ok := rc.Rooms(); ok {
		t.Error("ApplyMessage must not create a list")
	}
}

func TestRoomCache_SnapshotsAreImmutable(t *testing.T) {
	rc := NewRoomCache(0)
	defer rc.Close()

	seed := seedRooms()
	rc.SetRooms(seed)
	before, _ := rc.Rooms()

	rc.ApplyMessage(message(4, "new", 1))

	if got := order(before); !equalIDs(got, []int64{1, 2, 3, 4}) {
		t.Errorf("earlier snapshot changed: %v", got)
	}
	if before[3].LastMessage != nil {
		t.Error("earlier snapshot's room was mutated")
	}
	if seed[3].LastMessage != nil {
		t.Error("caller's slice was mutated")
	}
}

func TestRoomCache_Load(t *testing.T) {
	rc := NewRoomCache(0)
	defer rc.Close()

	src := RoomSourceFunc(func(context.Context) ([]models.ChatRoom, error) {
		return seedRooms(), nil
	})
	rooms, err := rc.Load(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 4 {
		t.Errorf("loaded %d rooms", len(rooms))
	}

	failing := RoomSourceFunc(func(context.Context) ([]models.ChatRoom, error) {
		return nil, errors.New("503")
	})
	if _, err := rc.Load(context.Background(), failing); err == nil {
		t.Error("expected error")
	}
	if cached, ok := rc.Rooms(); !ok || len(cached) != 4 {
		t.Error("failed load must keep the previous list")
	}

	rc.Invalidate()
	if _, ok := rc.Rooms(); ok {
		t.Error("expected empty after Invalidate")
	}
}
