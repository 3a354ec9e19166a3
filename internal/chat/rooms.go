// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/moimo/internal/cache"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
)

const roomsKey = "chat:rooms"

// DefaultRoomTTL bounds how long a fetched room list is kept without a reload.
const DefaultRoomTTL = 24 * time.Hour

// RoomSource fetches the room list. *api.Client implements it.
type RoomSource interface {
	ChatRooms(ctx context.Context) ([]models.ChatRoom, error)
}

// RoomSourceFunc adapts a function to RoomSource.
type RoomSourceFunc func(ctx context.Context) ([]models.ChatRoom, error)

// ChatRooms calls f.
func (f RoomSourceFunc) ChatRooms(ctx context.Context) ([]models.ChatRoom, error) {
	return f(ctx)
}

// RoomCache is the ordered room list kept in step with live messages.
// Stored slices are never modified; every change stores a new slice.
type RoomCache struct {
	c *cache.Cache
}

// NewRoomCache creates an empty room cache. A ttl <= 0 uses DefaultRoomTTL.
func NewRoomCache(ttl time.Duration, opts ...cache.Option) *RoomCache {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &RoomCache{c: cache.New(ttl, opts...)}
}

// Load fetches the room list from src and replaces the cached one.
func (r *RoomCache) Load(ctx context.Context, src RoomSource) ([]models.ChatRoom, error) {
	rooms, err := src.ChatRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chat rooms: %w", err)
	}
	r.SetRooms(rooms)
	return copyRooms(rooms), nil
}

// SetRooms replaces the list, keeping the given order.
func (r *RoomCache) SetRooms(rooms []models.ChatRoom) {
	r.c.Set(roomsKey, copyRooms(rooms))
}

// Rooms returns a copy of the cached list. ok is false when no list is loaded.
func (r *RoomCache) Rooms() ([]models.ChatRoom, bool) {
	v, ok := r.c.Get(roomsKey)
	if !ok {
		return nil, false
	}
	return copyRooms(v.([]models.ChatRoom)), true
}

// ApplyMessage sets the preview of the message's room and moves that room to
// the front, keeping the relative order of the others. It reports whether
// the list changed.
func (r *RoomCache) ApplyMessage(msg models.ChatMessage) bool {
	changed := false
	result := "not_loaded"

	r.c.Update(roomsKey, func(prev interface{}, ok bool) (interface{}, bool) {
		if !ok {
			return nil, false
		}
		rooms := prev.([]models.ChatRoom)

		idx := -1
		for i := range rooms {
			if rooms[i].MeetingID == msg.MeetingID {
				idx = i
				break
			}
		}
		if idx < 0 {
			result = "unknown_room"
			return rooms, true
		}

		updated := rooms[idx]
		updated.LastMessage = msg.Preview()

		next := make([]models.ChatRoom, 0, len(rooms))
		next = append(next, updated)
		next = append(next, rooms[:idx]...)
		next = append(next, rooms[idx+1:]...)

		changed = true
		result = "applied"
		return next, true
	})

	metrics.RecordRoomCacheUpdate(result)
	return changed
}

// Invalidate drops the list so the next Load is required.
func (r *RoomCache) Invalidate() {
	r.c.Delete(roomsKey)
}

// Close releases the cache.
func (r *RoomCache) Close() {
	r.c.Close()
}

func copyRooms(rooms []models.ChatRoom) []models.ChatRoom {
	out := make([]models.ChatRoom, len(rooms))
	copy(out, rooms)
	return out
}
