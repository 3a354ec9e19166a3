// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package models

import "time"

// ChatRoom is one entry of the room list. A room is identified by the meeting
// it belongs to.
type ChatRoom struct {
	MeetingID   int64           `json:"meetingId"`
	Title       string          `json:"title"`
	MemberCount int             `json:"memberCount"`
	LastMessage *MessagePreview `json:"lastMessage,omitempty"`
}

// MessagePreview is the last-message summary shown in the room list.
type MessagePreview struct {
	SenderNickname string    `json:"senderNickname"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Sender is the minimal profile attached to a chat message.
type Sender struct {
	ID           int64  `json:"id"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// ChatMessage is one message in a room.
type ChatMessage struct {
	ID        int64     `json:"id"`
	MeetingID int64     `json:"meetingId"`
	SenderID  int64     `json:"senderId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Preview returns the room-list summary of m.
func (m *ChatMessage) Preview() *MessagePreview {
	return &MessagePreview{
		SenderNickname: m.Sender.Nickname,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// JoinRoomPayload is sent with the joinRoom event.
type JoinRoomPayload struct {
	MeetingID int64 `json:"meetingId"`
}

// GetMessagesPayload is sent with the getMessages event.
type GetMessagesPayload struct {
	MeetingID int64 `json:"meetingId"`
}

// MessageHistory acknowledges getMessages.
type MessageHistory struct {
	MeetingID int64         `json:"meetingId"`
	Messages  []ChatMessage `json:"messages"`
}

// SendMessagePayload is sent with the sendMessage event.
type SendMessagePayload struct {
	MeetingID int64  `json:"meetingId" validate:"required,gt=0"`
	Content   string `json:"content" validate:"required,max=2000"`
}
