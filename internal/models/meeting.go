// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package models

import "time"

// Participation statuses.
const (
	ParticipationPending  = "pending"
	ParticipationApproved = "approved"
	ParticipationRejected = "rejected"
)

// Meeting is a meetup event.
type Meeting struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Category         string    `json:"category,omitempty"`
	Location         string    `json:"location,omitempty"`
	StartsAt         time.Time `json:"startsAt"`
	Capacity         int       `json:"capacity"`
	ParticipantCount int       `json:"participantCount"`
	HostID           int64     `json:"hostId"`
	Thumbnail        string    `json:"thumbnail,omitempty"`
}

// MeetingPage is one page of GET /meetings.
type MeetingPage struct {
	Meetings []Meeting `json:"meetings"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Size     int       `json:"size"`
}

// MeetingQuery filters GET /meetings.
type MeetingQuery struct {
	Page     int    `validate:"gte=0"`
	Size     int    `validate:"gte=0,lte=100"`
	Category string `validate:"omitempty,max=50"`
	Keyword  string `validate:"omitempty,max=100"`
}

// MyMeetings is the result of GET /meetings/me.
type MyMeetings struct {
	Hosted []Meeting `json:"hosted"`
	Joined []Meeting `json:"joined"`
}

// ParticipationUpdate changes one participant's status.
type ParticipationUpdate struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

// ParticipationsRequest is the body of PUT /meetings/:id/participations.
type ParticipationsRequest struct {
	Participations []ParticipationUpdate `json:"participations" validate:"required,min=1,dive"`
}
