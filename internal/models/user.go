// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package models

import "time"

// User is a platform account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email,omitempty"`
	Nickname     string    `json:"nickname"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// UserUpdate holds the text fields of PUT /users/user-update. The request is
// sent as multipart so a profile image can travel with it.
type UserUpdate struct {
	Nickname string `json:"nickname,omitempty" validate:"omitempty,nickname"`
	Bio      string `json:"bio,omitempty" validate:"omitempty,max=500"`
}
