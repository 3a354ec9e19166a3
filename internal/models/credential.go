// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package models

// Credential is the current access credential and the identity derived from it.
// The zero value is the logged-out state.
type Credential struct {
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
	LoggedIn bool   `json:"loggedIn"`
}

// HasToken reports whether the credential carries a bearer token.
func (c Credential) HasToken() bool {
	return c.LoggedIn && c.Token != ""
}
