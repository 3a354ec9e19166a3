// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package models

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// GoogleLoginRequest is the body of POST /users/login/google. The client only
// forwards the authorization code; the exchange happens server-side.
type GoogleLoginRequest struct {
	Code        string `json:"code" validate:"required"`
	RedirectURI string `json:"redirectUri,omitempty" validate:"omitempty,url"`
}

// LoginResponse is returned by login, Google login and registration.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	IsNewUser   bool   `json:"isNewUser"`
	User        *User  `json:"user,omitempty"`
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Nickname string `json:"nickname" validate:"required,nickname"`
}

// CheckEmailRequest is the body of POST /users/check-email.
type CheckEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// CheckNicknameRequest is the body of POST /users/check-nickname.
type CheckNicknameRequest struct {
	Nickname string `json:"nickname" validate:"required,nickname"`
}

// AvailabilityResponse answers a uniqueness probe.
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// PasswordResetRequest starts a password reset by mailing a code.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// PasswordResetVerifyRequest exchanges the mailed code for a reset token.
type PasswordResetVerifyRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,alphanum,min=4,max=12"`
}

// PasswordResetVerifyResponse carries the reset token.
type PasswordResetVerifyResponse struct {
	ResetToken string `json:"resetToken"`
}

// PasswordResetConfirmRequest finalizes a password change.
type PasswordResetConfirmRequest struct {
	ResetToken  string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// RefreshResponse is returned by POST /users/refresh.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// SessionSnapshot is the result of GET /users/verify. AccessToken is set only
// when the server issued a fresh credential during verification.
type SessionSnapshot struct {
	Authenticated bool   `json:"authenticated"`
	User          *User  `json:"user,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
}

// MessageResponse is the generic acknowledgment body used by mutations that
// return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}
