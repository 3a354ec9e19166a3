// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package logging

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// SessionLogger records credential lifecycle events. Token values are always
// masked before they reach the log stream.
type SessionLogger struct {
	logger zerolog.Logger
}

// NewSessionLogger creates a session logger on the global logger.
func NewSessionLogger() *SessionLogger {
	return &SessionLogger{logger: WithComponent("session")}
}

// NewSessionLoggerWithLogger creates a session logger on a specific logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSessionLoggerWithLogger(logger zerolog.Logger) *SessionLogger {
	return &SessionLogger{logger: logger}
}

// LogLogin records a credential being stored.
func (l *SessionLogger) LogLogin(nickname string, userID int64, token string) {
	l.logger.Info().
		Str("event", "login").
		Str("nickname", SanitizeUsername(nickname)).
		Str("user_id", strconv.FormatInt(userID, 10)).
		Str("token", SanitizeToken(token)).
		Msg("credential stored")
}

// LogLogout records the credential being cleared.
func (l *SessionLogger) LogLogout(reason string) {
	l.logger.Info().
		Str("event", "logout").
		Str("reason", reason).
		Msg("credential cleared")
}

// LogTokenRefresh records the outcome of a refresh attempt.
func (l *SessionLogger) LogTokenRefresh(route string, success bool, errMsg string) {
	e := l.logger.Info()
	if !success {
		e = l.logger.Warn()
	}
	e = e.Str("event", "token_refresh").Str("route", route).Bool("success", success)
	if errMsg != "" {
		e = e.Str("error", SanitizeError(errMsg))
	}
	e.Msg("token refresh")
}

// SanitizeToken masks a token, showing only the first and last 4 characters.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUsername keeps the first 2 characters of a name.
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeEmail masks the local part of an address.
// "moimo@email.com" -> "mo***@email.com"
func SanitizeEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

// SanitizeError hides error text that could carry secrets and truncates the rest.
func SanitizeError(err string) string {
	lower := strings.ToLower(err)
	for _, pattern := range []string{"password", "secret", "bearer", "authorization", "cookie"} {
		if strings.Contains(lower, pattern) {
			return "authentication error"
		}
	}
	if len(err) > 200 {
		return err[:200] + "..."
	}
	return err
}
