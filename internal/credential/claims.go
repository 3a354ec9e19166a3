// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoUserClaim is returned when a token carries neither userId nor a numeric sub.
var ErrNoUserClaim = errors.New("token has no user id claim")

// Claims is the identity carried inside an access token.
type Claims struct {
	UserID    int64
	Nickname  string
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim is before now. A token
// without exp never expires client-side.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseClaims decodes the token payload without verifying the signature. The
// server is the only party that can verify it; the client only reads identity
// hints from it.
func ParseClaims(token string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("decode token: unexpected claims type")
	}

	var c Claims
	if nick, ok := mapClaims["nickname"].(string); ok {
		c.Nickname = nick
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}

	id, ok := int64Claim(mapClaims["userId"])
	if !ok {
		id, ok = int64Claim(mapClaims["sub"])
	}
	if !ok {
		return c, ErrNoUserClaim
	}
	c.UserID = id
	return c, nil
}

func int64Claim(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}
