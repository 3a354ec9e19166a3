// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package gateway

import (
	"net/http"
	"strings"
)

// Route is one entry of the REST route table.
type Route struct {
	Method   string
	Template string

	// Public routes never carry a credential and never trigger a refresh.
	Public bool

	// NoRetry routes surface a 401 unchanged. The refresh and login calls are
	// no-retry so a failing refresh can never recurse into another refresh.
	NoRetry bool
}

// Key returns the metrics and log label for the route.
func (r Route) Key() string {
	return r.Method + " " + r.Template
}

// Route paths, relative to the API base URL.
const (
	PathLogin                = "/users/login"
	PathLoginGoogle          = "/users/login/google"
	PathRegister             = "/users/register"
	PathCheckEmail           = "/users/check-email"
	PathCheckNickname        = "/users/check-nickname"
	PathPasswordResetRequest = "/users/password-reset/request"
	PathPasswordResetVerify  = "/users/password-reset/verify"
	PathPasswordResetConfirm = "/users/password-reset/confirm"
	PathLogout               = "/users/logout"
	PathRefresh              = "/users/refresh"
	PathVerify               = "/users/verify"
	PathUser                 = "/users/:id"
	PathUserUpdate           = "/users/user-update"
	PathMeetings             = "/meetings"
	PathMeeting              = "/meetings/:id"
	PathMyMeetings           = "/meetings/me"
	PathParticipations       = "/meetings/:id/participations"
	PathChatRooms            = "/chats/rooms"
)

// Routes is the full REST contract.
var Routes = []Route{
	{Method: http.MethodPost, Template: PathLogin, Public: true, NoRetry: true},
	{Method: http.MethodPost, Template: PathLoginGoogle, Public: true, NoRetry: true},
	{Method: http.MethodPost, Template: PathRegister, Public: true},
	{Method: http.MethodPost, Template: PathCheckEmail, Public: true},
	{Method: http.MethodPost, Template: PathCheckNickname, Public: true},
	{Method: http.MethodPost, Template: PathPasswordResetRequest, Public: true},
	{Method: http.MethodPost, Template: PathPasswordResetVerify, Public: true},
	{Method: http.MethodPut, Template: PathPasswordResetConfirm, Public: true},
	{Method: http.MethodPost, Template: PathLogout},
	{Method: http.MethodPost, Template: PathRefresh, NoRetry: true},
	{Method: http.MethodGet, Template: PathVerify},
	{Method: http.MethodGet, Template: PathUser},
	{Method: http.MethodPut, Template: PathUserUpdate},
	{Method: http.MethodGet, Template: PathMeetings},
	{Method: http.MethodGet, Template: PathMeeting},
	{Method: http.MethodGet, Template: PathMyMeetings},
	{Method: http.MethodPut, Template: PathParticipations},
	{Method: http.MethodGet, Template: PathChatRooms},
}

// unmatchedTemplate labels requests outside the route table.
const unmatchedTemplate = "unmatched"

// MatchRoute finds the route for a concrete request path. Literal templates
// win over parameterized ones. A path outside the table yields a protected,
// retryable route and ok=false.
func MatchRoute(method, path string) (Route, bool) {
	path = normalizePath(path)

	for _, r := range Routes {
		if r.Method == method && r.Template == path {
			return r, true
		}
	}

	segs := strings.Split(path, "/")
	for _, r := range Routes {
		if r.Method != method || !strings.Contains(r.Template, ":") {
			continue
		}
		if matchSegments(strings.Split(r.Template, "/"), segs) {
			return r, true
		}
	}

	return Route{Method: method, Template: unmatchedTemplate}, false
}

func matchSegments(tmpl, segs []string) bool {
	if len(tmpl) != len(segs) {
		return false
	}
	for i, t := range tmpl {
		if strings.HasPrefix(t, ":") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if t != segs[i] {
			return false
		}
	}
	return true
}

// normalizePath strips any query and trailing slash.
func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// IsPublic reports whether requests to path are sent without a credential.
func IsPublic(method, path string) bool {
	r, _ := MatchRoute(method, path)
	return r.Public
}
