// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package gateway is the single outbound request pipeline used for every REST call.

Each logical request passes through these stages:

 1. Route lookup: the method and concrete path are matched against the route
    table by exact segment comparison ("GET /meetings/:id" matches
    "GET /meetings/42"; "GET /users/verify" never matches "GET /users/:id").
 2. Credential injection: the current token from the credential store is sent
    as "Authorization: Bearer <token>" unless the route is public. Public
    routes never carry an Authorization header, even one the caller set.
 3. Body encoding: JSON for structs, multipart for Multipart. A multipart body
    drops any caller-supplied Content-Type so the boundary written by the
    multipart writer is the one the server sees.
 4. Transport: optional rate limiting (golang.org/x/time/rate), then a
    circuit breaker (sony/gobreaker) that counts only transport failures and
    5xx responses.
 5. Recovery: a 401 on a protected route that is not a no-retry route (login,
    refresh) refreshes the credential and re-issues the request. Each logical
    request is re-issued at most MaxRetries times (default 1) and the retry is
    never sent before the refresh result is known. A failed refresh clears the
    credential store and the caller receives the original 401.

Concurrent 401s share a single in-flight refresh. A request whose 401 was
caused by a token that has already been replaced is re-issued with the
current token without another refresh.

Errors:

	*StatusError       non-2xx response, carries method, path, status and body
	ErrRefreshFailed   refresh was rejected or returned no credential
	ErrCircuitOpen     the breaker rejected the request without sending it

Every other error (DNS, connection reset, context cancellation) is returned
wrapped but otherwise unchanged.
*/
package gateway
