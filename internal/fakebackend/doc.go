// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package fakebackend is an in-process emulation of the meetup backend: the REST
contract under /api and the realtime contract on /ws.

It exists for integration tests and for running the terminal client without
a real server. State lives in memory and is seeded with one loginable
account:

	email:    moimo@email.com
	password: 12345678

Access tokens are HS256 JWTs carrying userId, sub and nickname claims. Login
also sets an HTTP-only refresh cookie scoped to /api/users that
POST /api/users/refresh exchanges for a new access token.

Test helpers:

  - TokenFor mints an access token with any lifetime, including an already
    expired one.
  - Hits counts requests per route pattern.
  - PostMessage injects a chat message from another member.

Example:

	fb := fakebackend.New()
	srv := httptest.NewServer(fb.Handler())
	defer srv.Close()
	defer fb.Close()
*/
package fakebackend
