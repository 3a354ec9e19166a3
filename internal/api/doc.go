// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package api is the typed REST client for the meetup backend.

Every method maps to one route of the gateway route table and sends through
the gateway, so credential injection and refresh-and-retry apply uniformly.
Request payloads are validated before anything is transmitted; a validation
failure is returned as *validation.RequestValidationError.

Credential side effects:

  - Login, LoginGoogle and Register store the issued credential.
  - Logout clears the credential even when the server call fails.
  - Refresh delegates to the gateway, which stores or clears the credential.

Example:

	client := api.New(gw, store)
	resp, err := client.Login(ctx, models.LoginRequest{
	    Email:    "moimo@email.com",
	    Password: "12345678",
	})
*/
package api
