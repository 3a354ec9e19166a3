// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package config loads Moimo's configuration once at startup.

Configuration is layered with koanf, lowest priority first:

 1. Struct defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, then config.yaml / config.yml in the
    working directory
 3. Environment variables, mapped explicitly by envTransformFunc. Variables
    outside the mapping table are ignored.

Environment Variables:

	API_BASE_URL                  REST base URL (default http://localhost:8080/api)
	REALTIME_URL                  websocket endpoint (default ws://localhost:8080/ws)
	MOCK_MODE                     use the in-process realtime emulation (default false)
	GOOGLE_CLIENT_ID              OAuth client id passed through to Google login
	HTTP_TIMEOUT                  per-attempt HTTP timeout (default 30s)
	HTTP_RATE_LIMIT               outbound requests per second, 0 = unlimited
	HTTP_RATE_BURST               limiter burst (default 10)
	HTTP_BREAKER_FAILURES         consecutive failures that open the breaker (default 5)
	HTTP_BREAKER_TIMEOUT          open-state duration (default 30s)
	SESSION_FRESHNESS             verify result lifetime (default 30m)
	SESSION_MAX_RETRIES           refresh-and-retry attempts per request, 0-3 (default 1)
	CREDENTIAL_STORE_PATH         BadgerDB directory for the saved credential, empty = memory
	REALTIME_RECONNECT_ATTEMPTS   bounded reconnection attempts (default 5)
	REALTIME_HANDSHAKE_TIMEOUT    websocket handshake timeout (default 10s)
	REALTIME_RECONCILE_INTERVAL   credential poll interval of the realtime service (default 1s)
	LOG_LEVEL, LOG_FORMAT, LOG_CALLER
	METRICS_ADDR                  listen address for /metrics, empty = disabled

Example YAML:

	api:
	  base_url: https://api.moimo.example/api
	realtime:
	  url: wss://api.moimo.example/ws
	session:
	  freshness: 10m
*/
package config
