// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package metrics provides Prometheus instrumentation for Moimo.

All collectors are registered on the default registry through promauto when the
package is loaded. cmd/moimo exposes them with promhttp when METRICS_ADDR is
set; otherwise they are only read by tests.

Metric Categories:

HTTP Gateway:
  - moimo_gateway_requests_total{method, route, status_code}
  - moimo_gateway_request_duration_seconds{method, route}
  - moimo_gateway_active_requests
  - moimo_gateway_refresh_total{result}
  - moimo_gateway_retries_total{route}

Circuit Breaker (transport failures and 5xx only):
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name, result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name, from_state, to_state}

Credential and Session:
  - moimo_credential_logged_in
  - moimo_session_verify_total{result}
  - moimo_session_cache_total{result}

Realtime Channel:
  - moimo_realtime_connected
  - moimo_realtime_reconnect_attempts_total
  - moimo_realtime_events_total{direction, event}
  - moimo_realtime_errors_total{error_type}
  - moimo_realtime_pending_acks

Chat:
  - moimo_chat_room_cache_updates_total{result}

Route labels are method + path templates from the gateway route table
("GET /meetings/:id"), never raw paths, so cardinality stays bounded.
*/
package metrics
