// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Gateway Metrics
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_gateway_requests_total",
			Help: "Total number of outbound REST requests by route and status",
		},
		[]string{"method", "route", "status_code"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moimo_gateway_request_duration_seconds",
			Help:    "Outbound REST request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	GatewayActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moimo_gateway_active_requests",
			Help: "Current number of in-flight outbound REST requests",
		},
	)

	GatewayRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_gateway_refresh_total",
			Help: "Total number of credential refresh attempts",
		},
		[]string{"result"}, // "success", "failure", "shared"
	)

	GatewayRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_gateway_retries_total",
			Help: "Total number of requests re-issued after a credential refresh",
		},
		[]string{"route"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Credential and Session Metrics
	CredentialLoggedIn = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moimo_credential_logged_in",
			Help: "1 when a credential is held, 0 otherwise",
		},
	)

	SessionVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_session_verify_total",
			Help: "Total number of network verify calls by outcome",
		},
		[]string{"result"}, // "authenticated", "unauthenticated", "error"
	)

	SessionCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_session_cache_total",
			Help: "Session snapshot lookups served from cache or network",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Realtime Metrics
	RealtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moimo_realtime_connected",
			Help: "1 while a realtime connection is live, 0 otherwise",
		},
	)

	RealtimeReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moimo_realtime_reconnect_attempts_total",
			Help: "Total number of realtime reconnection attempts",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_realtime_events_total",
			Help: "Total number of realtime events by direction and name",
		},
		[]string{"direction", "event"}, // direction: "sent", "received"
	)

	RealtimeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_realtime_errors_total",
			Help: "Total number of realtime errors",
		},
		[]string{"error_type"},
	)

	RealtimePendingAcks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moimo_realtime_pending_acks",
			Help: "Emits waiting for an acknowledgment",
		},
	)

	RealtimeReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_realtime_reconcile_total",
			Help: "Supervisor reconciliation actions on the realtime connection",
		},
		[]string{"action"}, // "connect", "teardown", "error"
	)

	// Chat Metrics
	ChatRoomCacheUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moimo_chat_room_cache_updates_total",
			Help: "Room list updates driven by live messages",
		},
		[]string{"result"}, // "applied", "unknown_room", "not_loaded"
	)
)

// RecordGatewayRequest records one outbound HTTP attempt.
func RecordGatewayRequest(method, route, statusCode string, duration time.Duration) {
	GatewayRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	GatewayRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight outbound requests
func TrackActiveRequest(inc bool) {
	if inc {
		GatewayActiveRequests.Inc()
	} else {
		GatewayActiveRequests.Dec()
	}
}

// RecordRefresh records the outcome of a refresh. shared is true when the
// caller joined a refresh already in flight instead of starting one.
func RecordRefresh(success, shared bool) {
	switch {
	case shared:
		GatewayRefreshTotal.WithLabelValues("shared").Inc()
	case success:
		GatewayRefreshTotal.WithLabelValues("success").Inc()
	default:
		GatewayRefreshTotal.WithLabelValues("failure").Inc()
	}
}

// RecordRetry records a request re-issued after refresh.
func RecordRetry(route string) {
	GatewayRetriesTotal.WithLabelValues(route).Inc()
}

// SetLoggedIn mirrors the credential store state.
func SetLoggedIn(loggedIn bool) {
	CredentialLoggedIn.Set(boolToFloat(loggedIn))
}

// RecordSessionVerify records a network verify outcome.
func RecordSessionVerify(result string) {
	SessionVerifyTotal.WithLabelValues(result).Inc()
}

// RecordSessionCache records whether a verify was served from cache.
func RecordSessionCache(hit bool) {
	if hit {
		SessionCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	SessionCacheTotal.WithLabelValues("miss").Inc()
}

// SetRealtimeConnected mirrors the realtime connection state.
func SetRealtimeConnected(connected bool) {
	RealtimeConnected.Set(boolToFloat(connected))
}

// RecordRealtimeEvent counts an event crossing the realtime channel.
func RecordRealtimeEvent(direction, event string) {
	RealtimeEventsTotal.WithLabelValues(direction, event).Inc()
}

// RecordRealtimeError counts a realtime failure.
func RecordRealtimeError(errorType string) {
	RealtimeErrors.WithLabelValues(errorType).Inc()
}

// RecordReconcile counts a reconciliation action that changed or failed to
// change the realtime connection.
func RecordReconcile(action string) {
	RealtimeReconcileTotal.WithLabelValues(action).Inc()
}

// RecordRoomCacheUpdate counts a live-message room list update.
func RecordRoomCacheUpdate(result string) {
	ChatRoomCacheUpdates.WithLabelValues(result).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
