// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package fakebackend

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/moimo/internal/gateway"
	"github.com/tomtom215/moimo/internal/logging"
)

// correlate adopts the caller's correlation id, or generates one, echoes it
// in the response and logs the request under it.
func correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(gateway.CorrelationHeader)
		if id == "" {
			id = logging.GenerateCorrelationID()
		}
		w.Header().Set(gateway.CorrelationHeader, id)
		ctx := logging.ContextWithCorrelationID(r.Context(), id)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("[fakebackend] request")
	})
}

// countHits records each request under its matched route pattern.
func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		pattern := r.Method + " " + r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = r.Method + " " + rctx.RoutePattern()
		}
		s.mu.Lock()
		s.hits[pattern]++
		s.mu.Unlock()
	})
}

// corsPolicy allows a browser client on one of the configured origins to call the
// API with the refresh cookie attached.
func (s *Server) corsPolicy() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", gateway.CorrelationHeader},
		ExposedHeaders:   []string{gateway.CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// limitCredentials throttles the endpoints that accept passwords or codes.
func (s *Server) limitCredentials() func(http.Handler) http.Handler {
	if s.authLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.authLimit,
		s.authWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		}),
	)
}
