// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package config

import "time"

// Config holds all application configuration.
type Config struct {
	API        APIConfig        `koanf:"api"`
	Realtime   RealtimeConfig   `koanf:"realtime"`
	OAuth      OAuthConfig      `koanf:"oauth"`
	HTTP       HTTPConfig       `koanf:"http"`
	Session    SessionConfig    `koanf:"session"`
	Credential CredentialConfig `koanf:"credential"`
	Logging    LoggingConfig    `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// APIConfig locates the REST service.
type APIConfig struct {
	// BaseURL is prefixed to every route path, e.g. http://localhost:8080/api.
	BaseURL string `koanf:"base_url"`
}

// RealtimeConfig controls the chat channel.
type RealtimeConfig struct {
	URL      string `koanf:"url"`
	MockMode bool   `koanf:"mock_mode"`

	// ReconnectAttempts bounds reconnection after a dropped connection.
	ReconnectAttempts int           `koanf:"reconnect_attempts"`
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout"`

	// ReconcileInterval is how often the supervisor compares the live
	// connection with the credential store.
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
}

// OAuthConfig holds third-party login settings.
type OAuthConfig struct {
	GoogleClientID string `koanf:"google_client_id"`
}

// HTTPConfig tunes the outbound request pipeline.
type HTTPConfig struct {
	Timeout         time.Duration `koanf:"timeout"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst       int           `koanf:"rate_burst"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// SessionConfig holds the session policy constants.
type SessionConfig struct {
	// Freshness is how long a verify result is served from cache.
	Freshness time.Duration `koanf:"freshness"`
	// MaxRetries is how many times one logical request may be re-issued
	// after a credential refresh.
	MaxRetries int `koanf:"max_retries"`
}

// CredentialConfig controls credential persistence.
type CredentialConfig struct {
	// StorePath is a BadgerDB directory. Empty keeps the credential in memory only.
	StorePath string `koanf:"store_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}
