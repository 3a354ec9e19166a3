// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package config

import (
	"errors"
	"fmt"
	"net/url"
)

// MaxSessionRetries caps SESSION_MAX_RETRIES.
const MaxSessionRetries = 3

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateAPI,
		c.validateRealtime,
		c.validateHTTP,
		c.validateSession,
		c.validateLogging,
	}
	var errs []error
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateAPI() error {
	return validateURL(c.API.BaseURL, "API_BASE_URL", "http", "https")
}

func (c *Config) validateRealtime() error {
	if c.Realtime.ReconnectAttempts < 0 {
		return fmt.Errorf("REALTIME_RECONNECT_ATTEMPTS must be >= 0, got %d", c.Realtime.ReconnectAttempts)
	}
	if c.Realtime.HandshakeTimeout <= 0 {
		return fmt.Errorf("REALTIME_HANDSHAKE_TIMEOUT must be positive, got %v", c.Realtime.HandshakeTimeout)
	}
	if c.Realtime.ReconcileInterval <= 0 {
		return fmt.Errorf("REALTIME_RECONCILE_INTERVAL must be positive, got %v", c.Realtime.ReconcileInterval)
	}
	if c.Realtime.MockMode {
		return nil
	}
	return validateURL(c.Realtime.URL, "REALTIME_URL", "ws", "wss")
}

func (c *Config) validateHTTP() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.HTTP.Timeout)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("HTTP_RATE_LIMIT must be >= 0, got %v", c.HTTP.RateLimit)
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateBurst < 1 {
		return fmt.Errorf("HTTP_RATE_BURST must be >= 1 when HTTP_RATE_LIMIT is set, got %d", c.HTTP.RateBurst)
	}
	if c.HTTP.BreakerFailures < 1 {
		return fmt.Errorf("HTTP_BREAKER_FAILURES must be >= 1, got %d", c.HTTP.BreakerFailures)
	}
	if c.HTTP.BreakerTimeout <= 0 {
		return fmt.Errorf("HTTP_BREAKER_TIMEOUT must be positive, got %v", c.HTTP.BreakerTimeout)
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.Freshness <= 0 {
		return fmt.Errorf("SESSION_FRESHNESS must be positive, got %v", c.Session.Freshness)
	}
	if c.Session.MaxRetries < 0 || c.Session.MaxRetries > MaxSessionRetries {
		return fmt.Errorf("SESSION_MAX_RETRIES must be between 0 and %d, got %d", MaxSessionRetries, c.Session.MaxRetries)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateURL checks scheme and host. Paths are allowed since the REST base
// commonly carries a prefix such as /api.
func validateURL(rawURL, fieldName string, schemes ...string) error {
	if rawURL == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	schemeOK := false
	for _, s := range schemes {
		if parsedURL.Scheme == s {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return fmt.Errorf("%s scheme must be one of %v, got: %q", fieldName, schemes, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}
