// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
		},
		Realtime: RealtimeConfig{
			URL:               "ws://localhost:8080/ws",
			MockMode:          false,
			ReconnectAttempts: 5,
			HandshakeTimeout:  10 * time.Second,
			ReconcileInterval: time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:         30 * time.Second,
			RateLimit:       0,
			RateBurst:       10,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Session: SessionConfig{
			Freshness:  30 * time.Minute,
			MaxRetries: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration without reading files or the
// environment. Tests and the mock-mode CLI start from it.
func Default() *Config {
	return defaultConfig()
}

// Load reads defaults, the optional config file and the environment, then
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"api_base_url":     "api.base_url",
	"realtime_url":     "realtime.url",
	"mock_mode":        "realtime.mock_mode",
	"google_client_id": "oauth.google_client_id",

	"http_timeout":          "http.timeout",
	"http_rate_limit":       "http.rate_limit",
	"http_rate_burst":       "http.rate_burst",
	"http_breaker_failures": "http.breaker_failures",
	"http_breaker_timeout":  "http.breaker_timeout",

	"session_freshness":   "session.freshness",
	"session_max_retries": "session.max_retries",

	"credential_store_path": "credential.store_path",

	"realtime_reconnect_attempts": "realtime.reconnect_attempts",
	"realtime_handshake_timeout":  "realtime.handshake_timeout",
	"realtime_reconcile_interval": "realtime.reconcile_interval",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"metrics_addr": "metrics.addr",
}

// envTransformFunc returns "" for unmapped keys so unrelated environment
// variables never reach the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
