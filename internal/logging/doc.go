// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

// Package logging provides centralized zerolog-based structured logging for Moimo.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	})
//
//	logging.Info().Str("room", "12").Msg("joined room")
//	logging.Ctx(ctx).Warn().Err(err).Msg("refresh failed")
//
// # Configuration
//
// Environment variables (read through internal/config):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # Correlation IDs
//
// The HTTP gateway tags every logical request with a correlation id so the
// original attempt, the refresh call and the retried attempt can be read
// together:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("retrying after refresh")
//
// # Sensitive Data
//
// SessionLogger and the Sanitize* helpers mask tokens, nicknames and email
// addresses. Never log a raw credential.
//
// # slog Adapter
//
// SlogHandler bridges slog to zerolog for sutureslog:
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
package logging
