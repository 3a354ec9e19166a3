// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/moimo/internal/config"
	"github.com/tomtom215/moimo/internal/logging"
)

// options are the command line flags.
type options struct {
	email       string
	password    string
	room        int64
	mock        bool
	fakeBackend string
}

func main() {
	var opts options
	flag.StringVar(&opts.email, "email", "", "account email; without it a persisted credential is reused")
	flag.StringVar(&opts.password, "password", "", "account password (default $MOIMO_PASSWORD)")
	flag.Int64Var(&opts.room, "room", 0, "meeting id of the room to open (default: most recent)")
	flag.BoolVar(&opts.mock, "mock", false, "use the in-process mock chat transport")
	flag.StringVar(&opts.fakeBackend, "fake-backend", "", "serve a fake backend on this address and use it")
	flag.Parse()

	if opts.password == "" {
		opts.password = os.Getenv("MOIMO_PASSWORD")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("moimo exited with error")
		stop()
		os.Exit(1)
	}
}

// applyFlags lets flags override loaded configuration.
func applyFlags(cfg *config.Config, opts options) {
	if opts.mock {
		cfg.Realtime.MockMode = true
	}
	if opts.fakeBackend != "" {
		cfg.API.BaseURL = "http://" + opts.fakeBackend + "/api"
		cfg.Realtime.URL = "ws://" + opts.fakeBackend + "/ws"
	}
}
