// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/moimo/internal/config"
	"github.com/tomtom215/moimo/internal/fakebackend"
	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/supervisor"
	"github.com/tomtom215/moimo/internal/supervisor/services"
)

const connectTimeout = 30 * time.Second

func run(ctx context.Context, cfg *config.Config, opts options, in io.Reader, out io.Writer) error {
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	defer a.close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if opts.fakeBackend != "" {
		tree.AddOpsService(services.NewFakeBackendService(fakebackend.New(), opts.fakeBackend))
		logging.Info().Str("addr", opts.fakeBackend).Msg("Fake backend enabled")
	}
	if cfg.Metrics.Addr != "" {
		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		tree.AddOpsService(services.NewHTTPServerService("metrics-http", server, 5*time.Second))
		logging.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics endpoint enabled")
	}
	tree.AddRealtimeService(services.NewRealtimeService(a.store, a.holder, services.RealtimeOptions{
		Interval: cfg.Realtime.ReconcileInterval,
		MockMode: cfg.Realtime.MockMode,
	}))

	treeCtx, cancelTree := context.WithCancel(ctx)
	treeDone := tree.ServeBackground(treeCtx)
	defer func() {
		cancelTree()
		if err := <-treeDone; err != nil && treeCtx.Err() == nil {
			logging.Warn().Err(err).Msg("supervisor tree stopped with error")
		}
	}()

	if opts.fakeBackend != "" {
		if err := waitForListener(ctx, opts.fakeBackend, 5*time.Second); err != nil {
			return err
		}
	}

	snap, err := a.authenticate(ctx, opts.email, opts.password)
	if err != nil {
		return err
	}
	if snap != nil && snap.User != nil {
		a.printf("logged in as %s\n", snap.User.Nickname)
	}

	if err := a.waitConnected(ctx, connectTimeout); err != nil {
		return err
	}
	if _, err := a.loadRooms(ctx); err != nil {
		return err
	}
	a.printRooms()
	if err := a.openRoom(ctx, opts.room); err != nil {
		return err
	}

	return a.chatLoop(ctx, in)
}

// chatLoop reads commands and messages from in until /quit, EOF or ctx ends.
func (a *app) chatLoop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if quit := a.handleLine(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handleLine runs one input line and reports whether the loop should end.
func (a *app) handleLine(ctx context.Context, line string) bool {
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/rooms":
		a.printRooms()
	case strings.HasPrefix(line, "/join "):
		id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/join ")), 10, 64)
		if err != nil || id <= 0 {
			a.printf("usage: /join <meeting id>\n")
			break
		}
		if err := a.openRoom(ctx, id); err != nil {
			a.printf("error: %v\n", err)
		}
	case strings.HasPrefix(line, "/"):
		a.printf("unknown command %s\n", line)
	default:
		if err := a.chat.SendMessage(ctx, line); err != nil {
			a.printf("error: %v\n", err)
		}
	}
	return false
}

// waitForListener polls addr until it accepts TCP connections.
func waitForListener(ctx context.Context, addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var d net.Dialer
	for {
		dialCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			return conn.Close()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fake backend on %s not reachable: %w", addr, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
