// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// jonesy-mcp is an MCP tool server that spawns coding-agent sessions
// on configured projects, tracks their lifecycle, and streams their
// output to viewer connections.
//
// The MCP protocol runs on stdio; a separate TCP listener serves
// viewers. All logging goes to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sys/unix"

	"github.com/jonesyjs/mcp-server/lib/config"
	"github.com/jonesyjs/mcp-server/lib/process"
	"github.com/jonesyjs/mcp-server/lib/session"
	"github.com/jonesyjs/mcp-server/lib/tunnel"
)

const version = "0.3.0"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "", "path to the configuration file (defaults to $JONESY_CONFIG)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	var resolver session.TunnelResolver
	if cfg.Tunnel.DiscoveryURL != "" {
		resolver = tunnel.NewLocator(cfg.Tunnel.DiscoveryURL)
	}

	registry := session.NewRegistry(session.Options{
		Driver:         &session.ClaudeDriver{Binary: cfg.Agent.Binary},
		Projects:       cfg.ProjectIndex(),
		Tunnel:         resolver,
		Logger:         logger,
		MaxConcurrent:  cfg.Sessions.MaxConcurrent,
		RetainTerminal: cfg.Sessions.RetainTerminal,
		KillGrace:      cfg.Agent.KillGraceDuration(),
		DefaultTimeout: cfg.Agent.DefaultTimeoutDuration(),
		LogDirectory:   cfg.Sessions.LogDirectory,
	})

	listener, err := net.Listen("tcp", cfg.Viewer.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen for viewers on %s: %w", cfg.Viewer.ListenAddress, err)
	}
	viewers := &viewerServer{registry: registry, logger: logger}
	go func() {
		if err := viewers.serve(ctx, listener); err != nil {
			logger.Error("viewer listener failed", "error", err)
		}
	}()

	mcpServer := newToolServer(registry, cfg, logger).build()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.ServeStdio(mcpServer)
	}()

	logger.Info("jonesy-mcp running",
		"version", version,
		"viewer_address", listener.Addr().String(),
		"projects", len(cfg.Projects),
	)

	var serveErr error
	select {
	case <-ctx.Done():
		// Signal received; the stdio server ends when the client
		// closes stdin, which follows process exit.
	case serveErr = <-serveDone:
		// The MCP client went away.
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("session shutdown incomplete", "error", err)
	}
	listener.Close()

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("mcp server: %w", serveErr)
	}
	return nil
}
