// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/jonesyjs/mcp-server/lib/relay"
	"github.com/jonesyjs/mcp-server/lib/session"
)

func startViewerServer(t *testing.T) net.Addr {
	t.Helper()
	registry := session.NewRegistry(session.Options{
		Driver: stubDriver{},
		Logger: slog.New(slog.DiscardHandler),
	})
	viewers := &viewerServer{
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := viewers.serve(ctx, listener); err != nil {
			t.Errorf("serve: %v", err)
		}
	}()
	return listener.Addr()
}

func TestViewerUnknownSessionGetsError(t *testing.T) {
	t.Parallel()
	address := startViewerServer(t)

	conn, err := net.Dial("tcp", address.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	subscribe, err := relay.NewSubscribeMessage("no-such-session")
	if err != nil {
		t.Fatalf("NewSubscribeMessage: %v", err)
	}
	if err := relay.WriteMessage(conn, subscribe); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	message, err := relay.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if message.Type != relay.MessageTypeError {
		t.Fatalf("message type = %#x, want error", message.Type)
	}
	payload, err := relay.ParseErrorPayload(message.Payload)
	if err != nil {
		t.Fatalf("ParseErrorPayload: %v", err)
	}
	if payload.Error == "" {
		t.Fatal("expected an error description")
	}
}

func TestViewerRejectsWrongOpeningMessage(t *testing.T) {
	t.Parallel()
	address := startViewerServer(t)

	conn, err := net.Dial("tcp", address.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	notice, err := relay.NewNoticeMessage("exited", "")
	if err != nil {
		t.Fatalf("NewNoticeMessage: %v", err)
	}
	if err := relay.WriteMessage(conn, notice); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	message, err := relay.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if message.Type != relay.MessageTypeError {
		t.Fatalf("message type = %#x, want error", message.Type)
	}
}
