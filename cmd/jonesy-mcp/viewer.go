// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonesyjs/mcp-server/lib/relay"
	"github.com/jonesyjs/mcp-server/lib/session"
)

// subscribeTimeout bounds how long a freshly accepted connection may
// take to send its subscribe message.
const subscribeTimeout = 10 * time.Second

// viewerServer accepts viewer TCP connections, reads the opening
// subscribe message, and hands the connection to the registry for
// streaming.
type viewerServer struct {
	registry *session.Registry
	logger   *slog.Logger
}

// serve runs the accept loop until ctx is cancelled.
func (v *viewerServer) serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept viewer connection: %w", err)
		}
		go v.handle(conn)
	}
}

func (v *viewerServer) handle(conn net.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(subscribeTimeout)); err != nil {
		conn.Close()
		return
	}
	message, err := relay.ReadMessage(conn)
	if err != nil {
		v.logger.Debug("viewer handshake read failed", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}
	if message.Type != relay.MessageTypeSubscribe {
		v.rejectConn(conn, fmt.Sprintf("expected subscribe message, got type %#x", message.Type))
		return
	}
	payload, err := relay.ParseSubscribePayload(message.Payload)
	if err != nil {
		v.rejectConn(conn, err.Error())
		return
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		return
	}

	v.logger.Info("viewer connected", "remote", conn.RemoteAddr(), "session_id", payload.SessionID)
	if err := v.registry.Subscribe(payload.SessionID, conn); err != nil {
		v.logger.Debug("viewer subscription rejected", "session_id", payload.SessionID, "error", err)
		return
	}
	v.logger.Info("viewer disconnected", "remote", conn.RemoteAddr(), "session_id", payload.SessionID)
}

// rejectConn sends one error message and closes the connection.
func (v *viewerServer) rejectConn(conn net.Conn, detail string) {
	defer conn.Close()
	message, err := relay.NewErrorMessage(detail)
	if err != nil {
		return
	}
	if err := relay.WriteMessage(conn, message); err != nil {
		v.logger.Debug("viewer reject write failed", "remote", conn.RemoteAddr(), "error", err)
	}
}
