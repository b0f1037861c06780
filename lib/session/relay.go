// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"io"
	"sync"

	"github.com/jonesyjs/mcp-server/lib/relay"
)

// subscriber is one live viewer of a session. The registry enqueues
// framed messages under its own mutex; a dedicated write loop drains
// the queue onto the connection. Decoupling enqueue from the write
// means a slow viewer never blocks the registry or the process reader.
type subscriber struct {
	conn io.ReadWriteCloser

	mu    sync.Mutex
	cond  *sync.Cond
	queue []relay.Message

	// finished means no further messages will be enqueued; the write
	// loop drains the queue and then closes the connection.
	finished bool

	// closed means the write loop must stop immediately, dropping any
	// queued messages. Set on read/write error or client disconnect.
	closed bool
}

func newSubscriber(conn io.ReadWriteCloser) *subscriber {
	s := &subscriber{conn: conn}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// enqueue appends a message for delivery. Messages enqueued after
// finish or close are dropped.
func (s *subscriber) enqueue(message relay.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.closed {
		return
	}
	s.queue = append(s.queue, message)
	s.cond.Signal()
}

// finish marks the stream complete after the already-queued messages.
func (s *subscriber) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.cond.Signal()
}

// close aborts the stream, discarding queued messages.
func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Signal()
}

// writeLoop drains the queue onto the connection until the stream is
// finished or aborted. It closes the connection before returning.
func (s *subscriber) writeLoop() {
	defer s.conn.Close()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.finished && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			// Finished and fully drained.
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, message := range batch {
			if err := relay.WriteMessage(s.conn, message); err != nil {
				s.close()
				return
			}
		}
	}
}

// readLoop consumes the connection until it errors, which is how a
// client disconnect is detected. Viewers send nothing after their
// subscribe message, so any read result ends the stream.
func (s *subscriber) readLoop() {
	buffer := make([]byte, 256)
	for {
		if _, err := s.conn.Read(buffer); err != nil {
			s.close()
			return
		}
	}
}
