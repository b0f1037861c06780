// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay defines the wire format for the viewer stream: framed
// binary messages carrying session events, notices, and errors over
// any duplex byte stream. A viewer sends one subscribe message, then
// reads events until the stream ends.
package relay

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jonesyjs/mcp-server/lib/codec"
)

// Message type constants for the viewer stream wire format. Each
// message is a 5-byte header (1 byte type + 4 byte big-endian payload
// length) followed by a CBOR payload.
const (
	// MessageTypeSubscribe is the viewer's opening message naming the
	// session to observe. Viewer→server only, exactly once.
	MessageTypeSubscribe byte = 0x01

	// MessageTypeEvent carries one raw session event. Server→viewer
	// only. Recorded events are replayed in order on connect, then
	// live events follow in arrival order.
	MessageTypeEvent byte = 0x02

	// MessageTypeNotice carries a terminal notification ("exited",
	// "killed"). Server→viewer only; the stream closes after it.
	MessageTypeNotice byte = 0x03

	// MessageTypeError reports a failed subscription (unknown session
	// id). Server→viewer only; the stream closes after it.
	MessageTypeError byte = 0x04
)

// messageHeaderLength is the fixed size of a message header: 1 byte
// type + 4 bytes payload length.
const messageHeaderLength = 5

// maxPayloadLength bounds a single payload. Raw agent events are
// capped far below this by the agent's own line discipline; 4 MB
// protects the reader against corrupt frames.
const maxPayloadLength = 4 * 1024 * 1024

// Message is a single framed viewer stream message.
type Message struct {
	Type    byte
	Payload []byte
}

// SubscribePayload is the CBOR body of a subscribe message.
type SubscribePayload struct {
	// SessionID names the session to observe.
	SessionID string `cbor:"session_id"`
}

// EventPayload is the CBOR body of an event message.
type EventPayload struct {
	// Index is the event's position in the session's append-only log.
	Index int `cbor:"index"`

	// Record is the raw stream-json line exactly as the agent emitted
	// it.
	Record []byte `cbor:"record"`
}

// NoticePayload is the CBOR body of a notice message.
type NoticePayload struct {
	// Kind is "exited" (process ended on its own) or "killed"
	// (user-directed termination).
	Kind string `cbor:"kind"`

	// Message is an optional human-readable detail.
	Message string `cbor:"message,omitempty"`
}

// ErrorPayload is the CBOR body of an error message.
type ErrorPayload struct {
	// Error describes why the subscription failed.
	Error string `cbor:"error"`
}

// WriteMessage writes a framed message to w. The frame format is:
// [1 byte type] [4 bytes payload length, big-endian uint32] [payload].
func WriteMessage(w io.Writer, message Message) error {
	var header [messageHeaderLength]byte
	header[0] = message.Type
	binary.BigEndian.PutUint32(header[1:5], uint32(len(message.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write message header: %w", err)
	}
	if len(message.Payload) > 0 {
		if _, err := w.Write(message.Payload); err != nil {
			return fmt.Errorf("write message payload: %w", err)
		}
	}
	return nil
}

// ReadMessage reads a framed message from r. Returns an error if the
// stream is malformed or the payload exceeds maxPayloadLength.
func ReadMessage(r io.Reader) (Message, error) {
	var header [messageHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, fmt.Errorf("read message header: %w", err)
	}
	messageType := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return Message{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Message{}, fmt.Errorf("read message payload: %w", err)
		}
	}
	return Message{Type: messageType, Payload: payload}, nil
}

// NewSubscribeMessage creates the viewer's opening message.
func NewSubscribeMessage(sessionID string) (Message, error) {
	payload, err := codec.Marshal(SubscribePayload{SessionID: sessionID})
	if err != nil {
		return Message{}, fmt.Errorf("encode subscribe payload: %w", err)
	}
	return Message{Type: MessageTypeSubscribe, Payload: payload}, nil
}

// NewEventMessage creates an event message for one raw session record.
func NewEventMessage(index int, record []byte) (Message, error) {
	payload, err := codec.Marshal(EventPayload{Index: index, Record: record})
	if err != nil {
		return Message{}, fmt.Errorf("encode event payload: %w", err)
	}
	return Message{Type: MessageTypeEvent, Payload: payload}, nil
}

// NewNoticeMessage creates a terminal notice message.
func NewNoticeMessage(kind, detail string) (Message, error) {
	payload, err := codec.Marshal(NoticePayload{Kind: kind, Message: detail})
	if err != nil {
		return Message{}, fmt.Errorf("encode notice payload: %w", err)
	}
	return Message{Type: MessageTypeNotice, Payload: payload}, nil
}

// NewErrorMessage creates an error message.
func NewErrorMessage(detail string) (Message, error) {
	payload, err := codec.Marshal(ErrorPayload{Error: detail})
	if err != nil {
		return Message{}, fmt.Errorf("encode error payload: %w", err)
	}
	return Message{Type: MessageTypeError, Payload: payload}, nil
}

// ParseSubscribePayload decodes a subscribe message payload.
func ParseSubscribePayload(payload []byte) (SubscribePayload, error) {
	var parsed SubscribePayload
	if err := codec.Unmarshal(payload, &parsed); err != nil {
		return SubscribePayload{}, fmt.Errorf("decode subscribe payload: %w", err)
	}
	if parsed.SessionID == "" {
		return SubscribePayload{}, fmt.Errorf("subscribe payload missing session_id")
	}
	return parsed, nil
}

// ParseEventPayload decodes an event message payload.
func ParseEventPayload(payload []byte) (EventPayload, error) {
	var parsed EventPayload
	if err := codec.Unmarshal(payload, &parsed); err != nil {
		return EventPayload{}, fmt.Errorf("decode event payload: %w", err)
	}
	return parsed, nil
}

// ParseNoticePayload decodes a notice message payload.
func ParseNoticePayload(payload []byte) (NoticePayload, error) {
	var parsed NoticePayload
	if err := codec.Unmarshal(payload, &parsed); err != nil {
		return NoticePayload{}, fmt.Errorf("decode notice payload: %w", err)
	}
	return parsed, nil
}

// ParseErrorPayload decodes an error message payload.
func ParseErrorPayload(payload []byte) (ErrorPayload, error) {
	var parsed ErrorPayload
	if err := codec.Unmarshal(payload, &parsed); err != nil {
		return ErrorPayload{}, fmt.Errorf("decode error payload: %w", err)
	}
	return parsed, nil
}
