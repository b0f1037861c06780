// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// sessionLog persists a session's raw stream-json output to disk.
// While the session runs, lines are appended to <id>.jsonl so a crash
// loses at most the unflushed tail. When the session ends, the file is
// compressed to <id>.jsonl.zst and the raw file removed. Stream-json
// is highly repetitive, so zstd routinely shrinks it several-fold.
//
// A nil *sessionLog is valid and discards everything, which is how a
// registry with no configured log directory runs.
type sessionLog struct {
	path string
	file *os.File
}

// zstdLogEncoder is shared across sessions. zstd.Encoder.EncodeAll is
// safe for concurrent use.
var zstdLogEncoder *zstd.Encoder

func init() {
	var err error
	zstdLogEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("session: zstd encoder initialization failed: " + err.Error())
	}
}

// newSessionLog creates the per-session log file under directory.
// Returns nil (discard everything) when directory is empty.
func newSessionLog(directory, sessionID string) (*sessionLog, error) {
	if directory == "" {
		return nil, nil
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("create session log directory: %w", err)
	}
	path := filepath.Join(directory, sessionID+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create session log: %w", err)
	}
	return &sessionLog{path: path, file: file}, nil
}

// append writes one raw record as a JSONL line.
func (l *sessionLog) append(record []byte) error {
	if l == nil {
		return nil
	}
	if _, err := l.file.Write(record); err != nil {
		return fmt.Errorf("write session log: %w", err)
	}
	if _, err := l.file.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write session log: %w", err)
	}
	return nil
}

// close finalizes the log: the raw JSONL file is compressed to a
// .jsonl.zst sibling and then removed.
func (l *sessionLog) close() error {
	if l == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close session log: %w", err)
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read session log for compression: %w", err)
	}
	compressed := zstdLogEncoder.EncodeAll(raw, nil)
	if err := os.WriteFile(l.path+".zst", compressed, 0o644); err != nil {
		return fmt.Errorf("write compressed session log: %w", err)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("remove raw session log: %w", err)
	}
	return nil
}
