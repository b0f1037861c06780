// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"io"
	"os"
)

// Process is a handle to a started agent process. The real
// implementation wraps os/exec; tests substitute a fake.
type Process interface {
	// PID returns the operating system process id.
	PID() int

	// Signal delivers a signal to the process.
	Signal(signal os.Signal) error

	// Wait blocks until the process exits and returns its exit error
	// (nil for exit status 0). Wait must be called exactly once.
	Wait() error
}

// StartConfig describes one agent process to start.
type StartConfig struct {
	// SessionID identifies the session the process belongs to.
	SessionID string

	// Task is the instruction passed to the agent.
	Task string

	// WorkingDirectory is the project path the agent runs in.
	WorkingDirectory string

	// Environment is extra environment variables in KEY=VALUE form,
	// appended to the parent environment.
	Environment []string
}

// Driver starts agent processes. The registry is agnostic to the
// agent binary and its invocation; the driver owns both.
type Driver interface {
	// Start launches an agent process for the given configuration.
	// It returns the process handle and the process's stdout and
	// stderr streams. Stdin is connected to the null device: the
	// agent must run non-interactively.
	Start(config StartConfig) (Process, io.ReadCloser, io.ReadCloser, error)
}
