// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "fmt"

// AdmissionError reports a spawn rejected because the running-session
// limit is reached. No process is started and no session is recorded.
type AdmissionError struct {
	// Running is the number of sessions running at rejection time.
	Running int

	// Limit is the configured maximum.
	Limit int
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("session limit reached: %d of %d running", e.Running, e.Limit)
}

// ResolutionError reports a spawn rejected before process start:
// an unknown project name or a failed tunnel lookup.
type ResolutionError struct {
	// Subject is what failed to resolve ("project" or "tunnel").
	Subject string

	// Detail describes the failure.
	Detail string

	// Err is the underlying error, if any.
	Err error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.Subject, e.Detail, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.Subject, e.Detail)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SpawnError reports a process that could not be started (missing
// binary, exec failure). No session is recorded.
type SpawnError struct {
	// Err is the underlying start error.
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start agent process: %v", e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// NotFoundError reports an operation naming a session id the registry
// does not hold.
type NotFoundError struct {
	// SessionID is the unknown id.
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown session %q", e.SessionID)
}
