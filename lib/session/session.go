// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"time"

	"github.com/jonesyjs/mcp-server/lib/agentevent"
	"github.com/jonesyjs/mcp-server/lib/clock"
)

// Status is a session's lifecycle state.
type Status string

const (
	// StatusRunning means the agent process is alive.
	StatusRunning Status = "running"

	// StatusExited means the process ended on its own with exit
	// status 0.
	StatusExited Status = "exited"

	// StatusFailed means the process ended on its own with a nonzero
	// exit status or a runtime error.
	StatusFailed Status = "failed"

	// StatusKilled means the process was terminated by a kill request.
	StatusKilled Status = "killed"

	// StatusTimeout means the process was terminated because it
	// exceeded its deadline.
	StatusTimeout Status = "timeout"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool { return s != StatusRunning }

// State is the client-facing lifecycle classification.
type State string

const (
	// StateRunning means the session is still in progress.
	StateRunning State = "running"

	// StateComplete means the session ended without a runtime failure.
	// Kill and timeout classify as complete: both are user-directed
	// ends of the run, not agent failures.
	StateComplete State = "complete"

	// StateError means the agent failed at runtime.
	StateError State = "error"
)

// State maps the detailed status onto the three-value classification
// clients branch on.
func (s Status) State() State {
	switch s {
	case StatusRunning:
		return StateRunning
	case StatusFailed:
		return StateError
	default:
		return StateComplete
	}
}

// session is the registry's record of one agent process. Every field
// is guarded by the registry mutex; nothing outside the registry holds
// a reference.
type session struct {
	id               string
	project          string
	workingDirectory string
	task             string
	tunnelURL        string
	pid              int
	startedAt        time.Time
	endedAt          time.Time
	status           Status
	exitCode         int
	errorText        string

	// rawEvents is the append-only per-session event log: one entry
	// per stream-json line, in arrival order, never mutated in place.
	rawEvents []agentevent.RawEvent

	// toolCalls counts tool_use blocks seen so far.
	toolCalls int

	// result is set when the agent's terminal result record arrives.
	result *agentevent.Completion

	subscribers map[*subscriber]struct{}
	process     Process
	log         *sessionLog

	// killTimer escalates SIGTERM to SIGKILL when the grace period
	// expires. timeoutTimer triggers the kill path at the session
	// deadline. Both are stopped when the process exit is observed.
	killTimer    *clock.Timer
	timeoutTimer *clock.Timer

	// pendingReason is the terminal status a kill or timeout request
	// intends. It is applied when the process exit is observed, so the
	// session stays running (and keeps capturing output) until the
	// process is actually gone.
	pendingReason Status

	// noticeSent guards the single terminal notice to subscribers.
	noticeSent bool
}

// noticeContent maps a terminal status to the notice a viewer sees.
// Caller must hold the registry mutex.
func (s *session) noticeContent() (kind, detail string) {
	switch s.status {
	case StatusKilled:
		return "killed", "session killed"
	case StatusTimeout:
		return "killed", "session deadline exceeded"
	case StatusFailed:
		return "exited", s.errorText
	default:
		return "exited", fmt.Sprintf("agent exited with status %d", s.exitCode)
	}
}

// Info is a point-in-time snapshot of a session, safe to hold after
// the registry mutex is released.
type Info struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// Project is the configured project name the session runs in.
	Project string `json:"project"`

	// Task is the instruction given to the agent.
	Task string `json:"task"`

	// TunnelURL is the public viewer endpoint resolved at spawn time.
	TunnelURL string `json:"tunnel_url,omitempty"`

	// PID is the agent process id.
	PID int `json:"pid"`

	// Status is the lifecycle classification at snapshot time: one of
	// running, complete, or error.
	Status State `json:"status"`

	// Reason narrows a terminal status: exited, failed, killed, or
	// timeout. Empty while running.
	Reason Status `json:"reason,omitempty"`

	// StartedAt is when the process started.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the session reached a terminal state; zero while
	// running.
	EndedAt time.Time `json:"ended_at,omitzero"`

	// ExitCode is the process exit code; meaningful only for terminal
	// states reached through process exit.
	ExitCode int `json:"exit_code"`

	// Error describes a runtime failure, if any.
	Error string `json:"error,omitempty"`

	// EventCount is the number of recorded raw events.
	EventCount int `json:"event_count"`

	// ToolCalls is the number of tool invocations observed.
	ToolCalls int `json:"tool_calls"`

	// Result is the agent's final summary, if the session completed.
	Result *agentevent.Completion `json:"result,omitempty"`
}

// info snapshots the session. Caller must hold the registry mutex.
func (s *session) info() Info {
	var reason Status
	if s.status.Terminal() {
		reason = s.status
	}
	return Info{
		ID:         s.id,
		Project:    s.project,
		Task:       s.task,
		TunnelURL:  s.tunnelURL,
		PID:        s.pid,
		Status:     s.status.State(),
		Reason:     reason,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
		ExitCode:   s.exitCode,
		Error:      s.errorText,
		EventCount: len(s.rawEvents),
		ToolCalls:  s.toolCalls,
		Result:     s.result,
	}
}
