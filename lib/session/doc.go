// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package session runs coding-agent processes and tracks their
// lifecycle. The Registry is the package's entry point: it admits
// spawn requests against a concurrency limit, resolves the target
// project and tunnel endpoint, starts the agent process through a
// Driver, captures its stream-json output line by line into an
// append-only per-session log, and fans live events out to subscribed
// viewers.
//
// A session starts in the running state and ends in exactly one of
// exited, failed, killed, or timeout. Clients see these collapsed to
// three states: running, complete (exited, killed, timeout), and error
// (failed), with the detailed status carried as the reason.
// Transitions are forward-only: once a
// session reaches a terminal state no later signal (a late kill, a
// duplicate exit observation) changes it. All shared state is owned by
// a single registry mutex; the per-session reader goroutine and timer
// callbacks take that mutex for every mutation.
package session
