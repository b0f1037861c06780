// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/jonesyjs/mcp-server/lib/agentevent"
	"github.com/jonesyjs/mcp-server/lib/clock"
	"github.com/jonesyjs/mcp-server/lib/config"
	"github.com/jonesyjs/mcp-server/lib/process"
	"github.com/jonesyjs/mcp-server/lib/relay"
)

// maxOutputLineLength bounds a single stream-json line. The initial
// scanner buffer is smaller; it grows on demand up to this limit.
// Lines beyond it abort the scan; the rest of the stream is then
// drained undecoded so the process can still exit.
const maxOutputLineLength = 1024 * 1024

// initialScanBufferLength is the scanner's starting buffer size.
const initialScanBufferLength = 64 * 1024

// maxStderrCapture bounds how much agent stderr is retained for error
// reporting.
const maxStderrCapture = 8 * 1024

// TunnelResolver resolves the public viewer endpoint at spawn time.
// *tunnel.Locator satisfies it.
type TunnelResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// SpawnRequest describes one session to start.
type SpawnRequest struct {
	// Project names a configured project; the agent runs in its path.
	Project string

	// Task is the instruction given to the agent.
	Task string

	// Timeout bounds the session's wall-clock runtime. Zero applies
	// the registry default; negative disables the deadline.
	Timeout time.Duration
}

// Options configures a Registry.
type Options struct {
	// Driver starts agent processes. Required.
	Driver Driver

	// Projects maps project names to their configuration. Required.
	Projects map[string]config.Project

	// Tunnel resolves viewer endpoints. Optional; when nil, sessions
	// carry no tunnel URL.
	Tunnel TunnelResolver

	// Clock supplies time. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxConcurrent caps running sessions. Defaults to 3.
	MaxConcurrent int

	// RetainTerminal caps completed sessions kept in memory; the
	// oldest are evicted beyond it. Defaults to 50.
	RetainTerminal int

	// KillGrace is how long a killed session gets between SIGTERM and
	// SIGKILL. Defaults to 5 seconds.
	KillGrace time.Duration

	// DefaultTimeout is the deadline applied when a spawn request
	// does not set one. Zero means no default deadline.
	DefaultTimeout time.Duration

	// LogDirectory is where per-session JSONL logs are written. Empty
	// disables session logging.
	LogDirectory string
}

// Registry owns every session: admission, process supervision, the
// per-session event logs, and viewer fan-out. All methods are safe for
// concurrent use.
type Registry struct {
	driver         Driver
	projects       map[string]config.Project
	tunnel         TunnelResolver
	clock          clock.Clock
	logger         *slog.Logger
	maxConcurrent  int
	retainTerminal int
	killGrace      time.Duration
	defaultTimeout time.Duration
	logDirectory   string

	mu       sync.Mutex
	sessions map[string]*session

	// order holds session ids oldest-first, for listing and terminal
	// session eviction.
	order []string

	// running counts sessions holding a concurrency slot. A slot is
	// reserved before the process starts and released on start failure
	// or observed exit.
	running int

	supervisors sync.WaitGroup
}

// NewRegistry creates a Registry. Zero-valued options take defaults.
func NewRegistry(options Options) *Registry {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.MaxConcurrent <= 0 {
		options.MaxConcurrent = 3
	}
	if options.RetainTerminal <= 0 {
		options.RetainTerminal = 50
	}
	if options.KillGrace <= 0 {
		options.KillGrace = 5 * time.Second
	}
	return &Registry{
		driver:         options.Driver,
		projects:       options.Projects,
		tunnel:         options.Tunnel,
		clock:          options.Clock,
		logger:         options.Logger,
		maxConcurrent:  options.MaxConcurrent,
		retainTerminal: options.RetainTerminal,
		killGrace:      options.KillGrace,
		defaultTimeout: options.DefaultTimeout,
		logDirectory:   options.LogDirectory,
		sessions:       make(map[string]*session),
	}
}

// Spawn starts a new session. The concurrency slot is reserved before
// any other work so that concurrent spawns cannot overshoot the limit;
// every failure path before the process is recorded releases it.
func (r *Registry) Spawn(ctx context.Context, request SpawnRequest) (Info, error) {
	r.mu.Lock()
	if r.running >= r.maxConcurrent {
		rejection := &AdmissionError{Running: r.running, Limit: r.maxConcurrent}
		r.mu.Unlock()
		return Info{}, rejection
	}
	r.running++
	r.mu.Unlock()

	info, err := r.startSession(ctx, request)
	if err != nil {
		r.mu.Lock()
		r.running--
		r.mu.Unlock()
		return Info{}, err
	}
	return info, nil
}

// startSession does the fallible part of Spawn: resolution, process
// start, and registration. The caller owns the concurrency slot.
func (r *Registry) startSession(ctx context.Context, request SpawnRequest) (Info, error) {
	project, ok := r.projects[request.Project]
	if !ok {
		return Info{}, &ResolutionError{
			Subject: "project",
			Detail:  fmt.Sprintf("no project named %q", request.Project),
		}
	}

	var tunnelURL string
	if r.tunnel != nil {
		url, err := r.tunnel.Resolve(ctx)
		if err != nil {
			return Info{}, &ResolutionError{
				Subject: "tunnel",
				Detail:  "viewer endpoint unavailable",
				Err:     err,
			}
		}
		tunnelURL = url
	}

	id := uuid.NewString()
	log, err := newSessionLog(r.logDirectory, id)
	if err != nil {
		return Info{}, &SpawnError{Err: err}
	}

	proc, stdout, stderr, err := r.driver.Start(StartConfig{
		SessionID:        id,
		Task:             request.Task,
		WorkingDirectory: project.Path,
		Environment:      []string{"JONESY_SESSION_ID=" + id},
	})
	if err != nil {
		if closeErr := log.close(); closeErr != nil {
			r.logger.Warn("session log cleanup failed", "session_id", id, "error", closeErr)
		}
		return Info{}, &SpawnError{Err: err}
	}

	timeout := request.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}

	r.mu.Lock()
	record := &session{
		id:               id,
		project:          request.Project,
		workingDirectory: project.Path,
		task:             request.Task,
		tunnelURL:        tunnelURL,
		pid:              proc.PID(),
		startedAt:        r.clock.Now(),
		status:           StatusRunning,
		subscribers:      make(map[*subscriber]struct{}),
		process:          proc,
		log:              log,
	}
	if timeout > 0 {
		record.timeoutTimer = r.clock.AfterFunc(timeout, func() {
			r.terminate(id, StatusTimeout)
		})
	}
	r.sessions[id] = record
	r.order = append(r.order, id)
	r.evictTerminalLocked()
	info := record.info()
	r.mu.Unlock()

	r.logger.Info("session started",
		"session_id", id,
		"project", request.Project,
		"pid", info.PID,
	)

	r.supervisors.Add(1)
	go r.supervise(id, proc, stdout, stderr)

	return info, nil
}

// supervise owns the process from start to observed exit: it drains
// stdout into the event log, captures a bounded stderr tail, and then
// reaps the process. Stdout must reach EOF before Wait so the pipe is
// fully drained.
func (r *Registry) supervise(id string, proc Process, stdout, stderr io.ReadCloser) {
	defer r.supervisors.Done()

	stderrDone := make(chan struct{})
	var stderrTail []byte
	go func() {
		defer close(stderrDone)
		stderrTail = readCapped(stderr, maxStderrCapture)
	}()

	r.readOutput(id, stdout)
	<-stderrDone

	waitErr := proc.Wait()
	r.observeExit(id, waitErr, stderrTail)
}

// readOutput scans stdout line by line, recording each valid JSON line
// as one raw event. Blank and non-JSON lines are dropped.
func (r *Registry) readOutput(id string, stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, initialScanBufferLength), maxOutputLineLength)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			r.logger.Debug("dropping non-JSON agent output", "session_id", id, "length", len(line))
			continue
		}
		r.appendEvent(id, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("agent output scan ended early", "session_id", id, "error", err)
		// The scanner stops reading after an error (an oversized line,
		// typically). The child would block writing to the full pipe and
		// never exit, so consume the rest of the stream to EOF.
		if _, err := io.Copy(io.Discard, stdout); err != nil {
			r.logger.Debug("agent output drain failed", "session_id", id, "error", err)
		}
	}
}

// appendEvent records one raw event and fans it out to subscribers.
func (r *Registry) appendEvent(id string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.sessions[id]
	if record == nil {
		return
	}
	index := len(record.rawEvents)
	record.rawEvents = append(record.rawEvents, agentevent.RawEvent(raw))
	if err := record.log.append(raw); err != nil {
		r.logger.Warn("session log append failed", "session_id", id, "error", err)
	}
	for _, event := range agentevent.Normalize(raw) {
		switch event.Type {
		case agentevent.TypeToolInvocation:
			record.toolCalls++
		case agentevent.TypeCompletion:
			record.result = event.Completion
		}
	}
	message, err := relay.NewEventMessage(index, raw)
	if err != nil {
		r.logger.Warn("encode event for relay failed", "session_id", id, "error", err)
		return
	}
	for sub := range record.subscribers {
		sub.enqueue(message)
	}
}

// observeExit applies the terminal transition after the process is
// reaped. This is the only place a session leaves the running state
// and the only place its slot is released, so kill requests racing
// natural exits converge on a single consistent outcome.
func (r *Registry) observeExit(id string, waitErr error, stderrTail []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.sessions[id]
	if record == nil {
		return
	}
	if record.killTimer != nil {
		record.killTimer.Stop()
		record.killTimer = nil
	}
	if record.timeoutTimer != nil {
		record.timeoutTimer.Stop()
		record.timeoutTimer = nil
	}
	if record.status == StatusRunning {
		code := process.ExitCode(waitErr)
		record.exitCode = code
		record.endedAt = r.clock.Now()
		switch {
		case record.pendingReason != "":
			record.status = record.pendingReason
		case record.result != nil:
			// The agent's terminal result record marks the run complete
			// even when the process is then torn down with a nonzero
			// exit status.
			record.status = StatusExited
		case code == 0:
			record.status = StatusExited
		default:
			record.status = StatusFailed
			detail := fmt.Sprintf("agent exited with status %d", code)
			if tail := strings.TrimSpace(string(stderrTail)); tail != "" {
				detail += ": " + tail
			}
			record.errorText = detail
		}
		r.running--
	}
	if !record.noticeSent {
		record.noticeSent = true
		kind, detail := record.noticeContent()
		if message, err := relay.NewNoticeMessage(kind, detail); err == nil {
			for sub := range record.subscribers {
				sub.enqueue(message)
				sub.finish()
			}
		}
		record.subscribers = make(map[*subscriber]struct{})
	}
	if err := record.log.close(); err != nil {
		r.logger.Warn("session log close failed", "session_id", id, "error", err)
	}
	record.log = nil
	r.logger.Info("session ended",
		"session_id", id,
		"status", record.status,
		"exit_code", record.exitCode,
		"events", len(record.rawEvents),
	)
}

// Kill requests termination of a running session: SIGTERM now, SIGKILL
// after the grace period if the process has not exited. Killing a
// session that is already terminal or already being killed is a no-op.
func (r *Registry) Kill(sessionID string) error {
	return r.terminate(sessionID, StatusKilled)
}

func (r *Registry) terminate(sessionID string, reason Status) error {
	r.mu.Lock()
	record := r.sessions[sessionID]
	if record == nil {
		r.mu.Unlock()
		return &NotFoundError{SessionID: sessionID}
	}
	if record.status.Terminal() || record.pendingReason != "" {
		r.mu.Unlock()
		return nil
	}
	record.pendingReason = reason
	proc := record.process
	record.killTimer = r.clock.AfterFunc(r.killGrace, func() {
		// Signal on an already-reaped process returns an error, which
		// is the benign outcome of losing the race to a natural exit.
		if err := proc.Signal(unix.SIGKILL); err != nil {
			r.logger.Debug("kill escalation signal", "session_id", sessionID, "error", err)
		}
	})
	r.mu.Unlock()

	r.logger.Info("session termination requested", "session_id", sessionID, "reason", reason)
	if err := proc.Signal(unix.SIGTERM); err != nil {
		r.logger.Debug("termination signal", "session_id", sessionID, "error", err)
	}
	return nil
}

// Get returns a snapshot of one session.
func (r *Registry) Get(sessionID string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.sessions[sessionID]
	if record == nil {
		return Info{}, &NotFoundError{SessionID: sessionID}
	}
	return record.info(), nil
}

// List returns snapshots of all sessions, oldest first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.sessions[id].info())
	}
	return infos
}

// Events returns the session's normalized events starting at
// fromIndex (an index into the raw event log), plus the next index to
// poll from. Raw records that normalize to nothing contribute no
// events but still advance the index.
func (r *Registry) Events(sessionID string, fromIndex int) ([]agentevent.Event, int, error) {
	_, events, next, err := r.Snapshot(sessionID, fromIndex)
	return events, next, err
}

// Snapshot returns a session's info and its normalized events from
// fromIndex in one atomic read, so the status and the event list come
// from the same moment. Status pollers should prefer this over
// separate Get and Events calls.
func (r *Registry) Snapshot(sessionID string, fromIndex int) (Info, []agentevent.Event, int, error) {
	r.mu.Lock()
	record := r.sessions[sessionID]
	if record == nil {
		r.mu.Unlock()
		return Info{}, nil, 0, &NotFoundError{SessionID: sessionID}
	}
	info := record.info()
	if fromIndex < 0 {
		fromIndex = 0
	}
	if fromIndex > len(record.rawEvents) {
		fromIndex = len(record.rawEvents)
	}
	// The raw log is append-only and entries are never mutated, so the
	// sub-slice stays valid after the lock is released.
	raws := record.rawEvents[fromIndex:]
	next := len(record.rawEvents)
	r.mu.Unlock()

	var events []agentevent.Event
	for _, raw := range raws {
		events = append(events, agentevent.Normalize(raw)...)
	}
	return info, events, next, nil
}

// Subscribe streams a session to a viewer connection: every recorded
// event in order, then live events as they arrive, then one terminal
// notice. It blocks until the stream ends or the viewer disconnects,
// and closes the connection before returning. An unknown session id
// gets an error message on the connection and a NotFoundError here.
func (r *Registry) Subscribe(sessionID string, conn io.ReadWriteCloser) error {
	r.mu.Lock()
	record := r.sessions[sessionID]
	if record == nil {
		r.mu.Unlock()
		if message, err := relay.NewErrorMessage(fmt.Sprintf("unknown session %q", sessionID)); err == nil {
			if err := relay.WriteMessage(conn, message); err != nil {
				r.logger.Debug("write subscribe error", "session_id", sessionID, "error", err)
			}
		}
		conn.Close()
		return &NotFoundError{SessionID: sessionID}
	}

	sub := newSubscriber(conn)
	// Replay is enqueued under the registry mutex, so live events
	// broadcast afterwards land strictly behind it: no gap and no
	// duplication between replayed and live events.
	for index, raw := range record.rawEvents {
		if message, err := relay.NewEventMessage(index, raw); err == nil {
			sub.enqueue(message)
		}
	}
	if record.status.Terminal() {
		kind, detail := record.noticeContent()
		if message, err := relay.NewNoticeMessage(kind, detail); err == nil {
			sub.enqueue(message)
		}
		sub.finish()
	} else {
		record.subscribers[sub] = struct{}{}
	}
	r.mu.Unlock()

	go sub.readLoop()
	sub.writeLoop()

	r.mu.Lock()
	if current := r.sessions[sessionID]; current != nil && current.subscribers != nil {
		delete(current.subscribers, sub)
	}
	r.mu.Unlock()
	return nil
}

// Shutdown requests termination of every running session and waits for
// their supervisors to finish, or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	var runningIDs []string
	for _, id := range r.order {
		if r.sessions[id].status == StatusRunning {
			runningIDs = append(runningIDs, id)
		}
	}
	r.mu.Unlock()

	for _, id := range runningIDs {
		if err := r.terminate(id, StatusKilled); err != nil {
			r.logger.Warn("shutdown terminate failed", "session_id", id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		r.supervisors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// evictTerminalLocked drops the oldest terminal sessions beyond the
// retention cap. Running sessions are never evicted. Caller must hold
// the registry mutex.
func (r *Registry) evictTerminalLocked() {
	terminal := 0
	for _, record := range r.sessions {
		if record.status.Terminal() {
			terminal++
		}
	}
	if terminal <= r.retainTerminal {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		record := r.sessions[id]
		if terminal > r.retainTerminal && record.status.Terminal() {
			delete(r.sessions, id)
			terminal--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

// readCapped reads r to EOF, retaining at most limit leading bytes.
func readCapped(r io.Reader, limit int) []byte {
	captured, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil {
		return captured
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return captured
	}
	return captured
}
