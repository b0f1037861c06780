// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"
)

// fakeExitError mimics the error exec.Cmd.Wait returns for a nonzero
// exit.
type fakeExitError struct {
	code int
}

func (e *fakeExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *fakeExitError) ExitCode() int {
	return e.code
}

// fakeProcess is a scripted agent process. Wait blocks until the test
// calls exit; signals are recorded for assertion.
type fakeProcess struct {
	pid     int
	signals chan os.Signal

	mu      sync.Mutex
	done    chan struct{}
	exitErr error
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{
		pid:     pid,
		signals: make(chan os.Signal, 16),
		done:    make(chan struct{}),
	}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Signal(signal os.Signal) error {
	select {
	case <-p.done:
		return fmt.Errorf("os: process already finished")
	default:
	}
	p.signals <- signal
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// fakeAgent is one started process plus the write ends of its output
// pipes.
type fakeAgent struct {
	config  StartConfig
	process *fakeProcess
	stdout  *io.PipeWriter
	stderr  *io.PipeWriter
}

// emit writes one stdout line.
func (a *fakeAgent) emit(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(a.stdout, line+"\n"); err != nil {
		t.Fatalf("emit agent output: %v", err)
	}
}

// emitStderr writes to the agent's stderr.
func (a *fakeAgent) emitStderr(t *testing.T, text string) {
	t.Helper()
	if _, err := io.WriteString(a.stderr, text); err != nil {
		t.Fatalf("emit agent stderr: %v", err)
	}
}

// exit ends the process: output streams close, then Wait returns err.
func (a *fakeAgent) exit(err error) {
	a.process.mu.Lock()
	a.process.exitErr = err
	a.process.mu.Unlock()
	a.stdout.Close()
	a.stderr.Close()
	close(a.process.done)
}

// fakeDriver hands out fakeAgents and records start configurations.
type fakeDriver struct {
	mu       sync.Mutex
	startErr error
	nextPID  int
	agents   []*fakeAgent
}

func (d *fakeDriver) Start(config StartConfig) (Process, io.ReadCloser, io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return nil, nil, nil, d.startErr
	}
	d.nextPID++
	stdoutReader, stdoutWriter := io.Pipe()
	stderrReader, stderrWriter := io.Pipe()
	agent := &fakeAgent{
		config:  config,
		process: newFakeProcess(d.nextPID + 1000),
		stdout:  stdoutWriter,
		stderr:  stderrWriter,
	}
	d.agents = append(d.agents, agent)
	return agent.process, stdoutReader, stderrReader, nil
}

// agent returns the i-th started agent.
func (d *fakeDriver) agent(t *testing.T, i int) *fakeAgent {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.agents) {
		t.Fatalf("agent %d not started (have %d)", i, len(d.agents))
	}
	return d.agents[i]
}

// fakeResolver is a scripted tunnel resolver.
type fakeResolver struct {
	url string
	err error
}

func (r *fakeResolver) Resolve(ctx context.Context) (string, error) {
	return r.url, r.err
}

// waitForStatus polls until the session reaches the wanted detailed
// status (the Reason field for terminal states).
func waitForStatus(t *testing.T, registry *Registry, sessionID string, want Status) Info {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last Info
	for time.Now().Before(deadline) {
		info, err := registry.Get(sessionID)
		if err == nil {
			if want == StatusRunning && info.Status == StateRunning {
				return info
			}
			if want != StatusRunning && info.Reason == want {
				return info
			}
		}
		last = info
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %q (last: %+v)", sessionID, want, last)
	return Info{}
}

// waitForEventCount polls until the session has recorded at least n
// raw events.
func waitForEventCount(t *testing.T, registry *Registry, sessionID string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := registry.Get(sessionID)
		if err == nil && info.EventCount >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session %s never recorded %d events", sessionID, n)
}
