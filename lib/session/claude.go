// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ClaudeDriver starts the Claude Code CLI in non-interactive
// stream-json mode. Each started process prints one JSON record per
// line on stdout: an init record, assistant/user records as the agent
// works, and a final result record.
type ClaudeDriver struct {
	// Binary is the agent executable, e.g. "claude". Resolved through
	// PATH if not absolute.
	Binary string
}

// Start launches the agent for one task. The process intentionally
// does not take a context: a session outlives the tool request that
// spawned it, so termination is driven by the registry's kill path
// rather than context cancellation.
func (driver *ClaudeDriver) Start(config StartConfig) (Process, io.ReadCloser, io.ReadCloser, error) {
	command := exec.Command(driver.Binary,
		"--print",
		"--verbose",
		"--output-format", "stream-json",
		"--dangerously-skip-permissions",
		config.Task,
	)
	command.Dir = config.WorkingDirectory
	command.Env = append(os.Environ(), config.Environment...)
	// Stdin stays nil so the agent reads EOF from the null device and
	// never blocks waiting for interactive input.

	stdout, err := command.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := command.StderrPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open stderr pipe: %w", err)
	}
	if err := command.Start(); err != nil {
		return nil, nil, nil, err
	}
	return &execProcess{command: command}, stdout, stderr, nil
}

// execProcess adapts exec.Cmd to the Process interface.
type execProcess struct {
	command *exec.Cmd
}

func (p *execProcess) PID() int {
	return p.command.Process.Pid
}

func (p *execProcess) Signal(signal os.Signal) error {
	return p.command.Process.Signal(signal)
}

func (p *execProcess) Wait() error {
	return p.command.Wait()
}
