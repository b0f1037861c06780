// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"testing"
)

type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitCodeError) ExitCode() int {
	return e.code
}

func TestExitCodeNil(t *testing.T) {
	t.Parallel()
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("ExitCode(nil) = %d, want 0", got)
	}
}

func TestExitCodeFromError(t *testing.T) {
	t.Parallel()
	err := &exitCodeError{code: 42}
	if got := ExitCode(err); got != 42 {
		t.Fatalf("ExitCode() = %d, want 42", got)
	}
}

func TestExitCodeWrapped(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("agent exited: %w", &exitCodeError{code: 3})
	if got := ExitCode(err); got != 3 {
		t.Fatalf("ExitCode() = %d, want 3", got)
	}
}

func TestExitCodeUnknownError(t *testing.T) {
	t.Parallel()
	if got := ExitCode(errors.New("boom")); got != -1 {
		t.Fatalf("ExitCode() = %d, want -1", got)
	}
}
