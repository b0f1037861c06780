// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides shared helpers for binary entrypoints and
// child process exit handling.
package process

import (
	"errors"
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. This is
// the standard binary entrypoint error handler. Use it in main() for
// errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// ExitCode extracts the child process exit code from a Wait error.
// Returns 0 for a nil error, the exit code for any error exposing an
// ExitCode method (exec.ExitError does; -1 there means killed by
// signal), and -1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}
