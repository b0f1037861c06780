// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "testing"

func TestStatusStateClassification(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status Status
		want   State
	}{
		{StatusRunning, StateRunning},
		{StatusExited, StateComplete},
		{StatusKilled, StateComplete},
		{StatusTimeout, StateComplete},
		{StatusFailed, StateError},
	}
	for _, c := range cases {
		if got := c.status.State(); got != c.want {
			t.Errorf("%s.State() = %q, want %q", c.status, got, c.want)
		}
	}
}
