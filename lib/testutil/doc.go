// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared across test files:
// channel receive/close assertions with timeout safety valves.
package testutil
