// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source with real and fake
// implementations. The fake clock makes timer-driven behavior (kill
// escalation, session timeouts) deterministic in tests.
package clock
