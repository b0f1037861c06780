// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := Fake(start)

	ch := fake.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(start.Add(5 * time.Second)) {
			t.Errorf("fired at %v, want %v", fired, start.Add(5*time.Second))
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var calls atomic.Int64
	timer := fake.AfterFunc(10*time.Second, func() { calls.Add(1) })

	if !timer.Stop() {
		t.Error("Stop on a pending timer should return true")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}

	fake.Advance(time.Minute)
	if calls.Load() != 0 {
		t.Errorf("stopped AfterFunc ran %d times", calls.Load())
	}
}

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("callbacks fired in order %v, want [1 2 3]", order)
	}
}

func TestFakeAfterFuncImmediateWhenNonPositive(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	called := false
	fake.AfterFunc(0, func() { called = true })
	if !called {
		t.Error("AfterFunc(0) should run synchronously")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var calls atomic.Int64
	go fake.AfterFunc(time.Second, func() { calls.Add(1) })

	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	if calls.Load() != 1 {
		t.Errorf("AfterFunc ran %d times, want 1", calls.Load())
	}
}
