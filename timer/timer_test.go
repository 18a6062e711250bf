// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package timer_test

import (
	"testing"
	"time"

	"github.com/grailbio/membench/timer"
	"github.com/grailbio/testutil/expect"
)

func TestStopwatchFakeClock(t *testing.T) {
	var now time.Duration
	clock := timer.ClockFunc(func() time.Duration { return now })
	sw := timer.New(clock)
	now = 5 * time.Second
	sw.Start()
	now += 1500 * time.Microsecond
	expect.EQ(t, sw.Stop(), 1500*time.Microsecond)
	expect.EQ(t, sw.Milliseconds(), 1.5)
	// Stopping again keeps the reading.
	now += time.Hour
	expect.EQ(t, sw.Stop(), 1500*time.Microsecond)
	expect.EQ(t, sw.Elapsed(), 1500*time.Microsecond)
}

func TestMonotonic(t *testing.T) {
	var sw timer.Stopwatch
	sw.Start()
	time.Sleep(2 * time.Millisecond)
	d := sw.Stop()
	expect.True(t, d >= 2*time.Millisecond)
	expect.True(t, d < 10*time.Second)

	a := timer.Monotonic.Now()
	b := timer.Monotonic.Now()
	expect.True(t, b >= a)
}
