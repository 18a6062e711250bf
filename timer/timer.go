// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package timer provides the stopwatch that brackets every timed
// critical section. Readings come from a Clock so that engines can be
// driven by a deterministic clock in tests.
package timer

import "time"

// A Clock returns a monotonic reading. Only differences between
// readings are meaningful.
type Clock interface {
	Now() time.Duration
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Duration

// Now implements Clock.
func (f ClockFunc) Now() time.Duration { return f() }

// Monotonic is the process-wide high resolution clock. On Linux it reads
// CLOCK_MONOTONIC_RAW, which is not slewed by NTP while a measurement is
// in flight.
var Monotonic Clock = monotonic{}

// Stopwatch measures the wall-clock time between Start and Stop.
// The zero Stopwatch uses Monotonic.
type Stopwatch struct {
	// Clock is the reading source; nil means Monotonic.
	Clock Clock

	start, elapsed time.Duration
	running        bool
}

// New returns a stopwatch reading from clock (Monotonic if nil).
func New(clock Clock) *Stopwatch {
	return &Stopwatch{Clock: clock}
}

func (s *Stopwatch) clock() Clock {
	if s.Clock == nil {
		return Monotonic
	}
	return s.Clock
}

// Start (re)starts the stopwatch.
func (s *Stopwatch) Start() {
	s.running = true
	s.elapsed = 0
	s.start = s.clock().Now()
}

// Stop stops the stopwatch and returns the elapsed time since Start.
// Stopping a stopwatch that is not running returns the previous
// reading.
func (s *Stopwatch) Stop() time.Duration {
	if !s.running {
		return s.elapsed
	}
	s.elapsed = s.clock().Now() - s.start
	s.running = false
	return s.elapsed
}

// Elapsed returns the last Start-Stop interval.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.elapsed
}

// Milliseconds returns the last interval in (fractional) milliseconds.
func (s *Stopwatch) Milliseconds() float64 {
	return float64(s.elapsed) / float64(time.Millisecond)
}
