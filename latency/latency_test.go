// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package latency_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/grailbio/membench/chain"
	"github.com/grailbio/membench/device"
	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/latency"
	"github.com/grailbio/membench/timer"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func source(t *testing.T) string {
	t.Helper()
	src, err := device.LoadSource("../cmd/gpumemlatency/latency_kernel.cl")
	assert.NoError(t, err)
	return src
}

// stepClock advances by step on every reading.
func stepClock(step time.Duration) timer.Clock {
	var now time.Duration
	return timer.ClockFunc(func() time.Duration {
		now += step
		return now
	})
}

func newEngine(t *testing.T, iterations uint32) (*latency.Engine, func()) {
	t.Helper()
	s, err := device.Open(device.Host, device.Selection{}, source(t))
	assert.NoError(t, err)
	config := latency.DefaultConfig()
	config.Iterations = iterations
	config.Rand = rand.New(rand.NewSource(1))
	return latency.New(s, config), func() { expect.NoError(t, s.Close()) }
}

func TestDefaultConfig(t *testing.T) {
	c := latency.DefaultConfig()
	expect.EQ(t, c.Iterations, uint32(7000000))
	expect.EQ(t, c.Stride, uint32(1211))
	expect.EQ(t, c.AtomicDivisor, 2.0)
	expect.EQ(t, c.ExecOpsPerIteration, 12.0)
}

func TestChaseFakeClock(t *testing.T) {
	e, done := newEngine(t, 1000)
	defer done()
	e.Session.Clock = stepClock(time.Millisecond)
	for _, mode := range []chain.Mode{chain.Sattolo, chain.Strided} {
		ns, err := e.Chase(device.LatencyKernel, 4096, mode)
		assert.NoError(t, err)
		expect.EQ(t, ns, 1000.0)
	}
	ns, err := e.Chase(device.ConstantLatencyKernel, 256, chain.Strided)
	assert.NoError(t, err)
	expect.EQ(t, ns, 1000.0)
}

func TestChaseMonotonic(t *testing.T) {
	e, done := newEngine(t, 100000)
	defer done()
	ns, err := e.Chase(device.LatencyKernel, 2*256, chain.Sattolo)
	assert.NoError(t, err)
	expect.True(t, ns > 0)
}

func TestIntExec(t *testing.T) {
	e, done := newEngine(t, 1000)
	defer done()
	e.Session.Clock = stepClock(12 * time.Millisecond)
	ns, err := e.IntExec()
	assert.NoError(t, err)
	expect.EQ(t, ns, 1000.0)
}

func TestAtomic(t *testing.T) {
	e, done := newEngine(t, 1000)
	defer done()
	for _, local := range []bool{false, true} {
		e.Session.Clock = stepClock(time.Millisecond)
		ns, err := e.Atomic(local)
		assert.NoError(t, err)
		expect.EQ(t, ns, 500.0)
	}
}

func TestFailures(t *testing.T) {
	e, done := newEngine(t, 1000)
	defer done()
	ns, err := e.Chase("missing_kernel", 256, chain.Sattolo)
	expect.EQ(t, ns, 0.0)
	expect.True(t, errors.Is(errors.NotExist, err))

	ns, err = e.Chase(device.LatencyKernel, 0, chain.Sattolo)
	expect.EQ(t, ns, 0.0)
	expect.True(t, errors.Is(errors.Invalid, err))

	// A stopped clock yields no measurement.
	e.Session.Clock = timer.ClockFunc(func() time.Duration { return time.Second })
	ns, err = e.Chase(device.LatencyKernel, 256, chain.Strided)
	expect.EQ(t, ns, 0.0)
	expect.True(t, err != nil)
}

func TestRunSelfLoop(t *testing.T) {
	e, done := newEngine(t, 10)
	defer done()
	e.Session.Clock = stepClock(time.Microsecond)
	elapsed, err := e.Run(latency.Launch{
		Kernel:     device.LatencyKernel,
		Chain:      chain.Chain{0},
		Iterations: 10,
		Global:     1,
		Local:      1,
	})
	assert.NoError(t, err)
	expect.EQ(t, elapsed, time.Microsecond)
}
