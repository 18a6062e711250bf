// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package latency measures memory and execution latency on a device.
// Memory latency is measured by chasing an index chain with a single
// work-item: each load's address is the value of the previous load, so
// the elapsed time divided by the number of loads is the latency of
// one access.
package latency

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/grailbio/membench/chain"
	"github.com/grailbio/membench/device"
	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/log"
)

// Config parameterizes an Engine.
type Config struct {
	// Iterations is the number of dependent steps per launch.
	Iterations uint32
	// Stride is the step of Strided chains.
	Stride uint32
	// AtomicDivisor converts the elapsed time per iteration of an
	// atomic kernel into the time per hand-off.
	AtomicDivisor float64
	// ExecOpsPerIteration is the number of dependent integer
	// operations per iteration of the int exec kernel.
	ExecOpsPerIteration float64
	// Rand drives Sattolo chains. Nil means a generator seeded from
	// the current time.
	Rand *rand.Rand
}

// DefaultConfig returns the configuration used by gpumemlatency.
func DefaultConfig() Config {
	return Config{
		Iterations:          7000000,
		Stride:              1211,
		AtomicDivisor:       2,
		ExecOpsPerIteration: 12,
	}
}

// An Engine runs latency measurements on a device session. Engines are
// not safe for concurrent use.
type Engine struct {
	Session *device.Session
	Config  Config
}

// New returns an engine for the session.
func New(s *device.Session, config Config) *Engine {
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{Session: s, Config: config}
}

// Rand returns the generator used for Sattolo chains.
func (e *Engine) Rand() *rand.Rand {
	if e.Config.Rand == nil {
		e.Config.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e.Config.Rand
}

// state tracks a chain measurement through its steps.
type state int

const (
	idle state = iota
	arrayBuilt
	uploaded
	launched
	drained
	resultRead
	done
	failed
)

var stateNames = [...]string{"idle", "array built", "uploaded", "launched", "drained", "result read", "done", "failed"}

func (s state) String() string { return stateNames[s] }

// Launch describes one chain launch.
type Launch struct {
	// Kernel is the entry point to run.
	Kernel string
	// Chain is uploaded as the kernel's A argument.
	Chain chain.Chain
	// Iterations is the kernel's count argument.
	Iterations uint32
	// WithSize passes the chain length after count, as the parallel
	// chase kernel expects.
	WithSize bool
	// Results is the number of words in the result buffer.
	Results int
	// Global and Local are the launch's work sizes.
	Global, Local int
	// Access is how the kernel uses A. The zero value is read-only.
	Access device.Access
}

// Run uploads l.Chain, launches l.Kernel, drains the queue and reads
// the result buffer back. It returns the time from enqueue to drain.
// Buffers are released on every path.
func (e *Engine) Run(l Launch) (elapsed time.Duration, err error) {
	st := idle
	to := func(next state) {
		log.Debug.Printf("latency: %s n=%d: %s -> %s", l.Kernel, len(l.Chain), st, next)
		st = next
	}
	defer func() {
		if err != nil {
			to(failed)
			elapsed = 0
		}
	}()
	if len(l.Chain) == 0 {
		return 0, errors.E(errors.Invalid, l.Kernel+": empty chain")
	}
	if l.Results < 1 {
		l.Results = 1
	}
	to(arrayBuilt)
	a, err := e.Session.NewBuffer(l.Access, len(l.Chain))
	if err != nil {
		return 0, err
	}
	defer errors.CleanUp(a.Release, &err)
	ret, err := e.Session.NewBuffer(device.ReadWrite, l.Results)
	if err != nil {
		return 0, err
	}
	defer errors.CleanUp(ret.Release, &err)
	if err = a.Write(l.Chain); err != nil {
		return 0, errors.E(errors.Launch, "uploading chain", err)
	}
	results := make([]uint32, l.Results)
	if err = ret.Write(results); err != nil {
		return 0, errors.E(errors.Launch, "clearing results", err)
	}
	to(uploaded)
	args := []device.Arg{a, l.Iterations}
	if l.WithSize {
		args = append(args, uint32(len(l.Chain)))
	}
	args = append(args, ret)
	to(launched)
	elapsed, err = e.Session.RunKernel(l.Kernel, args, l.Global, l.Local)
	if err != nil {
		return 0, err
	}
	to(drained)
	if err = e.Session.Read(ret, results); err != nil {
		return 0, errors.E(errors.Launch, "reading results", err)
	}
	to(resultRead)
	to(done)
	return elapsed, nil
}

func perIteration(elapsed time.Duration, iterations float64) (float64, error) {
	if iterations <= 0 {
		return 0, errors.E(errors.Invalid, "no iterations")
	}
	if elapsed <= 0 {
		return 0, errors.E("elapsed time below timer resolution")
	}
	return float64(elapsed.Nanoseconds()) / iterations, nil
}

// Chase builds a chain of listSize slots in the given mode, chases it
// Config.Iterations times with a single work-item and returns the
// latency of one access in nanoseconds. A failed measurement returns
// 0 and the reason.
func (e *Engine) Chase(kernel string, listSize uint32, mode chain.Mode) (float64, error) {
	if listSize == 0 {
		return 0, errors.E(errors.Invalid, kernel+": empty chain")
	}
	c := chain.Generate(int(listSize), mode, e.Config.Stride, e.Rand())
	elapsed, err := e.Run(Launch{
		Kernel:     kernel,
		Chain:      c,
		Iterations: e.Config.Iterations,
		Global:     1,
		Local:      1,
	})
	if err != nil {
		return 0, errors.E(fmt.Sprintf("%s size %d", kernel, listSize), err)
	}
	return perIteration(elapsed, float64(e.Config.Iterations))
}

// intExecInputs is the size of the int exec kernel's input buffer.
const intExecInputs = 16

// IntExec measures the latency of one dependent integer operation in
// nanoseconds.
func (e *Engine) IntExec() (float64, error) {
	in := make(chain.Chain, intExecInputs)
	for i := range in {
		in[i] = uint32(i)
	}
	elapsed, err := e.Run(Launch{
		Kernel:     device.IntExecKernel,
		Chain:      in,
		Iterations: e.Config.Iterations,
		Global:     1,
		Local:      1,
	})
	if err != nil {
		return 0, err
	}
	return perIteration(elapsed, float64(e.Config.Iterations)*e.Config.ExecOpsPerIteration)
}

// Atomic measures the latency of handing an atomic counter from one
// work-item to another, in nanoseconds. With local set, both
// work-items share a work-group and a local memory counter; otherwise
// each is its own work-group and the counter is in global memory.
func (e *Engine) Atomic(local bool) (float64, error) {
	kernel, groupSize := device.AtomicKernel, 1
	if local {
		kernel, groupSize = device.LocalAtomicKernel, 2
	}
	elapsed, err := e.Run(Launch{
		Kernel:     kernel,
		Chain:      chain.Chain{0},
		Iterations: e.Config.Iterations,
		Results:    2,
		Global:     2,
		Local:      groupSize,
		Access:     device.ReadWrite,
	})
	if err != nil {
		return 0, err
	}
	if e.Config.AtomicDivisor <= 0 {
		return 0, errors.E(errors.Invalid, "atomic divisor must be positive")
	}
	return perIteration(elapsed, float64(e.Config.Iterations)*e.Config.AtomicDivisor)
}
