// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bandwidth measures sustained read bandwidth: of host memory,
// with one streaming reader per OS thread, and of device memory, with
// many work-items chasing one chain in parallel.
package bandwidth

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/log"
	"github.com/grailbio/membench/membuf"
	"github.com/grailbio/membench/memread"
	"github.com/grailbio/membench/timer"
	"github.com/grailbio/membench/traverse"
)

// Mode selects how host threads share the test array.
type Mode int

const (
	// Shared threads all read one array of the test size.
	Shared Mode = iota
	// Private threads each read their own array holding an equal share
	// of the test size.
	Private
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Private {
		return "private"
	}
	return "shared"
}

const (
	cachelineSize = 64
	// Above offsetThreshold elements, thread t starts reading at
	// t*threadOffset elements so that threads do not stream the same
	// lines in lockstep.
	offsetThreshold = 8192 * 1024
	threadOffset    = 4096
)

// Host measures host memory bandwidth.
type Host struct {
	// Threads is the number of concurrent readers.
	Threads int
	// Mode selects shared or per-thread arrays.
	Mode Mode
	// Method is the read loop each thread runs.
	Method memread.Method
	// Pin binds reader t to CPU t mod NumCPU where supported.
	Pin bool
	// Clock times the measurement; nil means timer.Monotonic.
	Clock timer.Clock
	// Read overrides Method's read loop.
	Read memread.Func
}

// Result is the outcome of one host measurement.
type Result struct {
	// GBps is the read bandwidth in GB/s (10^9 bytes per second).
	GBps float64
	// Elapsed is the time from the first reader's start to the last
	// reader's end.
	Elapsed time.Duration
	// Bytes is the number of bytes read.
	Bytes float64
}

// workItem is one reader's share of a measurement.
type workItem struct {
	arr        []float32
	length     uint64
	iterations uint64
	start      uint64
}

// slot holds one reader's result on its own cache line.
type slot struct {
	sum float32
	_   [cachelineSize - 4]byte
}

// IterationCount returns the number of passes over an array of sizeKiB
// that moves a fixed amount of data: 512 GB for arrays up to 64 KiB, 64
// GB up to 512 KiB, 32 GB up to 8 MiB and 16 GB beyond, with a minimum
// of 8 passes.
func IterationCount(sizeKiB uint64) uint64 {
	if sizeKiB == 0 {
		return 8
	}
	gb := uint64(512)
	switch {
	case sizeKiB > 8192:
		gb = 16
	case sizeKiB > 512:
		gb = 32
	case sizeKiB > 64:
		gb = 64
	}
	n := gb * 1024 * 1024 / sizeKiB
	if n < 8 {
		return 8
	}
	return n
}

// Measure returns the bandwidth of reading sizeKiB of memory
// iterations times, in GB/s. It returns 0 and an error if the
// measurement could not be made; the error is of kind Invalid if the
// configuration does not fit the size.
func (h Host) Measure(sizeKiB, iterations uint64) (float64, error) {
	r, err := h.Run(sizeKiB, iterations)
	if err != nil {
		return 0, err
	}
	return r.GBps, nil
}

// Run performs a measurement and returns its details.
func (h Host) Run(sizeKiB, iterations uint64) (_ Result, err error) {
	threads := h.Threads
	if threads < 1 {
		threads = 1
	}
	if h.Mode == Private && sizeKiB < uint64(threads) {
		return Result{}, errors.E(errors.Invalid, fmt.Sprintf("too many threads for this test size: %d threads, %d KiB", threads, sizeKiB))
	}
	elements := sizeKiB * 1024 / 4
	if elements == 0 {
		return Result{}, errors.E(errors.Invalid, "empty test size")
	}
	read := h.Read
	if read == nil {
		read = h.Method.Func()
	}
	width := h.Method.Width()

	var (
		items  = make([]workItem, threads)
		region *membuf.Region
		arr    []float32
	)
	switch h.Mode {
	case Shared:
		region, arr, err = membuf.Float32s(int(elements))
		if err != nil {
			return Result{}, err
		}
		defer errors.CleanUp(region.Release, &err)
		err = traverse.Limit(runtime.NumCPU()).Range(len(arr), func(start, end int) error {
			for i := start; i < end; i++ {
				arr[i] = float32(i) + 0.5
			}
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		for t := range items {
			items[t] = workItem{arr: arr, length: elements, iterations: iterations}
		}
	case Private:
		elements = uint64(math.Ceil(float64(elements) / float64(threads)))
		for t := range items {
			region, arr, err = membuf.Float32s(int(elements))
			if err != nil {
				return Result{}, errors.E(fmt.Sprintf("array for thread %d", t), err)
			}
			defer errors.CleanUp(region.Release, &err)
			for i := range arr {
				arr[i] = float32(uint64(i)+uint64(t)) + 0.5
			}
			items[t] = workItem{arr: arr, length: elements, iterations: iterations * uint64(threads)}
		}
	default:
		return Result{}, errors.E(errors.Invalid, fmt.Sprintf("unknown mode %d", h.Mode))
	}
	if elements > offsetThreshold {
		for t := range items {
			start := uint64(t) * threadOffset
			if start%width != 0 || start+width >= elements {
				start = 0
			}
			items[t].start = start
		}
	}

	var (
		slots = make([]slot, threads)
		sw    = timer.New(h.Clock)
	)
	sw.Start()
	err = traverse.Threads(h.Pin).Each(threads, func(t int) error {
		it := items[t]
		slots[t].sum = read(it.arr, it.length, it.iterations, it.start)
		return nil
	})
	elapsed := sw.Stop()
	if err != nil {
		return Result{}, err
	}
	for t := range slots {
		if slots[t].sum == 0 {
			log.Debug.Printf("bandwidth: thread %d read nothing", t)
		}
	}
	if elapsed <= 0 {
		return Result{}, errors.E(fmt.Sprintf("%d KiB: elapsed time below timer resolution", sizeKiB))
	}
	r := Result{
		Elapsed: elapsed,
		Bytes:   float64(iterations) * 4 * float64(elements) * float64(threads),
	}
	r.GBps = r.Bytes / elapsed.Seconds() / 1e9
	if h.Mode == Private {
		r.Bytes *= float64(threads)
		r.GBps *= float64(threads)
	}
	return r, nil
}
