// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bandwidth

import (
	"fmt"

	"github.com/grailbio/membench/chain"
	"github.com/grailbio/membench/device"
	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/latency"
)

// Device measures device memory bandwidth by chasing one Sattolo chain
// from many work-items at once. Every work-item starts at its global id
// modulo the chain length.
type Device struct {
	Engine *latency.Engine
	// Kernel defaults to device.ParallelLatencyKernel.
	Kernel string
	// Threads is the global work size and LocalSize the work-group
	// size; Threads must be a multiple of LocalSize.
	Threads, LocalSize uint32
}

// Measure chases a chain of listSize words iterations times from every
// work-item and returns the bandwidth in GB/s. Each work-item reads
// iterations+1 words.
func (d Device) Measure(listSize, iterations uint32) (float64, error) {
	kernel := d.Kernel
	if kernel == "" {
		kernel = device.ParallelLatencyKernel
	}
	threads, local := d.Threads, d.LocalSize
	if threads == 0 {
		threads = 1
	}
	if local == 0 {
		local = 1
	}
	if listSize == 0 {
		return 0, errors.E(errors.Invalid, "empty chain")
	}
	elapsed, err := d.Engine.Run(latency.Launch{
		Kernel:     kernel,
		Chain:      chain.NewSattolo(int(listSize), d.Engine.Rand()),
		Iterations: iterations,
		WithSize:   true,
		Results:    int(threads),
		Global:     int(threads),
		Local:      int(local),
	})
	if err != nil {
		return 0, errors.E(fmt.Sprintf("%s size %d", kernel, listSize), err)
	}
	if elapsed <= 0 {
		return 0, errors.E("elapsed time below timer resolution")
	}
	gb := 4 * (float64(iterations)*float64(threads) + float64(threads)) / 1e9
	return gb / elapsed.Seconds(), nil
}
