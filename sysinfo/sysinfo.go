// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package sysinfo reports the host properties that size and label
// measurements: the CPU model, the number of CPUs and the amount of
// physical memory.
package sysinfo

import (
	"runtime"

	"github.com/grailbio/membench/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Host describes the machine the process runs on.
type Host struct {
	// Model is the CPU model name, or "unknown".
	Model string
	// LogicalCPUs and PhysicalCPUs are CPU counts. They fall back to
	// runtime.NumCPU when the system cannot report them.
	LogicalCPUs, PhysicalCPUs int
	// TotalMemory is the physical memory size in bytes, 0 if unknown.
	TotalMemory uint64
}

// Probe inspects the host. It returns a partially filled Host and the
// first error encountered when some property cannot be read.
func Probe() (Host, error) {
	var (
		h     = Host{Model: "unknown"}
		first error
	)
	set := func(err error, what string) {
		if err != nil && first == nil {
			first = errors.E(errors.Unavailable, "sysinfo: "+what, err)
		}
	}
	infos, err := cpu.Info()
	set(err, "cpu info")
	if len(infos) > 0 && infos[0].ModelName != "" {
		h.Model = infos[0].ModelName
	}
	h.LogicalCPUs, err = cpu.Counts(true)
	set(err, "logical cpu count")
	if h.LogicalCPUs <= 0 {
		h.LogicalCPUs = runtime.NumCPU()
	}
	h.PhysicalCPUs, err = cpu.Counts(false)
	set(err, "physical cpu count")
	if h.PhysicalCPUs <= 0 {
		h.PhysicalCPUs = h.LogicalCPUs
	}
	h.TotalMemory, err = TotalMemory()
	set(err, "memory size")
	return h, first
}

// TotalMemory returns the physical memory size in bytes.
func TotalMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}
