// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package device drives compute devices for latency and bandwidth
// measurement. A Backend enumerates platforms and devices and builds
// kernel programs for them; a Session owns one selected device, its
// built program and command queue, and times kernel launches.
//
// Two backends are provided. The "host" backend runs the kernels as Go
// code on the host CPU and is always available. The "opencl" backend
// drives real devices through the OpenCL C API; it is built with the
// "opencl" build tag and requires cgo and an OpenCL ICD loader.
package device

import "fmt"

// Limit names a device property bounding the size of a test.
type Limit int

const (
	// MaxAllocation is the largest single buffer the device accepts,
	// in bytes.
	MaxAllocation Limit = iota
	// MaxConstantRegion is the largest buffer that may be bound to
	// constant memory, in bytes.
	MaxConstantRegion
)

// String returns the limit's name.
func (l Limit) String() string {
	switch l {
	case MaxAllocation:
		return "max allocation"
	case MaxConstantRegion:
		return "max constant region"
	default:
		return fmt.Sprintf("limit(%d)", int(l))
	}
}

// Access describes how a kernel uses a buffer.
type Access int

const (
	// ReadOnly buffers are only read by kernels.
	ReadOnly Access = iota
	// ReadWrite buffers are read and written by kernels.
	ReadWrite
)

// Arg is a kernel argument: either a Buffer or a uint32 scalar.
type Arg interface{}

// A Backend provides access to a family of compute platforms.
type Backend interface {
	// Name returns the registry name of the backend.
	Name() string
	// Platforms enumerates the backend's platforms.
	Platforms() ([]Platform, error)
}

// A Platform groups the devices of one vendor runtime.
type Platform interface {
	Name() string
	Devices() ([]Device, error)
}

// A Device is a single compute device.
type Device interface {
	Name() string
	// Limit returns the value of a device limit in bytes.
	Limit(Limit) (uint64, error)
	// Build creates a context and command queue on the device and
	// compiles the given kernel source into a program. Build failures
	// are errors of kind Compile carrying the build log.
	Build(source string) (Program, error)
}

// A Program is a compiled kernel source bound to a device context and
// an in-order command queue.
type Program interface {
	// Kernel returns the entry point with the given name.
	Kernel(name string) (Kernel, error)
	// NewBuffer allocates a device buffer of the given number of 32-bit
	// words.
	NewBuffer(access Access, words int) (Buffer, error)
	// Finish blocks until every enqueued command has completed.
	Finish() error
	// Release frees the program, its queue and its context.
	Release() error
}

// A Kernel is an entry point of a program.
type Kernel interface {
	Name() string
	// Enqueue binds args to the kernel's parameters in order and
	// enqueues a one-dimensional launch of global work-items in
	// work-groups of local work-items. Enqueue does not wait for the
	// launch to complete.
	Enqueue(args []Arg, global, local int) error
}

// A Buffer is a device allocation of 32-bit words. Write and Read
// are blocking transfers of the whole buffer (or of len(words) words,
// if smaller).
type Buffer interface {
	Len() int
	Write(words []uint32) error
	Read(words []uint32) error
	Release() error
}
