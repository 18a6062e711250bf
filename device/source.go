// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"io"
	"os"

	"github.com/grailbio/membench/errors"
)

// MaxSourceSize bounds the size of a kernel source file.
const MaxSourceSize = 1 << 20

// Entry points that every kernel source must define.
const (
	// LatencyKernel chases a chain in global memory with a single
	// work-item: (A, count, ret).
	LatencyKernel = "unrolled_latency_test"
	// ConstantLatencyKernel chases a chain bound to constant memory:
	// (A, count, ret).
	ConstantLatencyKernel = "constant_unrolled_latency_test"
	// ParallelLatencyKernel chases one chain from many work-items,
	// each starting at gid mod size: (A, count, size, ret).
	ParallelLatencyKernel = "parallel_latency_test"
	// IntExecKernel runs a chain of dependent integer operations:
	// (A, count, ret).
	IntExecKernel = "int_exec_latency_test"
	// AtomicKernel bounces a global atomic counter between work-items:
	// (A, count, ret).
	AtomicKernel = "atomic_exec_latency_test"
	// LocalAtomicKernel bounces a work-group local atomic counter
	// between work-items: (A, count, ret).
	LocalAtomicKernel = "local_atomic_latency_test"
)

// KernelNames lists the entry points fetched when a session is opened.
var KernelNames = []string{
	LatencyKernel,
	ParallelLatencyKernel,
	ConstantLatencyKernel,
	IntExecKernel,
	AtomicKernel,
	LocalAtomicKernel,
}

// LoadSource reads a kernel source file. A missing file is an error of
// kind NotExist; a file larger than MaxSourceSize is Invalid.
func LoadSource(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.E("loading kernel source "+path, err)
	}
	defer f.Close() // nolint: errcheck
	b, err := io.ReadAll(io.LimitReader(f, MaxSourceSize+1))
	if err != nil {
		return "", errors.E("loading kernel source "+path, err)
	}
	if len(b) > MaxSourceSize {
		return "", errors.E(errors.Invalid, fmt.Sprintf("kernel source %s exceeds %d bytes", path, MaxSourceSize))
	}
	return string(b), nil
}
