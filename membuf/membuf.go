// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package membuf allocates large, page-aligned host buffers outside of
// the Go heap and views them as typed slices. Buffers are released
// explicitly, so that a measurement can free its working set before the
// next, larger one is allocated.
package membuf

import (
	"unsafe"

	"github.com/grailbio/membench/errors"
)

// Align is the minimum alignment of a Region's memory.
const Align = 64

// Region is a contiguous block of host memory.
type Region struct {
	b        []byte
	released bool
}

// New allocates a zeroed region of the given number of bytes.
func New(size int) (*Region, error) {
	if size < 0 {
		return nil, errors.E(errors.Invalid, "membuf: negative size")
	}
	if size == 0 {
		return &Region{}, nil
	}
	b, err := alloc(size)
	if err != nil {
		return nil, errors.E(errors.OOM, "membuf: allocating region", err)
	}
	return &Region{b: b}, nil
}

// Float32s allocates a region holding n float32 values and returns it
// together with its typed view.
func Float32s(n int) (*Region, []float32, error) {
	r, err := New(n * 4)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Float32s(), nil
}

// Len returns the size of the region in bytes.
func (r *Region) Len() int { return len(r.b) }

// Bytes returns the region's memory.
func (r *Region) Bytes() []byte { return r.b }

// Float32s views the region as float32 values. The view shares memory
// with the region and is invalid after Release.
func (r *Region) Float32s() []float32 {
	if len(r.b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.b[0])), len(r.b)/4)
}

// Uint32s views the region as uint32 values.
func (r *Region) Uint32s() []uint32 {
	if len(r.b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&r.b[0])), len(r.b)/4)
}

// Release returns the region's memory to the system. Release is
// idempotent.
func (r *Region) Release() error {
	if r == nil || r.released {
		return nil
	}
	r.released = true
	b := r.b
	r.b = nil
	if len(b) == 0 {
		return nil
	}
	return free(b)
}
