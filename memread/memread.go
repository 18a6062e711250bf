// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package memread implements the streaming read loops used to measure
// host memory bandwidth. Each method reads an array in fixed-size
// blocks, wrapping around at the end, and reduces everything it reads
// into a single value so that the reads cannot be elided.
//
// Every method follows the same contract: Read(arr, length, iterations,
// start) returns 0 if start+Width >= length or if start is not a
// multiple of Width. Otherwise it reads block after block from start,
// wraps to 0 when the next block would extend past length, counts an
// iteration each time the cursor comes back to start, and returns after
// the requested number of iterations.
package memread

import (
	"strings"

	"github.com/grailbio/membench/errors"
	"golang.org/x/sys/cpu"
)

// Func is the signature shared by all read loops.
type Func func(arr []float32, length, iterations, start uint64) float32

// Method names a read loop.
type Method int

const (
	// Scalar reads 8 elements per step into alternating additive and
	// multiplicative accumulators.
	Scalar Method = iota
	// Vector128 reads 32 elements per step, the unroll used for
	// 128-bit registers.
	Vector128
	// Vector256 reads 64 elements per step, the unroll used for
	// 256-bit registers.
	Vector256
	// Vector512 reads 128 elements per step, the unroll used for
	// 512-bit registers.
	Vector512
)

var methodNames = map[string]Method{
	"scalar": Scalar,
	"sse":    Vector128,
	"asm":    Vector256,
	"avx":    Vector256,
	"neon":   Vector256,
	"avx512": Vector512,
}

// ParseMethod returns the method with the given name: scalar, sse,
// asm (also avx or neon) or avx512.
func ParseMethod(name string) (Method, error) {
	m, ok := methodNames[strings.ToLower(name)]
	if !ok {
		return Scalar, errors.E(errors.Invalid, "unknown read method "+name)
	}
	return m, nil
}

// String returns a human readable description of the method.
func (m Method) String() string {
	switch m {
	case Scalar:
		return "scalar"
	case Vector128:
		return "sse"
	case Vector256:
		return "asm"
	case Vector512:
		return "avx512"
	default:
		return "unknown"
	}
}

// Width returns the number of float32 elements read per step.
func (m Method) Width() uint64 {
	switch m {
	case Vector128:
		return 32
	case Vector256:
		return 64
	case Vector512:
		return 128
	default:
		return 8
	}
}

// Func returns the read loop implementing m.
func (m Method) Func() Func {
	switch m {
	case Vector128:
		return Read128
	case Vector256:
		return Read256
	case Vector512:
		return Read512
	default:
		return ReadScalar
	}
}

// Detect returns the widest method supported by the running CPU.
func Detect() Method {
	switch {
	case cpu.X86.HasAVX512F:
		return Vector512
	case cpu.X86.HasAVX:
		return Vector256
	case cpu.X86.HasSSE2, cpu.ARM64.HasASIMD:
		return Vector128
	default:
		return Scalar
	}
}

// Select returns the method named by override, or the detected method
// if override is empty.
func Select(override string) (Method, error) {
	if override == "" {
		return Detect(), nil
	}
	return ParseMethod(override)
}

// valid reports whether a walk with the given parameters can ever
// return to start.
func valid(arr []float32, length, start, width uint64) bool {
	return length <= uint64(len(arr)) && start+width < length && start%width == 0
}

// ReadScalar is the 8-wide scalar loop.
func ReadScalar(arr []float32, length, iterations, start uint64) float32 {
	const width = 8
	if !valid(arr, length, start, width) {
		return 0
	}
	var (
		s1, s2, s3, s4 float32 = 0, 1, 0, 1
		s5, s6, s7, s8 float32 = 0, 1, 0, 1
		i                      = start
	)
	for n := uint64(0); n < iterations; {
		b := (*[width]float32)(arr[i : i+width])
		s1 += b[0]
		s2 *= b[1]
		s3 += b[2]
		s4 *= b[3]
		s5 += b[4]
		s6 *= b[5]
		s7 += b[6]
		s8 *= b[7]
		i += width
		if i+width-1 >= length {
			i = 0
		}
		if i == start {
			n++
		}
	}
	return s1 + s2 + s3 + s4 + s5 + s6 + s7 + s8
}

// Read128 is the 32-wide loop.
func Read128(arr []float32, length, iterations, start uint64) float32 {
	const width = 32
	if !valid(arr, length, start, width) {
		return 0
	}
	var (
		acc [4]float32
		i   = start
	)
	for n := uint64(0); n < iterations; {
		b := (*[width]float32)(arr[i : i+width])
		for k := 0; k < width; k += 4 {
			acc[0] += b[k]
			acc[1] += b[k+1]
			acc[2] += b[k+2]
			acc[3] += b[k+3]
		}
		i += width
		if i+width-1 >= length {
			i = 0
		}
		if i == start {
			n++
		}
	}
	return acc[0] + acc[1] + acc[2] + acc[3]
}

// Read256 is the 64-wide loop.
func Read256(arr []float32, length, iterations, start uint64) float32 {
	const width = 64
	if !valid(arr, length, start, width) {
		return 0
	}
	var (
		acc [8]float32
		i   = start
	)
	for n := uint64(0); n < iterations; {
		b := (*[width]float32)(arr[i : i+width])
		for k := 0; k < width; k += 8 {
			acc[0] += b[k]
			acc[1] += b[k+1]
			acc[2] += b[k+2]
			acc[3] += b[k+3]
			acc[4] += b[k+4]
			acc[5] += b[k+5]
			acc[6] += b[k+6]
			acc[7] += b[k+7]
		}
		i += width
		if i+width-1 >= length {
			i = 0
		}
		if i == start {
			n++
		}
	}
	var sum float32
	for _, a := range acc {
		sum += a
	}
	return sum
}

// Read512 is the 128-wide loop.
func Read512(arr []float32, length, iterations, start uint64) float32 {
	const width = 128
	if !valid(arr, length, start, width) {
		return 0
	}
	var (
		acc [16]float32
		i   = start
	)
	for n := uint64(0); n < iterations; {
		b := (*[width]float32)(arr[i : i+width])
		for k := 0; k < width; k += 16 {
			for l := 0; l < 16; l++ {
				acc[l] += b[k+l]
			}
		}
		i += width
		if i+width-1 >= length {
			i = 0
		}
		if i == start {
			n++
		}
	}
	var sum float32
	for _, a := range acc {
		sum += a
	}
	return sum
}
