// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package sweep runs a measurement over an ascending table of test
// sizes and writes one "size,value" row per size.
package sweep

import (
	"fmt"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/log"
	"github.com/grailbio/membench/table"
)

// wordsPerDeviceUnit is the number of 32-bit words in one device size
// unit.
const wordsPerDeviceUnit = 256

var deviceSizes = []uint64{
	2, 4, 8, 16, 24, 32, 48, 64, 128, 256, 512, 600, 768, 1024, 1536, 2048,
	3072, 4096, 5120, 6144, 8192, 16384, 32768, 65536, 131072, 262144,
	1048576,
}

var hostSizes = []uint64{
	2, 4, 8, 12, 16, 24, 32, 48, 64, 96, 128, 192, 256, 512, 600, 768, 1024,
	1536, 2048, 3072, 4096, 5120, 6144, 8192, 10240, 12288, 16384, 24576,
	32768, 65536, 98304, 131072, 262144, 393216, 524288, 1048576, 1572864,
	2097152, 3145728,
}

// DeviceSizes returns the device test sizes in units of 256 words
// (1 KiB of 32-bit indices).
func DeviceSizes() []uint64 {
	return append([]uint64(nil), deviceSizes...)
}

// HostSizes returns the host test sizes in KiB.
func HostSizes() []uint64 {
	return append([]uint64(nil), hostSizes...)
}

// DeviceWords returns the chain length, in words, of a device test
// size.
func DeviceWords(size uint64) uint64 {
	return size * wordsPerDeviceUnit
}

// DeviceBytes returns the buffer size, in bytes, of a device test
// size.
func DeviceBytes(size uint64) uint64 {
	return DeviceWords(size) * 4
}

// HostBytes returns the working set, in bytes, of a host test size.
func HostBytes(sizeKiB uint64) uint64 {
	return sizeKiB * 1024
}

// Stop tells why a sweep ended.
type Stop int

const (
	// Completed sweeps measured every size.
	Completed Stop = iota
	// LimitExceeded sweeps stopped at the first size whose working set
	// exceeded the limit.
	LimitExceeded
	// Failed sweeps stopped after a measurement returned 0.
	Failed
)

// String returns a description of the stop reason.
func (s Stop) String() string {
	switch s {
	case Completed:
		return "completed"
	case LimitExceeded:
		return "limit exceeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("stop(%d)", int(s))
	}
}

// A Sweep measures a sequence of sizes.
type Sweep struct {
	// Name labels the sweep in diagnostics.
	Name string
	// Sizes is the ascending table of sizes to measure.
	Sizes []uint64
	// Bytes returns the working set of a size, to compare with Limit.
	// Nil means the size is a byte count.
	Bytes func(size uint64) uint64
	// Limit is the largest working set to measure; 0 means no limit.
	Limit uint64
	// Measure runs one measurement. A value of 0 means failure; the
	// error says why.
	Measure func(size uint64) (float64, error)
}

// Step is one measured size.
type Step struct {
	Size  uint64
	Value float64
	Err   error
}

// Result summarizes a sweep.
type Result struct {
	Steps []Step
	Stop  Stop
	// At is the size at which the sweep stopped early.
	At uint64
}

// Run measures each size in order and writes its row to w, flushing
// after every row. The sweep stops before measuring a size whose
// working set exceeds the limit, and after writing the row of a failed
// (zero) measurement. A zero caused by an Invalid error is a
// configuration guard for that size alone, such as a private-mode host
// measurement with more threads than KiB: the row is written and the
// sweep continues, since larger sizes may pass the guard. Run returns an error only if the sizes are not
// ascending or the rows cannot be written.
func (s Sweep) Run(w *table.Writer) (Result, error) {
	var r Result
	for i := 1; i < len(s.Sizes); i++ {
		if s.Sizes[i] <= s.Sizes[i-1] {
			return r, errors.E(errors.Invalid, fmt.Sprintf("sweep %s: sizes not ascending at index %d", s.Name, i))
		}
	}
	bytes := s.Bytes
	if bytes == nil {
		bytes = func(size uint64) uint64 { return size }
	}
	for _, size := range s.Sizes {
		if s.Limit > 0 && bytes(size) > s.Limit {
			log.Printf("%s: %d would exceed the limit of %d bytes, stopping here", s.Name, size, s.Limit)
			r.Stop, r.At = LimitExceeded, size
			return r, nil
		}
		value, err := s.Measure(size)
		if value == 0 && err == nil {
			err = errors.E(fmt.Sprintf("%s: size %d measured 0", s.Name, size))
		}
		if value != 0 {
			err = nil
		}
		r.Steps = append(r.Steps, Step{size, value, err})
		if werr := w.Row(size, value); werr != nil {
			return r, werr
		}
		if werr := w.Flush(); werr != nil {
			return r, werr
		}
		if value != 0 {
			continue
		}
		if errors.Is(errors.Invalid, err) {
			log.Error.Printf("%s: size %d: %v", s.Name, size, err)
			continue
		}
		log.Error.Printf("%s: size %d: %v", s.Name, size, err)
		log.Printf("%s: something went wrong, not testing anything bigger", s.Name)
		r.Stop, r.At = Failed, size
		return r, nil
	}
	r.Stop = Completed
	return r, nil
}
