// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sweep_test

import (
	"bytes"
	"testing"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/sweep"
	"github.com/grailbio/membench/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTables(t *testing.T) {
	d, h := sweep.DeviceSizes(), sweep.HostSizes()
	assert.Len(t, d, 27)
	assert.Len(t, h, 39)
	for _, sizes := range [][]uint64{d, h} {
		for i := 1; i < len(sizes); i++ {
			assert.True(t, sizes[i] > sizes[i-1], "index %d", i)
		}
	}
	assert.Equal(t, uint64(2), d[0])
	assert.Equal(t, uint64(1048576), d[len(d)-1])
	assert.Equal(t, uint64(3145728), h[len(h)-1])
	// Callers get copies.
	d[0] = 99
	assert.Equal(t, uint64(2), sweep.DeviceSizes()[0])

	assert.Equal(t, uint64(2048), sweep.DeviceBytes(2))
	assert.Equal(t, uint64(512), sweep.DeviceWords(2))
	assert.Equal(t, uint64(2048), sweep.HostBytes(2))
}

func TestLimit(t *testing.T) {
	var (
		buf      bytes.Buffer
		measured []uint64
	)
	s := sweep.Sweep{
		Name:  "limit",
		Sizes: []uint64{2, 4, 8, 16},
		Bytes: sweep.DeviceBytes,
		Limit: 8 * 1024,
		Measure: func(size uint64) (float64, error) {
			measured = append(measured, size)
			return float64(size) / 2, nil
		},
	}
	r, err := s.Run(table.NewWriter(&buf))
	require.NoError(t, err)
	assert.Equal(t, sweep.LimitExceeded, r.Stop)
	assert.Equal(t, uint64(16), r.At)
	assert.Equal(t, []uint64{2, 4, 8}, measured)
	assert.Equal(t, "2,1.000000\n4,2.000000\n8,4.000000\n", buf.String())
}

func TestZeroStops(t *testing.T) {
	var buf bytes.Buffer
	s := sweep.Sweep{
		Name:  "zero",
		Sizes: []uint64{1, 2, 3, 4},
		Measure: func(size uint64) (float64, error) {
			if size == 2 {
				return 0, errors.E(errors.Launch, "enqueue")
			}
			return 1, nil
		},
	}
	r, err := s.Run(table.NewWriter(&buf))
	require.NoError(t, err)
	assert.Equal(t, sweep.Failed, r.Stop)
	assert.Equal(t, uint64(2), r.At)
	require.Len(t, r.Steps, 2)
	assert.True(t, errors.Is(errors.Launch, r.Steps[1].Err))
	assert.Equal(t, "1,1.000000\n2,0.000000\n", buf.String())
}

func TestInvalidContinues(t *testing.T) {
	var buf bytes.Buffer
	s := sweep.Sweep{
		Name:  "guard",
		Sizes: []uint64{2, 4, 8},
		Measure: func(size uint64) (float64, error) {
			if size < 4 {
				return 0, errors.E(errors.Invalid, "too many threads for this test size")
			}
			return 3, nil
		},
	}
	r, err := s.Run(table.NewWriter(&buf))
	require.NoError(t, err)
	assert.Equal(t, sweep.Completed, r.Stop)
	assert.Len(t, r.Steps, 3)
	assert.Equal(t, "2,0.000000\n4,3.000000\n8,3.000000\n", buf.String())
}

func TestZeroWithoutError(t *testing.T) {
	var buf bytes.Buffer
	s := sweep.Sweep{
		Name:    "silent",
		Sizes:   []uint64{1, 2},
		Measure: func(uint64) (float64, error) { return 0, nil },
	}
	r, err := s.Run(table.NewWriter(&buf))
	require.NoError(t, err)
	assert.Equal(t, sweep.Failed, r.Stop)
	assert.Error(t, r.Steps[0].Err)
}

func TestNotAscending(t *testing.T) {
	s := sweep.Sweep{
		Sizes:   []uint64{1, 3, 2},
		Measure: func(uint64) (float64, error) { return 1, nil },
	}
	_, err := s.Run(table.NewWriter(new(bytes.Buffer)))
	assert.True(t, errors.Is(errors.Invalid, err))
}
