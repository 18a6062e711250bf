// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package device_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grailbio/membench/chain"
	"github.com/grailbio/membench/device"
	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = `
__kernel void unrolled_latency_test(__global const int* A, int count, __global int* ret) {}
__kernel void constant_unrolled_latency_test(__constant const int* A, int count, __global int* ret) {}
__kernel void parallel_latency_test(__global const int* A, int count, int size, __global int* ret) {}
__kernel void int_exec_latency_test(__global const int* A, int count, __global int* ret) {}
__kernel void atomic_exec_latency_test(__global int* A, int count, __global int* ret) {}
__kernel void local_atomic_latency_test(__global int* A, int count, __global int* ret) {}
`

// fakeBackend serves fixed platform and device names and delegates
// Build to the host backend.
type fakeBackend map[string][]string

func (fakeBackend) Name() string { return "fake" }

func (b fakeBackend) Platforms() ([]device.Platform, error) {
	var ps []device.Platform
	for _, name := range []string{"alpha", "beta"} {
		if devs, ok := b[name]; ok {
			ps = append(ps, fakePlatform{name, devs})
		}
	}
	return ps, nil
}

type fakePlatform struct {
	name    string
	devices []string
}

func (p fakePlatform) Name() string { return p.name }

func (p fakePlatform) Devices() ([]device.Device, error) {
	hostPlatforms, err := device.Host.Platforms()
	if err != nil {
		return nil, err
	}
	hostDevices, err := hostPlatforms[0].Devices()
	if err != nil {
		return nil, err
	}
	var ds []device.Device
	for _, name := range p.devices {
		ds = append(ds, fakeDevice{hostDevices[0], name})
	}
	return ds, nil
}

type fakeDevice struct {
	device.Device
	name string
}

func (d fakeDevice) Name() string { return d.name }

func openHost(t *testing.T) *device.Session {
	t.Helper()
	s, err := device.Open(device.Host, device.Selection{}, testSource)
	require.NoError(t, err)
	return s
}

func TestRegistry(t *testing.T) {
	b, err := device.Lookup("host")
	require.NoError(t, err)
	assert.Equal(t, "host", b.Name())
	assert.Contains(t, device.Backends(), "host")
	_, err = device.Lookup("cuda")
	assert.True(t, errors.Is(errors.NotExist, err))
}

func TestSelectPrompt(t *testing.T) {
	var (
		b   = fakeBackend{"alpha": {"a0"}, "beta": {"b0", "b1"}}
		out bytes.Buffer
	)
	s, err := device.Open(b, device.Selection{
		Platform: -1,
		Device:   -1,
		In:       strings.NewReader("1\n1\n"),
		Out:      &out,
	}, testSource)
	require.NoError(t, err)
	defer s.Close() // nolint: errcheck
	assert.Equal(t, "beta", s.Platform())
	assert.Equal(t, "b1", s.Device())
	listing := out.String()
	assert.Contains(t, listing, "Platform 0: alpha\n")
	assert.Contains(t, listing, "Platform 1: beta\n")
	assert.Contains(t, listing, "Device 0: b0\n")
	assert.Contains(t, listing, "Device 1: b1\n")
}

func TestSelectExplicit(t *testing.T) {
	var out bytes.Buffer
	s, err := device.Open(fakeBackend{"alpha": {"a0", "a1"}}, device.Selection{Platform: 0, Device: 1, Out: &out}, testSource)
	require.NoError(t, err)
	assert.Equal(t, "a1", s.Device())
	assert.Empty(t, out.String())
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestSelectErrors(t *testing.T) {
	for _, test := range []struct {
		backend device.Backend
		sel     device.Selection
		kind    errors.Kind
	}{
		{fakeBackend{}, device.Selection{}, errors.Unavailable},
		{fakeBackend{"alpha": nil}, device.Selection{}, errors.Unavailable},
		{fakeBackend{"alpha": {"a0"}}, device.Selection{Platform: 1}, errors.OutOfRange},
		{fakeBackend{"alpha": {"a0"}}, device.Selection{Device: 3}, errors.OutOfRange},
		{fakeBackend{"alpha": {"a0"}}, device.Selection{Platform: -2}, errors.OutOfRange},
		{fakeBackend{"alpha": {"a0"}}, device.Selection{Platform: -1, In: strings.NewReader("x"), Out: new(bytes.Buffer)}, errors.OutOfRange},
	} {
		_, err := device.Open(test.backend, test.sel, testSource)
		assert.True(t, errors.Is(test.kind, err), "%v: got %v", test.sel, err)
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := device.Open(device.Host, device.Selection{}, "int main() {}")
	assert.True(t, errors.Is(errors.Compile, err))

	// Missing entry points are reported when the session is opened.
	partial := strings.SplitN(testSource, "\n", 3)[1]
	_, err = device.Open(device.Host, device.Selection{}, partial)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Compile, err))
	assert.Contains(t, err.Error(), "parallel_latency_test")
}

func TestLimits(t *testing.T) {
	s := openHost(t)
	defer s.Close() // nolint: errcheck
	assert.True(t, s.QueryLimit(device.MaxAllocation) >= 128<<20)
	assert.Equal(t, uint64(64<<10), s.QueryLimit(device.MaxConstantRegion))
	assert.Equal(t, uint64(0), s.QueryLimit(device.Limit(7)))
}

func TestRunChase(t *testing.T) {
	s := openHost(t)
	defer s.Close() // nolint: errcheck
	c := chain.NewStrided(8, 3)
	a, err := s.NewBuffer(device.ReadOnly, len(c))
	require.NoError(t, err)
	defer a.Release() // nolint: errcheck
	ret, err := s.NewBuffer(device.ReadWrite, 1)
	require.NoError(t, err)
	defer ret.Release() // nolint: errcheck
	require.NoError(t, a.Write(c))

	_, err = s.RunKernel(device.LatencyKernel, []device.Arg{a, uint32(8), ret}, 1, 1)
	require.NoError(t, err)
	var sum [1]uint32
	require.NoError(t, s.Read(ret, sum[:]))
	// The walk 3,6,1,4,7,2,5,0 visits every index once.
	assert.Equal(t, uint32(28), sum[0])
}

func TestRunParallelChase(t *testing.T) {
	s := openHost(t)
	defer s.Close() // nolint: errcheck
	c := chain.NewStrided(16, 1)
	a, err := s.NewBuffer(device.ReadOnly, len(c))
	require.NoError(t, err)
	ret, err := s.NewBuffer(device.ReadWrite, 4)
	require.NoError(t, err)
	require.NoError(t, a.Write(c))
	_, err = s.RunKernel(device.ParallelLatencyKernel, []device.Arg{a, uint32(1), uint32(16), ret}, 4, 2)
	require.NoError(t, err)
	sums := make([]uint32, 4)
	require.NoError(t, ret.Read(sums))
	assert.Equal(t, []uint32{1, 2, 3, 4}, sums)
	assert.NoError(t, a.Release())
	assert.NoError(t, ret.Release())
}

func TestRunAtomics(t *testing.T) {
	s := openHost(t)
	defer s.Close() // nolint: errcheck
	for _, test := range []struct {
		kernel string
		local  int
	}{
		{device.AtomicKernel, 1},
		{device.LocalAtomicKernel, 2},
		{device.LocalAtomicKernel, 1},
	} {
		a, err := s.NewBuffer(device.ReadWrite, 1)
		require.NoError(t, err)
		ret, err := s.NewBuffer(device.ReadWrite, 2)
		require.NoError(t, err)
		_, err = s.RunKernel(test.kernel, []device.Arg{a, uint32(1000), ret}, 2, test.local)
		require.NoError(t, err)
		turns := make([]uint32, 2)
		require.NoError(t, ret.Read(turns))
		assert.Equal(t, []uint32{1000, 1000}, turns)
		if test.kernel == device.AtomicKernel {
			counter := make([]uint32, 1)
			require.NoError(t, a.Read(counter))
			assert.Equal(t, uint32(2000), counter[0])
		}
		assert.NoError(t, a.Release())
		assert.NoError(t, ret.Release())
	}
}

func TestAtomicReadOnlyCounter(t *testing.T) {
	s := openHost(t)
	defer s.Close() // nolint: errcheck
	for _, kernel := range []string{device.AtomicKernel, device.LocalAtomicKernel} {
		a, err := s.NewBuffer(device.ReadOnly, 1)
		require.NoError(t, err)
		ret, err := s.NewBuffer(device.ReadWrite, 2)
		require.NoError(t, err)
		_, err = s.RunKernel(kernel, []device.Arg{a, uint32(10), ret}, 2, 1)
		assert.True(t, errors.Is(errors.Launch, err), "%s: %v", kernel, err)
		assert.NoError(t, a.Release())
		assert.NoError(t, ret.Release())
	}
}

func TestRunErrors(t *testing.T) {
	s := openHost(t)
	ret, err := s.NewBuffer(device.ReadWrite, 1)
	require.NoError(t, err)

	_, err = s.RunKernel(device.IntExecKernel, []device.Arg{ret, uint32(1), ret}, 3, 2)
	assert.True(t, errors.Is(errors.Launch, err))
	_, err = s.RunKernel("matmul", nil, 1, 1)
	assert.True(t, errors.Is(errors.NotExist, err))
	// Bad arguments surface when the queue drains.
	_, err = s.RunKernel(device.IntExecKernel, []device.Arg{uint32(1), uint32(1), ret}, 1, 1)
	assert.True(t, errors.Is(errors.Launch, err))

	_, err = s.NewBuffer(device.ReadOnly, int(s.QueryLimit(device.MaxAllocation)/4)+1)
	assert.True(t, errors.Is(errors.OOM, err))

	require.NoError(t, ret.Release())
	require.NoError(t, s.Close())
	_, err = s.RunKernel(device.IntExecKernel, nil, 1, 1)
	assert.Error(t, err)
}

func TestRunKernelClock(t *testing.T) {
	s := openHost(t)
	defer s.Close() // nolint: errcheck
	var now time.Duration
	s.Clock = timer.ClockFunc(func() time.Duration {
		now += 5 * time.Millisecond
		return now
	})
	a, err := s.NewBuffer(device.ReadOnly, 16)
	require.NoError(t, err)
	require.NoError(t, a.Write([]uint32{3, 5, 7, 11}))
	ret, err := s.NewBuffer(device.ReadWrite, 1)
	require.NoError(t, err)
	elapsed, err := s.RunKernel(device.IntExecKernel, []device.Arg{a, uint32(100), ret}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, elapsed)
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latency_kernel.cl")
	require.NoError(t, os.WriteFile(path, []byte(testSource), 0644))
	src, err := device.LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, testSource, src)

	_, err = device.LoadSource(filepath.Join(dir, "missing.cl"))
	assert.True(t, errors.Is(errors.NotExist, err))

	big := filepath.Join(dir, "big.cl")
	require.NoError(t, os.WriteFile(big, make([]byte, device.MaxSourceSize+1), 0644))
	_, err = device.LoadSource(big)
	assert.True(t, errors.Is(errors.Invalid, err))
}
