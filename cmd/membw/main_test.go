// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/membench/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	for _, test := range []struct {
		args   []string
		want   options
		usages int
	}{
		{nil, options{threads: 1}, 0},
		{[]string{"-threads", "4"}, options{threads: 4}, 0},
		{[]string{"-threads=8", "-private"}, options{threads: 8, private: true}, 0},
		{[]string{"-private", "-shared"}, options{threads: 1}, 0},
		{[]string{"-method", "avx512", "-pin"}, options{threads: 1, method: "avx512", pin: true}, 0},
		{[]string{"-bogus", "-threads", "2"}, options{threads: 2}, 1},
		{[]string{"stray", "-private"}, options{threads: 1, private: true}, 1},
		{[]string{"-threads", "many"}, options{threads: 1}, 1},
		{[]string{"-threads", "4", "-threads=x", "-pin"}, options{threads: 4, pin: true}, 1},
		{[]string{"-log", "error", "-pin"}, options{threads: 1, pin: true}, 0},
	} {
		var stderr bytes.Buffer
		got := parseArgs(test.args, &stderr)
		assert.Equal(t, test.want, got, "args %v", test.args)
		assert.Equal(t, test.usages, strings.Count(stderr.String(), "Usage:"), "args %v", test.args)
	}
}

// quick shortens the sweep to the given sizes and a few passes each.
func quick(sizes ...uint64) func() {
	savedSizes, savedCount := testSizes, iterationCount
	testSizes = func() []uint64 { return sizes }
	iterationCount = func(uint64) uint64 { return 50 }
	return func() { testSizes, iterationCount = savedSizes, savedCount }
}

func TestRun(t *testing.T) {
	defer quick(2, 16, 64)()

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"-threads", "2", "-method", "scalar"}, &stdout, &stderr))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	for i, prefix := range []string{"2,", "16,", "64,"} {
		assert.True(t, strings.HasPrefix(lines[i], prefix), lines[i])
	}
	assert.Contains(t, stderr.String(), "Using 2 threads\n")
}

func TestRunPrivateGuard(t *testing.T) {
	defer quick(2, 8)()

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"-threads", "4", "-private", "-method", "sse"}, &stdout, &stderr))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2,0.000000", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "8,"))
}

func TestRunBadThreads(t *testing.T) {
	defer quick(2)()

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"-threads", "many"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Using 1 threads\n")
	assert.True(t, strings.HasPrefix(stdout.String(), "2,"), stdout.String())
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-method", "mmx"}, &stdout, &stderr)
	assert.True(t, errors.Is(errors.Invalid, err))
	err = run([]string{"-threads", "0"}, &stdout, &stderr)
	assert.True(t, errors.Is(errors.Invalid, err))
}
