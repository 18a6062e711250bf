// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	goerrors "errors"
	"os"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/membench/errors"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	e1 := errors.E(errors.NotExist, "reading kernel source", err)
	expect.EQ(t, e1.Error(), "reading kernel source: resource does not exist: open /dev/notexist: no such file or directory")
	e2 := errors.E(err)
	expect.EQ(t, e2.Error(), "resource does not exist: open /dev/notexist: no such file or directory")
	for _, e := range []error{e1, e2} {
		expect.True(t, errors.Is(errors.NotExist, e))
		expect.False(t, errors.Is(errors.Launch, e))
	}
	expect.True(t, goerrors.Is(e1, err))
}

func TestErrorChaining(t *testing.T) {
	err := errors.E(errors.Launch, "enqueue unrolled_latency_test")
	err = errors.E("size 2048", err)
	expect.EQ(t, err.Error(), "size 2048: kernel launch failed:\n\tenqueue unrolled_latency_test")
	expect.True(t, errors.Is(errors.Launch, err))
}

func TestIsOther(t *testing.T) {
	expect.False(t, errors.Is(errors.Other, nil))
	expect.True(t, errors.Is(errors.Other, errors.New("plain")))
	expect.False(t, errors.Is(errors.Invalid, errors.New("plain")))
}

func TestMatchFuzz(t *testing.T) {
	fz := fuzz.New().NilChance(0).Funcs(
		func(k *errors.Kind, c fuzz.Continue) {
			*k = errors.Kind(c.Intn(int(errors.OOM) + 1))
		},
		func(e *errors.Error, c fuzz.Continue) {
			c.Fuzz(&e.Kind)
			c.Fuzz(&e.Message)
			if c.Float32() < 0.5 {
				var e2 errors.Error
				c.Fuzz(&e2)
				e.Err = &e2
			}
		},
	)
	for i := 0; i < 1000; i++ {
		var e errors.Error
		fz.Fuzz(&e)
		cp := errors.E(&e)
		expect.True(t, errors.Match(&e, cp))
	}
}

func TestCleanUp(t *testing.T) {
	release := func() error { return errors.New("release failed") }

	var err error
	errors.CleanUp(func() error { return nil }, &err)
	require.NoError(t, err)

	errors.CleanUp(release, &err)
	require.EqualError(t, err, "release failed")

	err = errors.E(errors.Launch, "drain")
	errors.CleanUp(release, &err)
	expect.True(t, errors.Is(errors.Launch, err))
	expect.HasSubstr(t, err.Error(), "second error in release: release failed")
}

func TestOnce(t *testing.T) {
	var e errors.Once
	require.NoError(t, e.Err())
	e.Set(nil)
	require.NoError(t, e.Err())
	e.Set(errors.New("testerror"))
	require.EqualError(t, e.Err(), "testerror")
	e.Set(errors.New("testerror2"))
	require.EqualError(t, e.Err(), "testerror")
}
