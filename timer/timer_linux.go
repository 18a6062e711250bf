// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build linux

package timer

import (
	"time"

	"golang.org/x/sys/unix"
)

type monotonic struct{}

func (monotonic) Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return time.Since(epoch)
	}
	return time.Duration(ts.Nano())
}

var epoch = time.Now()
