// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cmdutil provides the process setup shared by the measurement
// tools: flag-driven logging, exit callbacks and fatal error reporting.
package cmdutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/membench/errors"
	"v.io/x/lib/vlog"
)

// ExitStatus returns the process exit status for err: 0 for nil, 2 for
// invalid arguments and 1 otherwise.
func ExitStatus(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(errors.Invalid, err):
		return 2
	default:
		return 1
	}
}

// Fatalf prints the message to stderr with no prefix and no timestamp,
// runs the AtExit callbacks and exits with status 1.
func Fatalf(format string, args ...interface{}) {
	exit(1, fmt.Sprintf(format, args...))
}

// Fatal reports err like Fatalf and exits with ExitStatus(err).
func Fatal(err error) {
	exit(ExitStatus(err), err.Error())
}

func exit(status int, m string) {
	fmt.Fprint(os.Stderr, strings.TrimSuffix(m, "\n")+"\n")
	RunAtExit()
	vlog.FlushLog()
	os.Exit(status)
}
