// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmdutil

import (
	"v.io/x/lib/cmdline"
)

// RunnerFunc is an adapter that turns regular functions into cmdline.Runners.
type RunnerFunc func(*cmdline.Env, []string) error

// Run implements the cmdline.Runner interface method by calling f(env, args)
// after Init, and runs the shutdown callbacks and flushes the log
// when f returns.
func (f RunnerFunc) Run(env *cmdline.Env, args []string) error {
	shutdown := Init()
	defer shutdown()
	return f(env, args)
}
