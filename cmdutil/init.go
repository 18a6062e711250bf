// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmdutil

import (
	"flag"
	"os"
	"sync"

	"github.com/google/gops/agent"
	"github.com/grailbio/membench/log"
	"v.io/x/lib/vlog"
)

// Shutdown performs the final cleanup of a tool.
type Shutdown func()

var (
	initOnce sync.Once
	mu       sync.Mutex
	atExit   []func()
	gopsFlag = flag.Bool("gops", false, "enable the gops listener")
)

func init() {
	// Diagnostics go to stderr rather than to log files.
	for name, value := range map[string]string{"logtostderr": "true", "alsologtostderr": "false"} {
		fl := flag.Lookup(name)
		if fl == nil {
			continue
		}
		fl.DefValue = value
		if err := fl.Value.Set(value); err != nil {
			panic(err)
		}
	}
}

// Init configures the process after its flags have been parsed: it
// routes package log through vlog and starts a gops agent if -gops or
// $GOPS is set. Init may be called more than once; only the first call
// has an effect. The returned function runs the AtExit callbacks and
// flushes the log.
//
// Suggested use:
//
//	shutdown := cmdutil.Init()
//	defer shutdown()
func Init() Shutdown {
	initOnce.Do(func() {
		if err := vlog.ConfigureLibraryLoggerFromFlags(); err != nil {
			log.Error.Printf("configuring vlog: %v", err)
		}
		log.SetOutputter(vlogOutputter{})
		_, ok := os.LookupEnv("GOPS")
		if ok || *gopsFlag {
			if err := agent.Listen(agent.Options{}); err != nil {
				log.Print(err)
			}
		}
	})
	return func() {
		RunAtExit()
		vlog.FlushLog()
	}
}

// AtExit registers a function to be run by the Init shutdown function.
// Functions run in the reverse order of registration.
func AtExit(f func()) {
	mu.Lock()
	atExit = append(atExit, f)
	mu.Unlock()
}

// RunAtExit runs and clears the functions registered with AtExit.
func RunAtExit() {
	mu.Lock()
	fns := atExit
	atExit = nil
	mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// vlog entry points, replaced in tests.
var (
	vlogInfoDepth  = vlog.InfoDepth
	vlogErrorDepth = vlog.ErrorDepth
)

type vlogOutputter struct{}

func (vlogOutputter) Level() log.Level {
	if vlog.V(1) {
		return log.Debug
	}
	return log.Info
}

// Output passes calldepth through unchanged: a vlog depth of 0 names the
// caller of vlog itself, where package log counts that frame as 1.
func (vlogOutputter) Output(calldepth int, level log.Level, s string) error {
	switch level {
	case log.Off:
	case log.Error:
		vlogErrorDepth(calldepth, s)
	case log.Info:
		vlogInfoDepth(calldepth, s)
	default:
		vlog.VI(vlog.Level(level)).InfoDepth(calldepth, s)
	}
	return nil
}
