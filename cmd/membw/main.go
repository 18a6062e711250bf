// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command membw measures host memory read bandwidth over a range of test
// sizes, with one reader per OS thread.
//
// Usage:
//
//	membw [-threads n] [-shared | -private] [-method scalar|sse|asm|avx512] [-pin] [-log level]
//
// Each line of output is "size,bandwidth", with the size in KiB and the
// bandwidth in GB/s. Unrecognized arguments are reported and ignored.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/membench/bandwidth"
	"github.com/grailbio/membench/cmdutil"
	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/log"
	"github.com/grailbio/membench/memread"
	"github.com/grailbio/membench/sweep"
	"github.com/grailbio/membench/sysinfo"
	"github.com/grailbio/membench/table"
)

const usage = "Usage: [-threads <thread count>] [-shared | -private] [-method <scalar/sse/asm/avx512>] [-pin]\n"

var (
	// testSizes returns the sizes to sweep.
	testSizes = sweep.HostSizes
	// iterationCount returns the passes to make over a size.
	iterationCount = bandwidth.IterationCount
)

type options struct {
	threads int
	private bool
	method  string
	pin     bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("membw", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&opts.threads, "threads", 1, "number of reader threads")
	fs.Var(boolFunc(func() { opts.private = false }), "shared", "all threads read one array (default)")
	fs.BoolVar(&opts.private, "private", false, "give each thread its own array")
	fs.StringVar(&opts.method, "method", "", "read method: scalar, sse, asm (avx, neon) or avx512; default detected")
	fs.BoolVar(&opts.pin, "pin", false, "pin reader t to CPU t")
	fs.Var(log.LevelFlag(), "log", "set log level (off, error, info, debug)")
	return fs
}

// boolFunc is a value-less flag that runs a function when set.
type boolFunc func()

func (f boolFunc) String() string   { return "false" }
func (f boolFunc) Set(string) error { f(); return nil }
func (f boolFunc) IsBoolFlag() bool { return true }

// parseArgs walks args one token at a time. Unknown dash arguments and
// bare words are reported on stderr and skipped, so that a mistyped
// option never prevents a run.
func parseArgs(args []string, stderr io.Writer) options {
	opts := options{threads: 1}
	fs := newFlagSet(&opts)
	for len(args) > 0 {
		arg := args[0]
		args = args[1:]
		if !strings.HasPrefix(arg, "-") {
			fmt.Fprintf(stderr, "Expected - parameter, got %q\n%s", arg, usage)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		f := fs.Lookup(name)
		if f == nil {
			fmt.Fprintf(stderr, "Unknown parameter %s\n%s", arg, usage)
			continue
		}
		tokens := []string{arg}
		bf, ok := f.Value.(interface{ IsBoolFlag() bool })
		if !(ok && bf.IsBoolFlag()) && !strings.Contains(arg, "=") && len(args) > 0 {
			tokens = append(tokens, args[0])
			args = args[1:]
		}
		// A value that fails to parse may already have been stored.
		saved := opts
		if err := fs.Parse(tokens); err != nil {
			opts = saved
			fmt.Fprintf(stderr, "%v\n%s", err, usage)
		}
	}
	return opts
}

func run(args []string, stdout, stderr io.Writer) error {
	opts := parseArgs(args, stderr)
	if opts.threads < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid thread count %d", opts.threads))
	}
	method, err := memread.Select(opts.method)
	if err != nil {
		return err
	}
	mode := bandwidth.Shared
	if opts.private {
		mode = bandwidth.Private
	}
	host, err := sysinfo.Probe()
	if err != nil {
		log.Error.Printf("probing host: %v", err)
	}
	fmt.Fprintf(stderr, "Using %d threads\n", opts.threads)
	fmt.Fprintf(stderr, "Using %s array, %s read method, %s (%d CPUs)\n", mode, method, host.Model, runtime.NumCPU())

	h := bandwidth.Host{
		Threads: opts.threads,
		Mode:    mode,
		Method:  method,
		Pin:     opts.pin,
	}
	_, err = sweep.Sweep{
		Name:  "membw",
		Sizes: testSizes(),
		Bytes: sweep.HostBytes,
		Limit: host.TotalMemory / 2,
		Measure: func(sizeKiB uint64) (float64, error) {
			return h.Measure(sizeKiB, iterationCount(sizeKiB))
		},
	}.Run(table.NewWriter(stdout))
	return err
}

func main() {
	log.SetPrefix("membw: ")
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		cmdutil.Fatal(err)
	}
}
