// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command gpumemlatency measures memory latency, atomic hand-off latency,
// integer execution latency and parallel chase bandwidth of one compute
// device.
package main

import (
	"fmt"
	"strconv"

	"github.com/gobwas/glob"
	"github.com/grailbio/membench/bandwidth"
	"github.com/grailbio/membench/chain"
	"github.com/grailbio/membench/cmdutil"
	"github.com/grailbio/membench/device"
	"github.com/grailbio/membench/latency"
	"github.com/grailbio/membench/log"
	"github.com/grailbio/membench/sweep"
	"github.com/grailbio/membench/table"
	"v.io/x/lib/cmdline"
)

var (
	backendFlag   string
	sourceFlag    string
	runFlag       string
	listTestsFlag bool
)

func newCmdRoot() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner: cmdutil.RunnerFunc(run),
		Name:   "gpumemlatency",
		Short:  "Measures memory and execution latency of a compute device",
		Long: `
Command gpumemlatency runs a battery of latency and bandwidth tests on one
compute device. Scalar results are printed as "test,value" lines and sweeps
as "size,value" lines, with sizes in KiB, latencies in nanoseconds and
bandwidth in GB/s.

A platform or device index of -1 lists the choices and prompts for one;
pass "--" before a negative index. The global work size (threads) must be a
multiple of the local work size.

Tests:
  atomic-global       hand-off latency of a global memory atomic
  atomic-local        hand-off latency of a local memory atomic
  int-exec            latency of a dependent integer operation
  global-latency      pointer chasing latency over global memory
  constant-latency    pointer chasing latency over constant memory
  parallel-bandwidth  bandwidth of many work-items chasing one chain
`,
		ArgsName: "[platform] [device] [stride] [chase-iterations] [threads] [local-size]",
	}
	cmd.Flags.StringVar(&backendFlag, "backend", "host", "device backend: "+fmt.Sprint(device.Backends()))
	cmd.Flags.StringVar(&sourceFlag, "kernel-source", "latency_kernel.cl", "path of the OpenCL kernel source")
	cmd.Flags.StringVar(&runFlag, "run", "{atomic-*,global-latency,constant-latency}", "glob selecting the tests to run")
	cmd.Flags.BoolVar(&listTestsFlag, "list-tests", false, "list the tests and exit")
	return cmd
}

// options are the positional arguments.
type options struct {
	platform, device   int
	stride, iterations uint32
	threads, localSize uint32
}

func defaultOptions() options {
	config := latency.DefaultConfig()
	return options{
		platform:   -1,
		device:     -1,
		stride:     config.Stride,
		iterations: config.Iterations,
		threads:    1,
		localSize:  1,
	}
}

func parseArgs(env *cmdline.Env, args []string) (options, error) {
	opts := defaultOptions()
	if len(args) > 6 {
		return opts, env.UsageErrorf("at most 6 arguments are accepted, got %d", len(args))
	}
	ints := []*int{&opts.platform, &opts.device}
	uints := []*uint32{&opts.stride, &opts.iterations, &opts.threads, &opts.localSize}
	names := []string{"platform", "device", "stride", "chase-iterations", "threads", "local-size"}
	for i, arg := range args {
		if i < len(ints) {
			v, err := strconv.Atoi(arg)
			if err != nil || v < -1 {
				return opts, env.UsageErrorf("invalid %s index %q", names[i], arg)
			}
			*ints[i] = v
			continue
		}
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || v == 0 {
			return opts, env.UsageErrorf("invalid %s %q", names[i], arg)
		}
		*uints[i-len(ints)] = uint32(v)
	}
	if opts.threads%opts.localSize != 0 {
		return opts, env.UsageErrorf("threads (%d) must be a multiple of local size (%d)", opts.threads, opts.localSize)
	}
	return opts, nil
}

func run(env *cmdline.Env, args []string) error {
	opts, err := parseArgs(env, args)
	if err != nil {
		return err
	}
	match, err := glob.Compile(runFlag)
	if err != nil {
		return env.UsageErrorf("invalid -run pattern %q: %v", runFlag, err)
	}
	if listTestsFlag {
		for _, t := range tests {
			mark := " "
			if match.Match(t.name) {
				mark = "*"
			}
			fmt.Fprintf(env.Stdout, "%s %-20s %s\n", mark, t.name, t.description)
		}
		return nil
	}
	var selected []test
	for _, t := range tests {
		if match.Match(t.name) {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		return env.UsageErrorf("-run %q selects no tests", runFlag)
	}

	b, err := device.Lookup(backendFlag)
	if err != nil {
		return err
	}
	source, err := device.LoadSource(sourceFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Doing %d K p-chase iterations with stride %d\n", opts.iterations/1000, opts.stride)
	fmt.Fprintf(env.Stderr, "Using %d threads with local size %d\n", opts.threads, opts.localSize)
	s, err := device.Open(b, device.Selection{
		Platform: opts.platform,
		Device:   opts.device,
		In:       env.Stdin,
		Out:      env.Stderr,
	}, source)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error.Printf("closing device session: %v", err)
		}
	}()
	fmt.Fprintf(env.Stderr, "Using %s device %s (%s)\n", s.Backend(), s.Device(), s.Platform())

	config := latency.DefaultConfig()
	config.Stride = opts.stride
	config.Iterations = opts.iterations
	r := &runner{
		env:    env,
		opts:   opts,
		engine: latency.New(s, config),
		out:    table.NewWriter(env.Stdout),
	}
	for _, t := range selected {
		log.Debug.Printf("running %s", t.name)
		if err := t.run(r); err != nil {
			return err
		}
	}
	return r.out.Flush()
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}

// runner carries the state shared by the tests of one run.
type runner struct {
	env    *cmdline.Env
	opts   options
	engine *latency.Engine
	out    *table.Writer
}

type test struct {
	name, description string
	run               func(*runner) error
}

var tests = []test{
	{"atomic-global", "hand-off latency of a global memory atomic", func(r *runner) error {
		return r.scalar("atomic-global", func() (float64, error) { return r.engine.Atomic(false) })
	}},
	{"atomic-local", "hand-off latency of a local memory atomic", func(r *runner) error {
		return r.scalar("atomic-local", func() (float64, error) { return r.engine.Atomic(true) })
	}},
	{"int-exec", "latency of a dependent integer operation", func(r *runner) error {
		return r.scalar("int-exec", r.engine.IntExec)
	}},
	{"global-latency", "pointer chasing latency over global memory", (*runner).globalLatency},
	{"constant-latency", "pointer chasing latency over constant memory", (*runner).constantLatency},
	{"parallel-bandwidth", "bandwidth of many work-items chasing one chain", (*runner).parallelBandwidth},
}

// scalar prints a single-value test. A failed measurement is printed
// as 0.
func (r *runner) scalar(name string, measure func() (float64, error)) error {
	v, err := measure()
	if err != nil {
		log.Error.Printf("%s: %v", name, err)
	}
	if err := r.out.NamedRow(name, v); err != nil {
		return err
	}
	return r.out.Flush()
}

func (r *runner) sweep(name, header string, limit uint64, measure func(uint64) (float64, error)) error {
	fmt.Fprintf(r.env.Stderr, "\n%s (up to %d K):\n", header, limit/1024)
	res, err := sweep.Sweep{
		Name:    name,
		Sizes:   sweep.DeviceSizes(),
		Bytes:   sweep.DeviceBytes,
		Limit:   limit,
		Measure: measure,
	}.Run(r.out)
	if err != nil {
		return err
	}
	log.Debug.Printf("%s: %s after %d sizes", name, res.Stop, len(res.Steps))
	return nil
}

func (r *runner) globalLatency() error {
	limit := r.engine.Session.QueryLimit(device.MaxAllocation)
	return r.sweep("global-latency", "Sattolo, global memory latency, unrolled", limit, func(size uint64) (float64, error) {
		return r.engine.Chase(device.LatencyKernel, uint32(sweep.DeviceWords(size)), chain.Sattolo)
	})
}

func (r *runner) constantLatency() error {
	limit := r.engine.Session.QueryLimit(device.MaxConstantRegion)
	return r.sweep("constant-latency", "Strided, constant memory latency", limit, func(size uint64) (float64, error) {
		words := sweep.DeviceWords(size)
		if stride := r.engine.Config.Stride; !chain.Coprime(stride, int(words)) {
			covered := chain.CycleLength(chain.NewStrided(int(words), stride), 0)
			log.Printf("constant-latency: stride %d shares factor %d with list size %d; the chain covers %d of %d slots",
				stride, chain.GCD(uint64(stride), words), words, covered, words)
		}
		return r.engine.Chase(device.ConstantLatencyKernel, uint32(words), chain.Strided)
	})
}

func (r *runner) parallelBandwidth() error {
	var (
		limit = r.engine.Session.QueryLimit(device.MaxAllocation)
		d     = bandwidth.Device{
			Engine:    r.engine,
			Threads:   r.opts.threads,
			LocalSize: r.opts.localSize,
		}
	)
	header := fmt.Sprintf("Sattolo, global memory parallel chase bandwidth, %d threads, local size %d", r.opts.threads, r.opts.localSize)
	return r.sweep("parallel-bandwidth", header, limit, func(size uint64) (float64, error) {
		iterations := r.opts.iterations / uint32(size)
		if iterations == 0 {
			iterations = 1
		}
		return d.Measure(uint32(sweep.DeviceWords(size)), iterations)
	})
}
