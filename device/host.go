// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/membuf"
	"github.com/grailbio/membench/sysinfo"
	"golang.org/x/sync/errgroup"
)

const (
	// hostMinAllocation is the smallest MaxAllocation reported by the
	// host device.
	hostMinAllocation = 128 << 20
	// hostConstantRegion mirrors the constant buffer size that OpenCL
	// guarantees every device supports.
	hostConstantRegion = 64 << 10
)

// Host is the backend that runs kernels as Go code on the host CPU.
// Kernel source is "built" by resolving each __kernel entry point to a
// Go implementation of the same name; work-items run on goroutines and
// the command queue is an errgroup.
var Host Backend = hostBackend{}

func init() {
	Register(Host)
}

type hostBackend struct{}

func (hostBackend) Name() string { return "host" }

func (hostBackend) Platforms() ([]Platform, error) {
	return []Platform{hostPlatform{}}, nil
}

type hostPlatform struct{}

func (hostPlatform) Name() string {
	return fmt.Sprintf("Go %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func (hostPlatform) Devices() ([]Device, error) {
	h, _ := sysinfo.Probe()
	return []Device{&hostDevice{name: fmt.Sprintf("%s (%d CPUs)", h.Model, h.LogicalCPUs)}}, nil
}

type hostDevice struct {
	name string
}

func (d *hostDevice) Name() string { return d.name }

func (d *hostDevice) Limit(l Limit) (uint64, error) {
	switch l {
	case MaxAllocation:
		total, err := sysinfo.TotalMemory()
		if err != nil {
			return 0, err
		}
		if total/4 < hostMinAllocation {
			return hostMinAllocation, nil
		}
		return total / 4, nil
	case MaxConstantRegion:
		return hostConstantRegion, nil
	default:
		return 0, errors.E(errors.NotSupported, l.String())
	}
}

var entryPoint = regexp.MustCompile(`__kernel\s+void\s+(\w+)\s*\(`)

func (d *hostDevice) Build(source string) (Program, error) {
	var (
		buildLog strings.Builder
		p        = &hostProgram{kernels: make(map[string]*hostKernel), queue: new(errgroup.Group)}
	)
	for _, m := range entryPoint.FindAllStringSubmatch(source, -1) {
		name := m[1]
		fn, ok := hostKernels[name]
		if !ok {
			fmt.Fprintf(&buildLog, "warning: no host implementation of kernel %s\n", name)
			continue
		}
		p.kernels[name] = &hostKernel{name: name, fn: fn, program: p}
	}
	if len(p.kernels) == 0 {
		fmt.Fprintf(&buildLog, "error: no __kernel entry points with a host implementation\n")
		return nil, errors.E(errors.Compile, "host build log:\n"+buildLog.String())
	}
	return p, nil
}

type hostProgram struct {
	mu       sync.Mutex
	kernels  map[string]*hostKernel
	queue    *errgroup.Group
	released bool
}

func (p *hostProgram) Kernel(name string) (Kernel, error) {
	k, ok := p.kernels[name]
	if !ok {
		return nil, errors.E(errors.NotExist, "kernel "+name+" not defined by program")
	}
	return k, nil
}

func (p *hostProgram) NewBuffer(access Access, words int) (Buffer, error) {
	r, err := membuf.New(words * 4)
	if err != nil {
		return nil, err
	}
	return &hostBuffer{region: r, words: r.Uint32s(), access: access}, nil
}

// enqueue appends a command to the queue. Commands run as soon as they
// are enqueued; the in-order guarantee holds because every caller
// drains the queue between dependent commands.
func (p *hostProgram) enqueue(cmd func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errors.E(errors.Invalid, "program released")
	}
	p.queue.Go(cmd)
	return nil
}

func (p *hostProgram) Finish() error {
	p.mu.Lock()
	q := p.queue
	p.queue = new(errgroup.Group)
	p.mu.Unlock()
	return q.Wait()
}

func (p *hostProgram) Release() error {
	err := p.Finish()
	p.mu.Lock()
	p.released = true
	p.mu.Unlock()
	return err
}

type hostKernel struct {
	name    string
	fn      hostKernelFunc
	program *hostProgram
}

func (k *hostKernel) Name() string { return k.name }

func (k *hostKernel) Enqueue(args []Arg, global, local int) error {
	if global <= 0 || local <= 0 || global%local != 0 {
		return errors.E(errors.Launch, fmt.Sprintf("invalid work size %d/%d", global, local))
	}
	bound := make([]Arg, len(args))
	copy(bound, args)
	return k.program.enqueue(func() error {
		if err := k.fn(launch{args: bound, global: global, local: local}); err != nil {
			return errors.E(errors.Launch, k.name, err)
		}
		return nil
	})
}

type hostBuffer struct {
	region   *membuf.Region
	words    []uint32
	access   Access
	released bool
}

func (b *hostBuffer) Len() int { return len(b.words) }

func (b *hostBuffer) Write(words []uint32) error {
	if b.released {
		return errors.E(errors.Invalid, "write to released buffer")
	}
	copy(b.words, words)
	return nil
}

func (b *hostBuffer) Read(words []uint32) error {
	if b.released {
		return errors.E(errors.Invalid, "read from released buffer")
	}
	copy(words, b.words)
	return nil
}

func (b *hostBuffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	b.words = nil
	return b.region.Release()
}
