// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"time"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/log"
	"github.com/grailbio/membench/timer"
)

// A Session owns one device, the program built from the kernel source
// and its command queue. Sessions are not safe for concurrent use: a
// session runs one timed launch at a time.
type Session struct {
	// Clock times kernel launches; nil means timer.Monotonic.
	Clock timer.Clock

	backend  string
	platform string
	device   Device
	program  Program
	kernels  map[string]Kernel
	limits   map[Limit]uint64
	closed   bool
}

// Open selects a platform and device of backend b, builds source for
// it and fetches every entry point in KernelNames. Errors are of kind
// Unavailable (nothing to select), OutOfRange (bad selection) or
// Compile (build or entry point failure). Everything acquired before a
// failure is released.
func Open(b Backend, sel Selection, source string) (*Session, error) {
	platforms, err := b.Platforms()
	if err != nil {
		return nil, errors.E(errors.Unavailable, "enumerating "+b.Name()+" platforms", err)
	}
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = p.Name()
	}
	c := sel.chooser()
	pi, err := c.choose("Platform", sel.Platform, names)
	if err != nil {
		return nil, err
	}
	platform := platforms[pi]
	devices, err := platform.Devices()
	if err != nil {
		return nil, errors.E(errors.Unavailable, "enumerating devices of "+platform.Name(), err)
	}
	names = names[:0]
	for _, d := range devices {
		names = append(names, d.Name())
	}
	di, err := c.choose("Device", sel.Device, names)
	if err != nil {
		return nil, err
	}
	dev := devices[di]
	log.Debug.Printf("device: using %s platform %d (%s) device %d (%s)", b.Name(), pi, platform.Name(), di, dev.Name())

	s := &Session{
		backend:  b.Name(),
		platform: platform.Name(),
		device:   dev,
		kernels:  make(map[string]Kernel),
		limits:   make(map[Limit]uint64),
	}
	s.program, err = dev.Build(source)
	if err != nil {
		if !errors.Is(errors.Compile, err) {
			err = errors.E(errors.Compile, "building kernel source for "+dev.Name(), err)
		}
		return nil, err
	}
	for _, name := range KernelNames {
		k, err := s.program.Kernel(name)
		if err != nil {
			err = errors.E(errors.Compile, "fetching kernel "+name, err)
			errors.CleanUp(s.program.Release, &err)
			return nil, err
		}
		s.kernels[name] = k
	}
	for _, l := range []Limit{MaxAllocation, MaxConstantRegion} {
		v, err := dev.Limit(l)
		if err != nil {
			log.Error.Printf("device: querying %s of %s: %v", l, dev.Name(), err)
			v = 0
		}
		s.limits[l] = v
	}
	return s, nil
}

// Backend returns the name of the session's backend.
func (s *Session) Backend() string { return s.backend }

// Platform returns the name of the selected platform.
func (s *Session) Platform() string { return s.platform }

// Device returns the name of the selected device.
func (s *Session) Device() string { return s.device.Name() }

// QueryLimit returns the value of a device limit in bytes, or 0 if the
// device could not report it.
func (s *Session) QueryLimit(l Limit) uint64 {
	return s.limits[l]
}

// NewBuffer allocates a device buffer of the given number of words.
func (s *Session) NewBuffer(access Access, words int) (Buffer, error) {
	if s.closed {
		return nil, errors.E(errors.Invalid, "device: session closed")
	}
	if max := s.limits[MaxAllocation]; max > 0 && uint64(words)*4 > max {
		return nil, errors.E(errors.OOM, fmt.Sprintf("buffer of %d bytes exceeds %s of %d bytes", uint64(words)*4, MaxAllocation, max))
	}
	b, err := s.program.NewBuffer(access, words)
	if err != nil {
		return nil, errors.E(errors.OOM, fmt.Sprintf("allocating buffer of %d words", words), err)
	}
	return b, nil
}

// Read copies a buffer back to the host and waits for the copy.
func (s *Session) Read(b Buffer, words []uint32) error {
	return b.Read(words)
}

// RunKernel launches the named kernel over global work-items in
// work-groups of local work-items and waits for the command queue to
// drain. It returns the wall-clock time from just before the enqueue
// to just after the drain. Failures are of kind Launch.
func (s *Session) RunKernel(name string, args []Arg, global, local int) (time.Duration, error) {
	if s.closed {
		return 0, errors.E(errors.Invalid, "device: session closed")
	}
	k, ok := s.kernels[name]
	if !ok {
		return 0, errors.E(errors.NotExist, "device: unknown kernel "+name)
	}
	if global <= 0 || local <= 0 || global%local != 0 {
		return 0, errors.E(errors.Launch, fmt.Sprintf("global size %d is not a multiple of local size %d", global, local))
	}
	sw := timer.New(s.Clock)
	sw.Start()
	if err := k.Enqueue(args, global, local); err != nil {
		return 0, errors.E(errors.Launch, "enqueue "+name, err)
	}
	if err := s.program.Finish(); err != nil {
		return 0, errors.E(errors.Launch, "finish "+name, err)
	}
	return sw.Stop(), nil
}

// Close releases the program, the command queue and the device
// context. Close is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.program.Release()
}
