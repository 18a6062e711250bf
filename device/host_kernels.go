// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/traverse"
)

// hostKernelFunc runs a whole launch: every work-item of every
// work-group.
type hostKernelFunc func(launch) error

var hostKernels = map[string]hostKernelFunc{
	LatencyKernel:         chaseKernel,
	ConstantLatencyKernel: chaseKernel,
	ParallelLatencyKernel: parallelChaseKernel,
	IntExecKernel:         intExecKernel,
	AtomicKernel:          globalAtomicKernel,
	LocalAtomicKernel:     localAtomicKernel,
}

// launch holds the bound arguments and work size of one enqueue.
type launch struct {
	args          []Arg
	global, local int
}

func (l launch) buffer(i int) (*hostBuffer, error) {
	if i >= len(l.args) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("argument %d not set", i))
	}
	b, ok := l.args[i].(*hostBuffer)
	if !ok {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("argument %d: expected host buffer, got %T", i, l.args[i]))
	}
	if b.released {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("argument %d: buffer released", i))
	}
	return b, nil
}

func (l launch) scalar(i int) (uint32, error) {
	if i >= len(l.args) {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("argument %d not set", i))
	}
	v, ok := l.args[i].(uint32)
	if !ok {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("argument %d: expected uint32, got %T", i, l.args[i]))
	}
	return v, nil
}

// writable binds argument i as a buffer kernels may store into.
func (l launch) writable(i int) (*hostBuffer, error) {
	b, err := l.buffer(i)
	if err == nil && b.access != ReadWrite {
		err = errors.E(errors.Invalid, fmt.Sprintf("argument %d: kernel writes a read-only buffer", i))
	}
	return b, err
}

// chaseArgs binds the (A, count, ret) signature shared by most
// kernels.
func (l launch) chaseArgs() (a *hostBuffer, count uint32, ret *hostBuffer, err error) {
	if a, err = l.buffer(0); err != nil {
		return
	}
	if count, err = l.scalar(1); err != nil {
		return
	}
	ret, err = l.buffer(2)
	return
}

// chase follows the chain in a count times from start and returns the
// sum of the visited indices.
func chase(a []uint32, count, start uint32) (uint32, error) {
	var (
		n   = uint32(len(a))
		cur = start
		sum uint32
	)
	if cur >= n {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("chase start %d outside chain of %d", cur, n))
	}
	for i := uint32(0); i < count; i++ {
		cur = a[cur]
		if cur >= n {
			return 0, errors.E(errors.Invalid, fmt.Sprintf("chain index %d outside chain of %d", cur, n))
		}
		sum += cur
	}
	return sum, nil
}

func chaseKernel(l launch) error {
	a, count, ret, err := l.chaseArgs()
	if err != nil {
		return err
	}
	return traverse.Limit(runtime.NumCPU()).Each(l.global, func(gid int) error {
		sum, err := chase(a.words, count, 0)
		if err == nil && gid == 0 && ret.Len() > 0 {
			ret.words[0] = sum
		}
		return err
	})
}

func parallelChaseKernel(l launch) error {
	a, err := l.buffer(0)
	if err != nil {
		return err
	}
	count, err := l.scalar(1)
	if err != nil {
		return err
	}
	size, err := l.scalar(2)
	if err != nil {
		return err
	}
	ret, err := l.buffer(3)
	if err != nil {
		return err
	}
	if size == 0 || int(size) > a.Len() {
		return errors.E(errors.Invalid, fmt.Sprintf("chain size %d, buffer holds %d", size, a.Len()))
	}
	return traverse.Limit(runtime.NumCPU()).Each(l.global, func(gid int) error {
		sum, err := chase(a.words[:size], count, uint32(gid)%size)
		if err == nil && gid < ret.Len() {
			ret.words[gid] = sum
		}
		return err
	})
}

// intExecKernel runs twelve dependent integer operations per
// iteration. The operands come from A so that the chain cannot be
// folded.
func intExecKernel(l launch) error {
	a, count, ret, err := l.chaseArgs()
	if err != nil {
		return err
	}
	if a.Len() < 4 {
		return errors.E(errors.Invalid, "int exec input needs 4 words")
	}
	x, y, z, w := a.words[0], a.words[1]|1, a.words[2], a.words[3]
	for i := uint32(0); i < count; i++ {
		x += y
		x ^= z
		x *= y
		x -= w
		x += z
		x ^= y
		x *= y
		x += w
		x ^= z
		x -= y
		x += w
		x ^= i
	}
	if ret.Len() > 0 {
		ret.words[0] = x
	}
	return nil
}

// bounce hands the counter at addr around the participants: the
// participant with index k may increment it only when it is k modulo
// the number of participants. Each participant takes count turns.
func bounce(addr *uint32, participants, k int, count uint32) uint32 {
	var turns uint32
	for turns < count {
		c := atomic.LoadUint32(addr)
		if int(c%uint32(participants)) != k || !atomic.CompareAndSwapUint32(addr, c, c+1) {
			runtime.Gosched()
			continue
		}
		turns++
	}
	return turns
}

// globalAtomicKernel bounces A[0] between all work-items of the
// launch.
func globalAtomicKernel(l launch) error {
	a, count, ret, err := l.chaseArgs()
	if err != nil {
		return err
	}
	if a, err = l.writable(0); err != nil {
		return err
	}
	if a.Len() < 1 {
		return errors.E(errors.Invalid, "atomic counter buffer is empty")
	}
	base := atomic.LoadUint32(&a.words[0])
	return traverse.Each(l.global, func(gid int) error {
		k := (gid + int(base%uint32(l.global))) % l.global
		turns := bounce(&a.words[0], l.global, k, count)
		if gid < ret.Len() {
			ret.words[gid] = turns
		}
		return nil
	})
}

// localAtomicKernel bounces a counter private to each work-group
// between the work-group's work-items. The final counter of group 0 is
// stored in A[0].
func localAtomicKernel(l launch) error {
	a, count, ret, err := l.chaseArgs()
	if err != nil {
		return err
	}
	if a, err = l.writable(0); err != nil {
		return err
	}
	counters := make([]struct {
		v uint32
		_ [60]byte
	}, l.global/l.local)
	err = traverse.Each(l.global, func(gid int) error {
		group, lid := gid/l.local, gid%l.local
		turns := bounce(&counters[group].v, l.local, lid, count)
		if gid < ret.Len() {
			ret.words[gid] = turns
		}
		return nil
	})
	if err == nil && a.Len() > 0 {
		a.words[0] = counters[0].v
	}
	return err
}
