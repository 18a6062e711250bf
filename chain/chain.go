// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package chain builds the index chains walked by pointer-chasing
// kernels. A chain c over n slots is followed as next = c[cur]; every
// step depends on the value just loaded, which defeats prefetching and
// memory-level parallelism.
package chain

import (
	"math/rand"

	"github.com/willf/bitset"
)

// A Chain is a permutation of [0, len(Chain)), stored as 32-bit indices
// so that it can be uploaded to a device buffer as is.
type Chain []uint32

// Mode selects how a chain is built.
type Mode int

const (
	// Sattolo builds a uniformly random single cycle through all slots.
	Sattolo Mode = iota
	// Strided builds c[i] = (i + stride) mod n. It is prefetcher
	// friendly and is used where steady-state hit latency, not the
	// cache-defeating worst case, is wanted.
	Strided
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Sattolo:
		return "sattolo"
	case Strided:
		return "strided"
	default:
		return "unknown"
	}
}

// Generate builds a chain of n slots in the given mode. The stride is
// used only by Strided; r is used only by Sattolo.
func Generate(n int, mode Mode, stride uint32, r *rand.Rand) Chain {
	if mode == Strided {
		return NewStrided(n, stride)
	}
	return NewSattolo(n, r)
}

// NewSattolo returns a random permutation of n slots that forms exactly
// one cycle: starting anywhere and following the chain visits all n
// slots before returning. This is Sattolo's variant of the Fisher-Yates
// shuffle: slot iter-1 is only ever swapped with a strictly lower slot.
func NewSattolo(n int, r *rand.Rand) Chain {
	if n <= 0 {
		return Chain{}
	}
	c := make(Chain, n)
	for i := range c {
		c[i] = uint32(i)
	}
	for iter := n; iter >= 2; iter-- {
		j := 0
		if iter-2 > 0 {
			j = r.Intn(iter - 1)
		}
		c[iter-1], c[j] = c[j], c[iter-1]
	}
	return c
}

// NewStrided returns c[i] = (i + stride) mod n. The result is a single
// n-cycle only when gcd(stride, n) == 1; otherwise following the chain
// from any slot returns after n/gcd(stride, n) steps. The stride is not
// adjusted: callers that care check Coprime.
func NewStrided(n int, stride uint32) Chain {
	if n <= 0 {
		return Chain{}
	}
	c := make(Chain, n)
	s := uint64(stride) % uint64(n)
	for i := range c {
		c[i] = uint32((uint64(i) + s) % uint64(n))
	}
	return c
}

// Coprime tells whether a stride covers all n slots.
func Coprime(stride uint32, n int) bool {
	return GCD(uint64(stride), uint64(n)) == 1
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// CycleLength follows c from start and returns the number of steps
// taken to return to start. It returns -1 if start is out of range, if
// an index in c is out of range, or if the walk enters a cycle that
// does not contain start.
func CycleLength(c Chain, start uint32) int {
	n := uint(len(c))
	if uint(start) >= n {
		return -1
	}
	visited := bitset.New(n)
	cur := start
	for steps := 1; ; steps++ {
		visited.Set(uint(cur))
		next := c[cur]
		if uint(next) >= n {
			return -1
		}
		if next == start {
			return steps
		}
		if visited.Test(uint(next)) {
			return -1
		}
		cur = next
	}
}
