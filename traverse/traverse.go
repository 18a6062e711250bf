// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package traverse fans work out to goroutines and joins it again. It
// is used to run measurement workers, which need to be bound to OS
// threads and optionally to CPUs, and to run device work-items.
package traverse

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/log"
)

const cachelineSize = 64

// A T is a traverser: it invokes a function for each index of a
// collection, concurrently, and waits for all invocations.
type T struct {
	// Limit is the maximum number of concurrent invocations. Zero
	// means one goroutine per index.
	Limit int
	// LockOSThread binds each invocation's goroutine to its own OS
	// thread for the duration of the invocation.
	LockOSThread bool
	// Pin additionally restricts invocation i to CPU i mod NumCPU.
	// Pinning implies LockOSThread and is a no-op where unsupported.
	Pin bool
}

// Limit returns a traverser with limit n.
func Limit(n int) T {
	if n <= 0 {
		log.Panicf("traverse.Limit: invalid limit: %d", n)
	}
	return T{Limit: n}
}

// Threads returns a traverser that runs each invocation on its own
// OS thread, optionally pinned to a CPU.
func Threads(pin bool) T {
	return T{LockOSThread: true, Pin: pin}
}

// Each invokes fn(i) for 0 <= i < n and returns when all invocations
// have completed. It returns the first error, if any. Panics in fn are
// propagated to the caller of Each.
func (t T) Each(n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	var err error
	if t.Limit == 0 || t.Limit >= n {
		err = t.each(n, fn)
	} else {
		err = t.eachLimit(n, fn)
	}
	if err == nil {
		return nil
	}
	if err, ok := err.(panicErr); ok {
		panic(fmt.Sprintf("traverse child: %v\n%s", err.v, string(err.stack)))
	}
	return err
}

func (t T) each(n int, fn func(i int) error) error {
	var (
		once errors.Once
		wg   sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if err := t.apply(fn, i); err != nil {
				once.Set(err)
			}
		}(i)
	}
	wg.Wait()
	return once.Err()
}

// Each worker takes indices from the shared counter until exhausted
// or until an invocation fails.
func (t T) eachLimit(n int, fn func(i int) error) error {
	var (
		once errors.Once
		wg   sync.WaitGroup
		next struct {
			_ [cachelineSize]byte
			N int64
			_ [cachelineSize - 8]byte
		}
	)
	wg.Add(t.Limit)
	for w := 0; w < t.Limit; w++ {
		go func() {
			defer wg.Done()
			for once.Err() == nil {
				i := int(atomic.AddInt64(&next.N, 1) - 1)
				if i >= n {
					return
				}
				if err := t.apply(fn, i); err != nil {
					once.Set(err)
				}
			}
		}()
	}
	wg.Wait()
	return once.Err()
}

// Range splits n into contiguous ranges, one per allowed concurrent
// invocation, and invokes fn for each range.
func (t T) Range(n int, fn func(start, end int) error) error {
	m := n
	if t.Limit > 0 && t.Limit < n {
		m = t.Limit
	}
	return t.Each(m, func(i int) error {
		var (
			size  = float64(n) / float64(m)
			start = int(float64(i) * size)
			end   = int(float64(i+1) * size)
		)
		if start >= n {
			return nil
		}
		if i == m-1 {
			end = n
		}
		return fn(start, end)
	})
}

// Each performs concurrent traversal over n elements. It is a
// shorthand for (T{}).Each.
func Each(n int, fn func(i int) error) error {
	return T{}.Each(n, fn)
}

func (t T) apply(fn func(i int) error, i int) (err error) {
	if t.LockOSThread || t.Pin {
		// The thread is not unlocked if pinning changed its affinity,
		// so that the runtime retires it instead of reusing it.
		runtime.LockOSThread()
		pinned := false
		if t.Pin {
			if perr := pin(i % runtime.NumCPU()); perr != nil {
				log.Debug.Printf("traverse: pin worker %d: %v", i, perr)
			} else {
				pinned = true
			}
		}
		if !pinned {
			defer runtime.UnlockOSThread()
		}
	}
	defer func() {
		if perr := recover(); perr != nil {
			err = panicErr{perr, debug.Stack()}
		}
	}()
	return fn(i)
}

type panicErr struct {
	v     interface{}
	stack []byte
}

func (p panicErr) Error() string { return fmt.Sprint(p.v) }
