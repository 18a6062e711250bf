// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import (
	"sync"
	"sync/atomic"
)

// Once captures at most one error. Errors are safely set across
// multiple goroutines; it is used to collect the first failure of a set
// of measurement workers.
//
// A zero Once is ready to use.
type Once struct {
	mu  sync.Mutex
	err atomic.Value // holds onceErr
}

type onceErr struct{ error }

// Err returns the first non-nil error passed to Set.
func (e *Once) Err() error {
	v, _ := e.err.Load().(onceErr)
	return v.error
}

// Set sets this instance's error to err. Only the first error
// is set; subsequent calls are ignored.
func (e *Once) Set(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	if e.err.Load() == nil {
		e.err.Store(onceErr{err})
	}
	e.mu.Unlock()
}
