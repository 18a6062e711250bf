// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package device

import (
	"sort"
	"sync"

	"github.com/grailbio/membench/errors"
	"github.com/grailbio/membench/log"
)

var (
	mu       sync.Mutex
	backends = map[string]Backend{}
)

// Register makes a backend available by name. Registering the same
// name twice panics.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := backends[b.Name()]; ok {
		log.Panicf("device: backend %s registered twice", b.Name())
	}
	backends[b.Name()] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	mu.Lock()
	defer mu.Unlock()
	b, ok := backends[name]
	if !ok {
		return nil, errors.E(errors.NotExist, "device: no backend named "+name)
	}
	return b, nil
}

// Backends returns the names of the registered backends in sorted
// order.
func Backends() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
