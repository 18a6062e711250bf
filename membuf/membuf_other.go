// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !(darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd)

package membuf

import "unsafe"

func alloc(size int) ([]byte, error) {
	b := make([]byte, size+Align)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&b[0])) % Align); rem != 0 {
		off = Align - rem
	}
	return b[off : off+size : off+size], nil
}

func free([]byte) error { return nil }
