// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package membuf

import "golang.org/x/sys/unix"

// Anonymous private mappings are page aligned and zero filled.
func alloc(size int) ([]byte, error) {
	var (
		prot = unix.PROT_READ | unix.PROT_WRITE
		flag = unix.MAP_PRIVATE | unix.MAP_ANON
	)
	return unix.Mmap(-1, 0, size, prot, flag)
}

func free(b []byte) error {
	return unix.Munmap(b)
}
