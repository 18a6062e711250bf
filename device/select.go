// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package device

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/membench/errors"
)

// Selection identifies a platform and a device by their enumeration
// indices. An index of -1 asks the operator: the choices are listed on
// Out and the index is read from In.
type Selection struct {
	Platform, Device int
	// In and Out default to os.Stdin and os.Stderr.
	In  io.Reader
	Out io.Writer
}

// Ask is the selection that prompts for both indices.
var Ask = Selection{Platform: -1, Device: -1}

type chooser struct {
	in  *bufio.Reader
	out io.Writer
}

func (sel Selection) chooser() *chooser {
	c := &chooser{out: sel.Out}
	if c.out == nil {
		c.out = os.Stderr
	}
	in := sel.In
	if in == nil {
		in = os.Stdin
	}
	c.in = bufio.NewReader(in)
	return c
}

// choose resolves index against names. The label ("Platform" or
// "Device") prefixes both the listing and the prompt.
func (c *chooser) choose(label string, index int, names []string) (int, error) {
	if len(names) == 0 {
		return -1, errors.E(errors.Unavailable, fmt.Sprintf("no %s found", label))
	}
	if index == -1 {
		for i, name := range names {
			fmt.Fprintf(c.out, "%s %d: %s\n", label, i, name)
		}
		fmt.Fprintf(c.out, "Enter %s #: ", label)
		if _, err := fmt.Fscan(c.in, &index); err != nil {
			return -1, errors.E(errors.OutOfRange, fmt.Sprintf("reading %s index", label), err)
		}
	}
	if index < 0 || index >= len(names) {
		return -1, errors.E(errors.OutOfRange, fmt.Sprintf("%s index %d out of range [0, %d)", label, index, len(names)))
	}
	return index, nil
}
