// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	"flag"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

var level = int32(Info)

// LevelFlag returns a flag.Value that sets the level of the default
// outputter, for registration as a -log flag:
//
//	fs.Var(log.LevelFlag(), "log", "set log level (off, error, info, debug)")
func LevelFlag() flag.Value {
	return levelFlag{}
}

// SetLevel sets the level of the default outputter.
func SetLevel(l Level) {
	atomic.StoreInt32(&level, int32(l))
}

// SetOutput redirects the default outputter to w. Lines are written
// without timestamps: the diagnostic stream is read by operators next
// to the measurement rows, not ingested.
func SetOutput(w io.Writer) {
	if o, ok := out.(*writerOutputter); ok {
		o.mu.Lock()
		o.w = w
		o.mu.Unlock()
	}
}

// SetPrefix sets the prefix written before each line by the default
// outputter, typically the tool name followed by ": ".
func SetPrefix(prefix string) {
	if o, ok := out.(*writerOutputter); ok {
		o.mu.Lock()
		o.prefix = prefix
		o.mu.Unlock()
	}
}

type levelFlag struct{}

func (levelFlag) String() string {
	return Level(atomic.LoadInt32(&level)).String()
}

func (levelFlag) Set(s string) error {
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	SetLevel(l)
	return nil
}

// Get implements flag.Getter.
func (levelFlag) Get() interface{} {
	return Level(atomic.LoadInt32(&level))
}

// writerOutputter serializes whole lines onto w; measurement workers
// may log concurrently with the driver.
type writerOutputter struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	buf    []byte
}

func newWriterOutputter(w io.Writer) *writerOutputter {
	return &writerOutputter{w: w}
}

func (o *writerOutputter) Level() Level {
	return Level(atomic.LoadInt32(&level))
}

func (o *writerOutputter) Output(calldepth int, l Level, s string) error {
	if o.Level() < l {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf = append(o.buf[:0], o.prefix...)
	o.buf = append(o.buf, s...)
	if !strings.HasSuffix(s, "\n") {
		o.buf = append(o.buf, '\n')
	}
	_, err := o.w.Write(o.buf)
	return err
}
