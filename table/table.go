// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package table writes the comma-separated result rows printed by the
// measurement tools.
package table

import (
	"bufio"
	"io"
	"strconv"
)

// Writer appends a field at a time to a comma-separated line. Lines are
// buffered until Flush.
type Writer struct {
	w    *bufio.Writer
	line []byte
}

// NewWriter creates a new table.Writer from an io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:    bufio.NewWriter(w),
		line: make([]byte, 0, 64),
	}
}

// WriteString appends the given string and a comma to the current line.
func (w *Writer) WriteString(s string) {
	w.line = append(w.line, s...)
	w.line = append(w.line, ',')
}

// WriteUint64 converts the given uint64 to a string, and appends that and
// a comma to the current line.
func (w *Writer) WriteUint64(ui uint64) {
	w.line = strconv.AppendUint(w.line, ui, 10)
	w.line = append(w.line, ',')
}

// WriteFloat64 converts the given float64 to a string with the given
// strconv.AppendFloat parameters, and appends that and a comma to the
// current line.
func (w *Writer) WriteFloat64(f float64, fmt byte, prec int) {
	w.line = strconv.AppendFloat(w.line, f, fmt, prec, 64)
	w.line = append(w.line, ',')
}

// EndLine finishes the current line. An empty line is written as a
// bare newline.
func (w *Writer) EndLine() (err error) {
	if len(w.line) == 0 {
		w.line = append(w.line, '\n')
	} else {
		w.line[len(w.line)-1] = '\n'
	}
	_, err = w.w.Write(w.line)
	w.line = w.line[:0]
	return
}

// Row writes a complete "key,value" line with the value printed to six
// decimal places.
func (w *Writer) Row(key uint64, value float64) error {
	w.WriteUint64(key)
	w.WriteFloat64(value, 'f', 6)
	return w.EndLine()
}

// NamedRow writes a complete "name,value" line.
func (w *Writer) NamedRow(name string, value float64) error {
	w.WriteString(name)
	w.WriteFloat64(value, 'f', 6)
	return w.EndLine()
}

// Flush flushes all finished lines.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
