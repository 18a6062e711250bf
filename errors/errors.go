// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors implements the error type used across the measurement
// tools. Errors carry a Kind that callers interpret to decide what a
// failure means for a run: setup kinds (NotExist, Unavailable,
// OutOfRange, Compile) are fatal to a tool, Launch failures end a sweep,
// and Invalid marks a local configuration guard that only voids a single
// measurement.
//
// Errors can be chained, attributing one error to another; the full
// chain is printed by Error.
package errors

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/membench/log"
)

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ":\n\t"

// Kind defines the type of error.
type Kind int

const (
	// Other indicates an unknown error.
	Other Kind = iota
	// Invalid indicates that the caller supplied invalid parameters,
	// e.g. more threads than a test size can be split into.
	Invalid
	// NotExist indicates a nonexistent resource, such as a missing
	// kernel source file or kernel entry point.
	NotExist
	// NotSupported indicates an operation the platform cannot perform.
	NotSupported
	// Unavailable indicates that no usable platform or device exists,
	// or that a device context could not be created.
	Unavailable
	// OutOfRange indicates a platform or device selection outside the
	// enumerated list.
	OutOfRange
	// Compile indicates a kernel program that failed to build. The
	// error message carries the compiler diagnostics.
	Compile
	// Launch indicates a kernel that could not be enqueued or whose
	// queue did not drain successfully.
	Launch
	// OOM indicates that a buffer could not be allocated.
	OOM

	maxKind
)

var kinds = map[Kind]string{
	Other:        "unknown error",
	Invalid:      "invalid argument",
	NotExist:     "resource does not exist",
	NotSupported: "operation not supported",
	Unavailable:  "device unavailable",
	OutOfRange:   "selection out of range",
	Compile:      "kernel build failed",
	Launch:       "kernel launch failed",
	OOM:          "out of memory",
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// Error is the standard error type, carrying a kind, a message, and
// potentially an underlying error. Errors should be constructed by
// errors.E.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Message is an optional error message associated with this error.
	Message string
	// Err is the error that caused this error, if any.
	Err error
}

// E constructs a new error from the provided arguments. Arguments are
// interpreted according to their types:
//
//	- Kind: sets the Error's kind
//	- string: sets the Error's message; multiple strings are
//	  separated by a single space
//	- *Error: copies the error and sets the error's cause
//	- error: sets the Error's cause
//
// If a kind is not provided but the cause is an *Error, the new error
// inherits its kind. A cause for which os.IsNotExist is true is given
// kind NotExist.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			copy := *arg
			if len(args) == 1 {
				return &copy
			}
			e.Err = &copy
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, arg)
			return &Error{
				Kind:    Invalid,
				Message: fmt.Sprintf("unknown type %T, value %v in error call", arg, arg),
			}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
	default:
		if e.Kind == Other && os.IsNotExist(e.Err) {
			e.Kind = NotExist
		}
	}
	return e
}

// Recover recovers any error into an *Error. If the passed-in error is
// already an *Error, it is simply returned; otherwise it is wrapped.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if err, ok := err.(*Error); ok {
		return err
	}
	return E(err).(*Error)
}

// Error returns a human readable string describing this error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(&b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return b.String()
	}
	if err, ok := e.Err.(*Error); ok {
		pad(&b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(&b, ": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error so that the standard library's
// errors.Is and errors.As can see through the chain.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is tells whether an error has the specified kind. Errors of kind Other
// defer to their cause.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	for e := Recover(err); e != nil; {
		if e.Kind != Other {
			return e.Kind == kind
		}
		next, ok := e.Err.(*Error)
		if !ok {
			break
		}
		e = next
	}
	return kind == Other
}

// Match tells whether every nonempty field in err1 matches the
// corresponding field in err2, recursing on chained errors. Match is
// designed to aid in testing errors.
func Match(err1, err2 error) bool {
	var (
		e1 = Recover(err1)
		e2 = Recover(err2)
	)
	if e1 == nil || e2 == nil {
		return e1 == e2
	}
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Message != "" && e1.Message != e2.Message {
		return false
	}
	if e1.Err != nil {
		if e2.Err == nil {
			return false
		}
		if _, ok := e1.Err.(*Error); ok {
			return Match(e1.Err, e2.Err)
		}
		return e1.Err.Error() == e2.Err.Error()
	}
	return true
}

// New is synonymous with errors.New, and is provided here so that
// users need only import one errors package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}
