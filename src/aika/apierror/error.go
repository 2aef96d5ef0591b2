// Copyright (c) 2016 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package apierror defines the core's typed error kinds (§7). The core
// returns these instead of throwing/translating to transport status codes;
// the (out of scope) HTTP layer maps Kind to a status code.
package apierror

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the error kinds named in §7.
type Kind int

// Error kinds, exactly as enumerated in spec.md §7.
const (
	Unknown Kind = iota
	Validation
	NotFound
	Conflict
	Unauthorized
	Cancelled
	Unavailable
	Deleted
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "Validation"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case Unauthorized:
		return "Unauthorized"
	case Cancelled:
		return "Cancelled"
	case Unavailable:
		return "Unavailable"
	case Deleted:
		return "Deleted"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the typed result the core returns from every fallible operation.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// New creates an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap attaches a kind and message to an existing cause, preserving it for
// inspection via errors.Unwrap/pkg/errors.Cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	if cause == nil {
		return New(kind, msg)
	}
	return &Error{kind: kind, msg: msg, cause: pkgerrors.WithMessage(cause, msg)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.msg
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error's kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf extracts the Kind from err, returning Unknown if err is nil and
// Internal if err is not (and does not wrap) an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return Internal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MultiError accumulates zero or more errors and reduces them to a single
// error, in the style of m3db/m3x/errors' MultiError: construction with
// NewMultiError, accumulation with Add, and a final reduction with
// FinalError that returns nil if nothing was ever added.
type MultiError struct {
	errs []error
}

// NewMultiError creates an empty MultiError.
func NewMultiError() MultiError {
	return MultiError{}
}

// Add appends err to the accumulator if it is non-nil, and returns the
// receiver so calls can be chained.
func (m MultiError) Add(err error) MultiError {
	if err == nil {
		return m
	}
	m.errs = append(m.errs, err)
	return m
}

// FinalError reduces the accumulated errors to a single error: nil if none
// were added, the sole error if exactly one was added, or a combined error
// listing all messages otherwise. The combined error carries the kind of the
// first accumulated error (as reported by KindOf).
func (m MultiError) FinalError() error {
	switch len(m.errs) {
	case 0:
		return nil
	case 1:
		return m.errs[0]
	}
	kind := KindOf(m.errs[0])
	msg := "multiple errors occurred: "
	for i, err := range m.errs {
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return New(kind, msg)
}

// NumErrors returns how many errors have been accumulated.
func (m MultiError) NumErrors() int {
	return len(m.errs)
}
