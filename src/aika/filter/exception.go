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

package filter

import (
	"math"

	"github.com/lulzzz/aika/src/aika/ts"
)

// Disposition is the verdict an ExceptionFilter or CompressionFilter reaches
// about a sample.
type Disposition int8

// Dispositions.
const (
	Pass Disposition = iota
	Drop
)

// DropReason explains a Drop disposition, surfaced in WriteSummary (§7).
type DropReason int8

// Drop reasons.
const (
	NoDropReason DropReason = iota
	OutOfOrder
	WithinBand
)

func (r DropReason) String() string {
	switch r {
	case OutOfOrder:
		return "OutOfOrder"
	case WithinBand:
		return "WithinBand"
	default:
		return "None"
	}
}

// ExceptionResult is the outcome of ExceptionFilter.Process.
type ExceptionResult struct {
	Disposition Disposition
	Reason      DropReason
}

// ExceptionState is the live per-tag state of the exception filter (§3).
type ExceptionState struct {
	LastException *ts.Sample
}

// Process is the stateless significance gate described in §4.2: a pure
// function over an explicit state pointer rather than an object holding
// hidden state, so it can be driven directly from tests. discrete selects
// the Text/State "emit on change" rule of step 6; it is passed in rather
// than derived from a tag.DataType to avoid an import cycle (tag imports
// filter for FilterConfig, not the other way around).
//
// Process runs the exception algorithm of §4.2 on incoming, given cfg and
// the tag's live state, mutating state.LastException on Pass.
func Process(cfg Config, state *ExceptionState, discrete bool, incoming ts.Sample) ExceptionResult {
	if !cfg.Enabled {
		state.LastException = &incoming
		return ExceptionResult{Disposition: Pass}
	}

	p := state.LastException
	if p == nil {
		state.LastException = &incoming
		return ExceptionResult{Disposition: Pass}
	}

	if !incoming.UTCTime.After(p.UTCTime) {
		return ExceptionResult{Disposition: Drop, Reason: OutOfOrder}
	}

	if incoming.UTCTime.Sub(p.UTCTime) >= cfg.Window {
		state.LastException = &incoming
		return ExceptionResult{Disposition: Pass}
	}

	if incoming.Quality != p.Quality {
		state.LastException = &incoming
		return ExceptionResult{Disposition: Pass}
	}

	if discrete {
		if !incoming.EqualValue(*p) {
			state.LastException = &incoming
			return ExceptionResult{Disposition: Pass}
		}
		return ExceptionResult{Disposition: Drop, Reason: WithinBand}
	}

	// Non-finite operands always force visibility of the transition.
	if !incoming.IsFinite() || !p.IsFinite() {
		state.LastException = &incoming
		return ExceptionResult{Disposition: Pass}
	}

	limitAbs := cfg.LimitAbs(p.Numeric)
	if math.Abs(incoming.Numeric-p.Numeric) > limitAbs {
		state.LastException = &incoming
		return ExceptionResult{Disposition: Pass}
	}
	return ExceptionResult{Disposition: Drop, Reason: WithinBand}
}
