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

// Package pipeline is the WritePipeline (C4): a per-tag serial orchestrator
// composing the exception and compression filters, the live snapshot, the
// subscription hub, and the storage adapter.
package pipeline

import (
	"time"

	"github.com/lulzzz/aika/src/aika/apierror"
	"github.com/lulzzz/aika/src/aika/ts"
)

// Disposition is the per-sample verdict reported in a WriteSummary (§7).
type Disposition int8

// Dispositions, exactly as enumerated in §7.
const (
	Accepted Disposition = iota
	DroppedByException
	DroppedByCompression
	Rejected
)

func (d Disposition) String() string {
	switch d {
	case Accepted:
		return "Accepted"
	case DroppedByException:
		return "DroppedByException"
	case DroppedByCompression:
		return "DroppedByCompression"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// SampleNote is one input sample's disposition, in input order.
type SampleNote struct {
	Sample      ts.Sample
	Disposition Disposition
	Reason      string
}

// WriteSummary is the result of WriteSnapshot (§4.4, §7).
type WriteSummary struct {
	Success  bool
	Count    int
	Earliest time.Time
	Latest   time.Time
	Notes    []SampleNote

	rejections apierror.MultiError
}

func (s *WriteSummary) record(sample ts.Sample, disposition Disposition, reason string) {
	s.Notes = append(s.Notes, SampleNote{Sample: sample, Disposition: disposition, Reason: reason})
	if disposition == Rejected {
		s.rejections = s.rejections.Add(apierror.New(apierror.Validation, reason))
	}
	if disposition != Accepted {
		return
	}
	s.Count++
	if s.Earliest.IsZero() || sample.UTCTime.Before(s.Earliest) {
		s.Earliest = sample.UTCTime
	}
	if s.Latest.IsZero() || sample.UTCTime.After(s.Latest) {
		s.Latest = sample.UTCTime
	}
}

// RejectionError reduces every Rejected sample's reason to a single error,
// nil if the batch had none. It never replaces WriteSnapshot's own return
// error: a batch with some rejected samples and some accepted ones still
// reports Success, since rejection is per-sample and non-fatal to the call.
func (s *WriteSummary) RejectionError() error {
	return s.rejections.FinalError()
}
