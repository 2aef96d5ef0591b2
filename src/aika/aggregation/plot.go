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

package aggregation

import (
	"sort"
	"time"

	"github.com/lulzzz/aika/src/aika/ts"
)

// isNumericSample reports whether s carries a plottable numeric value: a
// Text-bearing sample (discrete data types) and IEEE-754 NaN/Inf are both
// "non-numeric" for Plot's significance rule.
func isNumericSample(s ts.Sample) bool {
	return s.Text == "" && s.IsFinite()
}

// applyPlot buckets raw into windows of 4*interval and emits the
// significant points of each: first, last, and the minimum and maximum of
// the samples between them, sorted by time and deduplicated (so the
// bucket's overall minimum and maximum are always among them). A bucket
// with no numeric samples emits every sample it contains instead.
func applyPlot(req Request, raw []ts.Sample) []ts.Sample {
	interval := req.resolvedInterval()
	bucketSize := 4 * interval

	// Boundary anchors outside [T0, T1] only feed interpolation at the
	// edges; bucket contents are drawn from the window itself so no
	// output time can fall outside [T0, T1].
	windowed := applyRaw(Request{T0: req.T0, T1: req.T1}, raw)

	var out []ts.Sample
	if s, ok := boundaryAnchor(raw, req.T0.Time()); ok {
		out = append(out, s)
	}

	for _, step := range steps(req.T0, req.T1, bucketSize) {
		lo := step.Time().Add(-bucketSize)
		hi := step.Time()
		bucket := samplesInRange(windowed, lo, hi)
		out = append(out, plotBucket(bucket)...)
	}

	if s, ok := boundaryAnchor(raw, req.T1.Time()); ok {
		out = append(out, s)
	}

	return dedupeSortedByTime(out)
}

// boundaryAnchor synthesizes an interpolated value at at when no raw
// sample falls exactly there but two samples straddle it.
func boundaryAnchor(raw []ts.Sample, at time.Time) (ts.Sample, bool) {
	beforeIdx, afterIdx := bracketIndex(raw, at)
	if beforeIdx == afterIdx {
		return ts.Sample{}, false // either no data, or an exact sample already covers it
	}
	if beforeIdx < 0 || afterIdx >= len(raw) {
		return ts.Sample{}, false
	}
	return interpolateAt(raw, at)
}

func plotBucket(bucket []ts.Sample) []ts.Sample {
	if len(bucket) == 0 {
		return nil
	}

	var numeric []ts.Sample
	for _, s := range bucket {
		if isNumericSample(s) {
			numeric = append(numeric, s)
		}
	}
	if len(numeric) == 0 {
		return append([]ts.Sample(nil), bucket...)
	}

	first, last := numeric[0], numeric[len(numeric)-1]
	interior := numeric
	if len(numeric) > 2 {
		interior = numeric[1 : len(numeric)-1]
	}
	minS, maxS := interior[0], interior[0]
	for _, s := range interior {
		if s.Numeric < minS.Numeric {
			minS = s
		}
		if s.Numeric > maxS.Numeric {
			maxS = s
		}
	}
	return dedupeSortedByTime([]ts.Sample{first, last, minS, maxS})
}

func dedupeSortedByTime(samples []ts.Sample) []ts.Sample {
	if len(samples) == 0 {
		return samples
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].UTCTime.Before(samples[j].UTCTime) })
	out := samples[:1]
	for _, s := range samples[1:] {
		if s.UTCTime.Equal(out[len(out)-1].UTCTime) {
			continue
		}
		out = append(out, s)
	}
	return out
}
