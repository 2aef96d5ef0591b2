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

// Package aggregation is a pure transformation from a bounded raw series to
// a processed series (§4.5). It holds no state and performs no I/O; callers
// (reader.TagDataReader) supply the raw window, including boundary anchors.
package aggregation

import (
	"math"
	"sort"
	"time"

	"github.com/lulzzz/aika/src/aika/ts"
)

// Fn selects the transformation Apply performs.
type Fn int8

// Supported functions (§4.5).
const (
	Raw Fn = iota
	Interval
	Interpolated
	Average
	Minimum
	Maximum
	Plot
)

// Request parameters a single Apply call. Exactly one of Interval or
// PointCount should be set; PointCount takes precedence and is converted
// to an Interval of (T1-T0)/PointCount.
type Request struct {
	Fn         Fn
	T0, T1     ts.Ticks
	Interval   time.Duration
	PointCount int
}

func (r Request) resolvedInterval() time.Duration {
	if r.PointCount > 0 {
		span := r.T1.Sub(r.T0)
		if span <= 0 {
			return time.Second
		}
		return span / time.Duration(r.PointCount)
	}
	if r.T0 == r.T1 {
		return time.Second
	}
	return r.Interval
}

// Apply runs req.Fn over raw, a time-ascending slice that may include
// boundary anchor samples outside [T0, T1] supplied by the caller so
// Interpolated/Plot can synthesize values exactly at the edges.
func Apply(req Request, raw []ts.Sample) []ts.Sample {
	switch req.Fn {
	case Raw:
		return applyRaw(req, raw)
	case Interval:
		return applyInterval(req, raw)
	case Interpolated:
		return applyInterpolated(req, raw)
	case Average:
		return applyBucketed(req, raw, bucketMean)
	case Minimum:
		return applyBucketed(req, raw, bucketMin)
	case Maximum:
		return applyBucketed(req, raw, bucketMax)
	case Plot:
		return applyPlot(req, raw)
	default:
		return nil
	}
}

// applyRaw passes through samples within [T0, T1], truncating to
// PointCount if given. It is idempotent: reapplying to its own output with
// the same window returns the same slice.
func applyRaw(req Request, raw []ts.Sample) []ts.Sample {
	t0, t1 := req.T0.Time(), req.T1.Time()
	out := make([]ts.Sample, 0, len(raw))
	for _, s := range raw {
		if s.UTCTime.Before(t0) || s.UTCTime.After(t1) {
			continue
		}
		out = append(out, s)
	}
	if req.PointCount > 0 && len(out) > req.PointCount {
		out = out[:req.PointCount]
	}
	return out
}

// steps generates t0, t0+interval, ... up to and including t1, always
// closing the final step exactly at t1 even when interval does not evenly
// divide the span (§4.5's synthesized terminal sample).
func steps(t0, t1 ts.Ticks, interval time.Duration) []ts.Ticks {
	if interval <= 0 {
		return nil
	}
	var out []ts.Ticks
	step := t0
	for !step.Time().After(t1.Time()) {
		out = append(out, step)
		step = step.Add(interval)
	}
	if len(out) == 0 || out[len(out)-1] != t1 {
		out = append(out, t1)
	}
	return out
}

// lastAtOrBefore returns the sample with the greatest UTCTime <= at.
func lastAtOrBefore(raw []ts.Sample, at time.Time) (ts.Sample, bool) {
	idx := sort.Search(len(raw), func(i int) bool { return raw[i].UTCTime.After(at) })
	if idx == 0 {
		return ts.Sample{}, false
	}
	return raw[idx-1], true
}

// bracketIndex returns the index of the last sample with UTCTime <= at
// (-1 if none) and of the first sample with UTCTime >= at (len(raw) if
// none).
func bracketIndex(raw []ts.Sample, at time.Time) (beforeIdx, afterIdx int) {
	idx := sort.Search(len(raw), func(i int) bool { return !raw[i].UTCTime.Before(at) })
	if idx < len(raw) && raw[idx].UTCTime.Equal(at) {
		return idx, idx
	}
	return idx - 1, idx
}

func applyInterval(req Request, raw []ts.Sample) []ts.Sample {
	interval := req.resolvedInterval()
	var out []ts.Sample
	for _, step := range steps(req.T0, req.T1, interval) {
		s, ok := lastAtOrBefore(raw, step.Time())
		if !ok {
			continue
		}
		out = append(out, withTime(s, step.Time()))
	}
	return out
}

func applyInterpolated(req Request, raw []ts.Sample) []ts.Sample {
	interval := req.resolvedInterval()
	var out []ts.Sample
	for _, step := range steps(req.T0, req.T1, interval) {
		if s, ok := interpolateAt(raw, step.Time()); ok {
			out = append(out, s)
		}
	}
	return out
}

// interpolateAt performs linear interpolation in (time, numeric) between
// the samples bracketing at. If either neighbor is non-finite, the earlier
// neighbor's value is used with at as the time, per §4.5. A step before the
// raw series's first sample produces no output (no anchor to interpolate
// from); a step after the last sample extrapolates the line through the
// last two samples, which is how a terminal sample at t1 is synthesized
// when the series ends before t1.
func interpolateAt(raw []ts.Sample, at time.Time) (ts.Sample, bool) {
	beforeIdx, afterIdx := bracketIndex(raw, at)
	if beforeIdx == afterIdx && beforeIdx >= 0 {
		return withTime(raw[beforeIdx], at), true
	}
	if beforeIdx < 0 {
		return ts.Sample{}, false
	}
	before := raw[beforeIdx]
	var after ts.Sample
	if afterIdx < len(raw) {
		after = raw[afterIdx]
	} else if beforeIdx > 0 {
		// Extrapolate using the line through the last two samples.
		after = before
		before = raw[beforeIdx-1]
	} else {
		return withTime(raw[beforeIdx], at), true
	}

	if !before.IsFinite() || !after.IsFinite() {
		return withTime(raw[beforeIdx], at), true
	}
	dt := after.UTCTime.Sub(before.UTCTime).Seconds()
	if dt == 0 {
		return withTime(raw[beforeIdx], at), true
	}
	frac := at.Sub(before.UTCTime).Seconds() / dt
	value := before.Numeric + frac*(after.Numeric-before.Numeric)
	return ts.Sample{
		UTCTime: at,
		Numeric: value,
		Quality: ts.Worst(before.Quality, after.Quality),
		Units:   before.Units,
	}, true
}

func withTime(s ts.Sample, at time.Time) ts.Sample {
	s.UTCTime = at
	return s
}

type bucketFn func(bucket []ts.Sample) (value float64, quality ts.Quality, ok bool)

func bucketMean(bucket []ts.Sample) (float64, ts.Quality, bool) {
	sum, n := 0.0, 0
	q := ts.Good
	for _, s := range bucket {
		if !s.IsFinite() {
			continue
		}
		sum += s.Numeric
		n++
		q = ts.Worst(q, s.Quality)
	}
	if n == 0 {
		if len(bucket) > 0 {
			return math.NaN(), worstOf(bucket), true
		}
		return 0, ts.Bad, false
	}
	return sum / float64(n), q, true
}

func bucketMin(bucket []ts.Sample) (float64, ts.Quality, bool) {
	return bucketExtreme(bucket, func(a, b float64) bool { return a < b })
}

func bucketMax(bucket []ts.Sample) (float64, ts.Quality, bool) {
	return bucketExtreme(bucket, func(a, b float64) bool { return a > b })
}

func bucketExtreme(bucket []ts.Sample, better func(a, b float64) bool) (float64, ts.Quality, bool) {
	best := 0.0
	q := ts.Good
	found := false
	for _, s := range bucket {
		if !s.IsFinite() {
			continue
		}
		if !found || better(s.Numeric, best) {
			best = s.Numeric
			found = true
		}
		q = ts.Worst(q, s.Quality)
	}
	if !found {
		if len(bucket) > 0 {
			return math.NaN(), worstOf(bucket), true
		}
		return 0, ts.Bad, false
	}
	return best, q, true
}

func worstOf(bucket []ts.Sample) ts.Quality {
	q := ts.Good
	for _, s := range bucket {
		q = ts.Worst(q, s.Quality)
	}
	return q
}

// applyBucketed computes Average/Minimum/Maximum over half-open buckets
// (step-interval, step]. An empty bucket carries forward the previous
// aggregate's value at the new step time, if one exists; otherwise it is
// skipped.
func applyBucketed(req Request, raw []ts.Sample, fn bucketFn) []ts.Sample {
	interval := req.resolvedInterval()
	var out []ts.Sample
	var carry *ts.Sample
	for _, step := range steps(req.T0, req.T1, interval) {
		lo := step.Time().Add(-interval)
		hi := step.Time()
		bucket := samplesInRange(raw, lo, hi)
		value, quality, ok := fn(bucket)
		if !ok {
			if carry != nil {
				out = append(out, withTime(*carry, hi))
			}
			continue
		}
		s := ts.Sample{UTCTime: hi, Numeric: value, Quality: quality}
		out = append(out, s)
		carry = &s
	}
	return out
}

// samplesInRange returns samples with lo < UTCTime <= hi.
func samplesInRange(raw []ts.Sample, lo, hi time.Time) []ts.Sample {
	start := sort.Search(len(raw), func(i int) bool { return raw[i].UTCTime.After(lo) })
	end := sort.Search(len(raw), func(i int) bool { return raw[i].UTCTime.After(hi) })
	if start >= end {
		return nil
	}
	return raw[start:end]
}
