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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lulzzz/aika/src/aika/ts"
)

func sampleAt(secs int, v float64) ts.Sample {
	return ts.NewNumeric(time.Unix(int64(secs), 0), v, ts.Good, "")
}

// TestExceptionAbsoluteBand is scenario 1 from spec.md §8.
func TestExceptionAbsoluteBand(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 0.5, Window: time.Hour}
	state := &ExceptionState{}

	inputs := []ts.Sample{
		sampleAt(0, 10.0),
		sampleAt(1, 10.2),
		sampleAt(2, 10.6),
		sampleAt(3, 10.1),
	}
	wantDisposition := []Disposition{Pass, Drop, Pass, Drop}
	var passed []float64
	for i, in := range inputs {
		res := Process(cfg, state, false, in)
		require.Equal(t, wantDisposition[i], res.Disposition, "sample %d", i)
		if res.Disposition == Pass {
			passed = append(passed, in.Numeric)
		}
	}
	assert.Equal(t, []float64{10.0, 10.6}, passed)
}

func TestExceptionFirstSampleAlwaysPasses(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 0.1, Window: time.Hour}
	state := &ExceptionState{}
	res := Process(cfg, state, false, sampleAt(0, 1.0))
	assert.Equal(t, Pass, res.Disposition)
	assert.NotNil(t, state.LastException)
}

func TestExceptionDisabledAlwaysPasses(t *testing.T) {
	cfg := Config{Enabled: false}
	state := &ExceptionState{LastException: ptr(sampleAt(0, 1.0))}
	res := Process(cfg, state, false, sampleAt(1, 1.0))
	assert.Equal(t, Pass, res.Disposition)
}

func TestExceptionOutOfOrderDropped(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 0, Window: time.Hour}
	state := &ExceptionState{LastException: ptr(sampleAt(5, 1.0))}
	res := Process(cfg, state, false, sampleAt(4, 2.0))
	assert.Equal(t, Drop, res.Disposition)
	assert.Equal(t, OutOfOrder, res.Reason)

	res = Process(cfg, state, false, sampleAt(5, 2.0))
	assert.Equal(t, Drop, res.Disposition)
	assert.Equal(t, OutOfOrder, res.Reason)
}

func TestExceptionWindowForcesHeartbeat(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 100, Window: time.Second}
	state := &ExceptionState{LastException: ptr(sampleAt(0, 1.0))}
	res := Process(cfg, state, false, sampleAt(1, 1.0))
	assert.Equal(t, Pass, res.Disposition)
}

func TestExceptionQualityTransitionPasses(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 100, Window: time.Hour}
	p := ts.NewNumeric(time.Unix(0, 0), 1.0, ts.Good, "")
	state := &ExceptionState{LastException: &p}
	in := ts.NewNumeric(time.Unix(1, 0), 1.0, ts.Uncertain, "")
	res := Process(cfg, state, false, in)
	assert.Equal(t, Pass, res.Disposition)
}

func TestExceptionDiscreteEmitsOnChangeOnly(t *testing.T) {
	cfg := Config{Enabled: true, Window: time.Hour}
	state := &ExceptionState{}
	on := ts.NewText(time.Unix(0, 0), "OFF", ts.Good, "")
	state.LastException = &on

	same := ts.NewText(time.Unix(1, 0), "OFF", ts.Good, "")
	res := Process(cfg, state, true, same)
	assert.Equal(t, Drop, res.Disposition)

	changed := ts.NewText(time.Unix(2, 0), "ON", ts.Good, "")
	res = Process(cfg, state, true, changed)
	assert.Equal(t, Pass, res.Disposition)
}

func TestExceptionNonFiniteForcesPass(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 1000, Window: time.Hour}
	state := &ExceptionState{LastException: ptr(sampleAt(0, 1.0))}
	nan := ts.NewNumeric(time.Unix(1, 0), nan(), ts.Good, "")
	res := Process(cfg, state, false, nan)
	assert.Equal(t, Pass, res.Disposition)
}

// TestExceptionMonotoneInLimit is the universal property from §8: increasing
// cfg.Limit never increases the number of Pass outputs over the same input.
func TestExceptionMonotoneInLimit(t *testing.T) {
	inputs := []ts.Sample{
		sampleAt(0, 10.0),
		sampleAt(1, 10.1),
		sampleAt(2, 10.3),
		sampleAt(3, 10.9),
		sampleAt(4, 11.5),
		sampleAt(5, 9.0),
	}
	countPasses := func(limit float64) int {
		cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: limit, Window: time.Hour}
		state := &ExceptionState{}
		n := 0
		for _, in := range inputs {
			if Process(cfg, state, false, in).Disposition == Pass {
				n++
			}
		}
		return n
	}

	limits := []float64{0, 0.1, 0.25, 0.5, 1, 2, 5}
	prev := countPasses(limits[0])
	for _, l := range limits[1:] {
		cur := countPasses(l)
		assert.LessOrEqualf(t, cur, prev, "limit=%v", l)
		prev = cur
	}
}

func ptr(s ts.Sample) *ts.Sample { return &s }

func nan() float64 {
	var zero float64
	return zero / zero
}
