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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lulzzz/aika/src/aika/ts"
)

func runCompression(t *testing.T, cfg Config, inputs []ts.Sample) []ts.Sample {
	t.Helper()
	state := &CompressionState{}
	var archived []ts.Sample
	for _, in := range inputs {
		archived = append(archived, Process(cfg, state, false, in)...)
	}
	archived = append(archived, Flush(state)...)
	return archived
}

func TestCompressionDisabledPassesEverythingThrough(t *testing.T) {
	cfg := Config{Enabled: false}
	inputs := []ts.Sample{sampleAt(0, 1), sampleAt(1, 2), sampleAt(2, 3)}
	archived := runCompression(t, cfg, inputs)
	require.Len(t, archived, 3)
	for i, a := range archived {
		assert.Equal(t, inputs[i].Numeric, a.Numeric)
	}
}

func TestCompressionFirstSampleAlwaysArchived(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 1, Window: time.Hour}
	state := &CompressionState{}
	out := Process(cfg, state, false, sampleAt(0, 42))
	require.Len(t, out, 1)
	assert.Equal(t, 42.0, out[0].Numeric)
}

// TestCompressionWithholdsWithinBand is a straight line through the anchor:
// every candidate lies exactly on it, so nothing archives until Flush emits
// the final pending candidate.
func TestCompressionWithholdsWithinBand(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 0.5, Window: time.Hour}
	inputs := []ts.Sample{
		sampleAt(0, 0),
		sampleAt(1, 1),
		sampleAt(2, 2),
		sampleAt(3, 3),
	}
	archived := runCompression(t, cfg, inputs)
	// Only the anchor (t=0) and the final flushed candidate (t=3) are kept;
	// t=1 and t=2 are exactly reconstructible from the line between them.
	require.Len(t, archived, 2)
	assert.Equal(t, 0.0, archived[0].Numeric)
	assert.Equal(t, 3.0, archived[1].Numeric)
}

// TestCompressionOutlierClosesDoor feeds a candidate far enough off the
// established trend that the swinging door's min/max slopes cross, forcing
// the pending candidate to archive before the outlier is considered.
func TestCompressionOutlierClosesDoor(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 0.5, Window: time.Hour}
	state := &CompressionState{}

	require.Len(t, Process(cfg, state, false, sampleAt(0, 0)), 1) // anchor
	require.Len(t, Process(cfg, state, false, sampleAt(1, 1)), 0) // candidate, within band
	out := Process(cfg, state, false, sampleAt(2, 100))          // outlier: door must close
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].Numeric, "the withheld candidate at t=1 archives, not the outlier")

	// the outlier becomes the new pending candidate until flushed.
	flushed := Flush(state)
	require.Len(t, flushed, 1)
	assert.Equal(t, 100.0, flushed[0].Numeric)
}

func TestCompressionQualityChangeForcesArchive(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 1000, Window: time.Hour}
	state := &CompressionState{}
	require.Len(t, Process(cfg, state, false, sampleAt(0, 1)), 1)

	uncertain := ts.NewNumeric(time.Unix(1, 0), 1, ts.Uncertain, "")
	out := Process(cfg, state, false, uncertain)
	require.Len(t, out, 1, "quality transition on the first candidate archives it directly")
	assert.Equal(t, 1.0, out[0].Numeric)
}

func TestCompressionDiscreteEmitsOnChangeOnly(t *testing.T) {
	cfg := Config{Enabled: true, Window: time.Hour}
	state := &CompressionState{}
	on := ts.NewText(time.Unix(0, 0), "OFF", ts.Good, "")
	require.Len(t, Process(cfg, state, true, on), 1)

	same := ts.NewText(time.Unix(1, 0), "OFF", ts.Good, "")
	assert.Len(t, Process(cfg, state, true, same), 0)

	changed := ts.NewText(time.Unix(2, 0), "ON", ts.Good, "")
	out := Process(cfg, state, true, changed)
	require.Len(t, out, 1)
	assert.Equal(t, "ON", out[0].Text)
}

// TestCompressionArchiveTimesStrictlyIncreasing is a universal property from
// §8: for any tag, archived sample times are strictly increasing.
func TestCompressionArchiveTimesStrictlyIncreasing(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 1, Window: time.Hour}
	inputs := []ts.Sample{
		sampleAt(0, 0), sampleAt(1, 1), sampleAt(2, 2), sampleAt(3, 3), sampleAt(4, 3),
		sampleAt(5, 10), sampleAt(6, 10), sampleAt(7, -5), sampleAt(8, -5), sampleAt(9, -5),
	}
	archived := runCompression(t, cfg, inputs)
	require.NotEmpty(t, archived)
	for i := 1; i < len(archived); i++ {
		assert.Truef(t, archived[i].UTCTime.After(archived[i-1].UTCTime),
			"archive[%d]=%v not after archive[%d]=%v", i, archived[i].UTCTime, i-1, archived[i-1].UTCTime)
	}
}

// TestCompressionReconstructionBound is the universal property from §8: the
// piecewise-linear interpolation through the emitted archive series is
// within limit_abs of every input sample fed to the filter.
func TestCompressionReconstructionBound(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 1, Window: time.Hour}
	inputs := []ts.Sample{
		sampleAt(0, 0), sampleAt(1, 1), sampleAt(2, 2), sampleAt(3, 3), sampleAt(4, 3),
		sampleAt(5, 10), sampleAt(6, 10.5), sampleAt(7, 11), sampleAt(8, -5), sampleAt(9, -5.2),
		sampleAt(10, -4.8), sampleAt(11, -5),
	}
	archived := runCompression(t, cfg, inputs)
	require.GreaterOrEqual(t, len(archived), 2)

	const eps = 1e-9
	for _, in := range inputs {
		interp, ok := interpolate(archived, in.UTCTime)
		require.True(t, ok, "no bracket for input at %v", in.UTCTime)
		limitAbs := cfg.Limit
		assert.LessOrEqualf(t, math.Abs(interp-in.Numeric), limitAbs+eps,
			"input at %v (%v) not within limit of reconstruction (%v)", in.UTCTime, in.Numeric, interp)
	}
}

// TestCompressionBackToBackDoorClosuresReseedSlope feeds two outliers in a
// row: the door must close and re-seed its slope bounds from the new anchor
// to the second outlier, rather than reopening unconstrained, so the second
// outlier's predecessor still archives instead of being silently dropped.
func TestCompressionBackToBackDoorClosuresReseedSlope(t *testing.T) {
	cfg := Config{Enabled: true, DeviationKind: Absolute, Limit: 1, Window: time.Hour}
	inputs := []ts.Sample{
		sampleAt(0, 0),
		sampleAt(1, 0),
		sampleAt(2, 100),
		sampleAt(3, 5000),
	}
	archived := runCompression(t, cfg, inputs)

	const eps = 1e-9
	for _, in := range inputs {
		interp, ok := interpolate(archived, in.UTCTime)
		require.True(t, ok, "no bracket for input at %v", in.UTCTime)
		assert.LessOrEqualf(t, math.Abs(interp-in.Numeric), cfg.Limit+eps,
			"input at %v (%v) not within limit of reconstruction (%v)", in.UTCTime, in.Numeric, interp)
	}
}

// interpolate evaluates the piecewise-linear curve through archived at t,
// clamping to the nearest endpoint outside the archived span.
func interpolate(archived []ts.Sample, t time.Time) (float64, bool) {
	if len(archived) == 0 {
		return 0, false
	}
	if !t.After(archived[0].UTCTime) {
		return archived[0].Numeric, true
	}
	last := archived[len(archived)-1]
	if !t.Before(last.UTCTime) {
		return last.Numeric, true
	}
	for i := 1; i < len(archived); i++ {
		a, b := archived[i-1], archived[i]
		if !t.After(b.UTCTime) {
			dt := b.UTCTime.Sub(a.UTCTime).Seconds()
			if dt <= 0 {
				return a.Numeric, true
			}
			frac := t.Sub(a.UTCTime).Seconds() / dt
			return a.Numeric + frac*(b.Numeric-a.Numeric), true
		}
	}
	return 0, false
}
