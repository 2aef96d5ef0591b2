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
	"github.com/lulzzz/aika/src/aika/ts"
)

// slope is a line anchored at CompressionState.LastArchived, expressed as
// rise-per-second so two slopes can be compared without re-deriving
// elapsed time.
type slope struct {
	valid bool
	value float64
}

func newSlope(anchor ts.Sample, through ts.Sample, throughValue float64) slope {
	dt := through.UTCTime.Sub(anchor.UTCTime)
	if dt <= 0 {
		return slope{}
	}
	return slope{valid: true, value: (throughValue - anchor.Numeric) / dt.Seconds()}
}

func maxSlope(a, b slope) slope {
	if !a.valid {
		return b
	}
	if !b.valid {
		return a
	}
	if a.value >= b.value {
		return a
	}
	return b
}

func minSlope(a, b slope) slope {
	if !a.valid {
		return b
	}
	if !b.valid {
		return a
	}
	if a.value <= b.value {
		return a
	}
	return b
}

// CompressionState is the live per-tag swinging-door state (§3).
type CompressionState struct {
	LastArchived *ts.Sample
	LastReceived *ts.Sample
	SlopeMin     slope
	SlopeMax     slope
}

// Reset clears the state, used on tag create / reconfiguration / explicit
// reinitialization per §3's Lifecycles.
func (s *CompressionState) Reset() {
	*s = CompressionState{}
}

// Process runs the swinging-door algorithm of §4.3 on an exception-passed
// sample, returning the samples the caller must archive in order: none or
// exactly one per call.
func Process(cfg Config, state *CompressionState, discrete bool, incoming ts.Sample) []ts.Sample {
	if discrete {
		return processDiscrete(state, incoming)
	}

	if !cfg.Enabled {
		state.LastArchived = &incoming
		state.LastReceived = nil
		state.SlopeMin, state.SlopeMax = slope{}, slope{}
		return []ts.Sample{incoming}
	}

	if state.LastArchived == nil {
		state.LastArchived = &incoming
		state.LastReceived = nil
		state.SlopeMin, state.SlopeMax = slope{}, slope{}
		return []ts.Sample{incoming}
	}

	qualityChanged := false
	if state.LastReceived != nil {
		qualityChanged = incoming.Quality != state.LastReceived.Quality
	} else {
		qualityChanged = incoming.Quality != state.LastArchived.Quality
	}

	limitAbs := cfg.LimitAbs(state.LastArchived.Numeric)
	sHi := newSlope(*state.LastArchived, incoming, incoming.Numeric+limitAbs)
	sLo := newSlope(*state.LastArchived, incoming, incoming.Numeric-limitAbs)

	if state.LastReceived == nil {
		if qualityChanged {
			// The candidate and the quality-transition point are the same
			// sample here, so there is nothing pending to archive first:
			// archive incoming directly and reopen against the next sample.
			state.LastArchived = &incoming
			state.LastReceived = nil
			state.SlopeMin, state.SlopeMax = slope{}, slope{}
			return []ts.Sample{incoming}
		}
		state.SlopeMin, state.SlopeMax = sLo, sHi
		state.LastReceived = &incoming
		return nil
	}

	newMin := maxSlope(state.SlopeMin, sLo)
	newMax := minSlope(state.SlopeMax, sHi)

	if qualityChanged || (newMin.valid && newMax.valid && newMin.value > newMax.value) {
		return closeDoor(cfg, state, incoming)
	}

	state.SlopeMin, state.SlopeMax = newMin, newMax
	state.LastReceived = &incoming
	return nil
}

// closeDoor archives the pending candidate and reopens the door anchored at
// it, with incoming as the new candidate, recomputing the slope bounds from
// the new anchor to incoming rather than discarding them (§4.3 step 6/7).
func closeDoor(cfg Config, state *CompressionState, incoming ts.Sample) []ts.Sample {
	archived := *state.LastReceived
	state.LastArchived = &archived
	state.LastReceived = &incoming

	limitAbs := cfg.LimitAbs(archived.Numeric)
	sHi := newSlope(archived, incoming, incoming.Numeric+limitAbs)
	sLo := newSlope(archived, incoming, incoming.Numeric-limitAbs)
	state.SlopeMin, state.SlopeMax = sLo, sHi

	return []ts.Sample{archived}
}

// Flush emits the pending candidate, if any, on tag deletion, shutdown, or
// reconfiguration (§4.3 step 8).
func Flush(state *CompressionState) []ts.Sample {
	if state.LastReceived == nil {
		return nil
	}
	pending := *state.LastReceived
	state.LastArchived = &pending
	state.LastReceived = nil
	state.SlopeMin, state.SlopeMax = slope{}, slope{}
	return []ts.Sample{pending}
}

// processDiscrete implements the Text/State "emit on change" degeneration
// described at the end of §4.3.
func processDiscrete(state *CompressionState, incoming ts.Sample) []ts.Sample {
	if state.LastArchived != nil && state.LastArchived.EqualValue(incoming) &&
		state.LastArchived.Quality == incoming.Quality {
		return nil
	}
	state.LastArchived = &incoming
	state.LastReceived = nil
	return []ts.Sample{incoming}
}
