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

// Package ts defines the historian's value types: samples, quality, and the
// data types a tag can carry.
package ts

import (
	"math"
	"time"
)

// Quality is the ordered confidence level of a Sample. Bad < Uncertain < Good.
type Quality int8

// Quality values, ordered so Worst(a, b) is a plain min().
const (
	Bad Quality = iota
	Uncertain
	Good
)

// String returns a human readable quality name.
func (q Quality) String() string {
	switch q {
	case Bad:
		return "Bad"
	case Uncertain:
		return "Uncertain"
	case Good:
		return "Good"
	default:
		return "Unknown"
	}
}

// Worst returns the lower (worse) of two qualities, used when combining
// inputs into a derived sample (aggregation, filtering).
func Worst(a, b Quality) Quality {
	if a < b {
		return a
	}
	return b
}

// DataType is the kind of value a tag carries.
type DataType int8

// Supported data types.
const (
	FloatingPoint DataType = iota
	Integer
	Text
	State
)

// IsDiscrete reports whether the data type changes exception/compression
// semantics to "emit on change" rather than deviation-banding (§4.2, §4.3).
func (dt DataType) IsDiscrete() bool {
	return dt == Text || dt == State
}

// Sample is an immutable point-in-time value of a tag (spec's TagValue).
type Sample struct {
	UTCTime time.Time
	Numeric float64
	Text    string
	Quality Quality
	Units   string
}

// NewNumeric builds a numeric sample.
func NewNumeric(t time.Time, v float64, q Quality, units string) Sample {
	return Sample{UTCTime: t.UTC(), Numeric: v, Quality: q, Units: units}
}

// NewText builds a text/state sample. Numeric is left NaN; State-typed tags
// additionally encode their current value through Text (the state name).
func NewText(t time.Time, text string, q Quality, units string) Sample {
	return Sample{UTCTime: t.UTC(), Numeric: math.NaN(), Text: text, Quality: q, Units: units}
}

// EqualValue reports whether two samples carry the same value, using exact
// bit-pattern comparison for non-finite numerics per §4.2.
func (s Sample) EqualValue(o Sample) bool {
	if s.Text != o.Text {
		return false
	}
	return equalBits(s.Numeric, o.Numeric)
}

func equalBits(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

// IsFinite reports whether Numeric is a finite IEEE-754 value (not NaN or
// +/-Inf).
func (s Sample) IsFinite() bool {
	return !math.IsNaN(s.Numeric) && !math.IsInf(s.Numeric, 0)
}

// Ticks converts a time.Time to the 100-ns tick resolution used internally
// by the aggregation engine to match persisted time formats (§4.5).
type Ticks int64

// ToTicks converts t to 100-ns ticks since the Unix epoch.
func ToTicks(t time.Time) Ticks {
	return Ticks(t.UnixNano() / 100)
}

// Time converts ticks back to a UTC time.Time.
func (t Ticks) Time() time.Time {
	return time.Unix(0, int64(t)*100).UTC()
}

// Add returns t advanced by d.
func (t Ticks) Add(d time.Duration) Ticks {
	return t + Ticks(d.Nanoseconds()/100)
}

// Sub returns the duration between t and o (t - o).
func (t Ticks) Sub(o Ticks) time.Duration {
	return time.Duration((int64(t) - int64(o)) * 100)
}
