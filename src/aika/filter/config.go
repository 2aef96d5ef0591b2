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

// Package filter implements the two-stage exception/compression filter
// pipeline (§4.2, §4.3) that decides which incoming samples are significant
// enough to retain.
package filter

import "time"

// DeviationKind is how a FilterConfig's Limit is interpreted.
type DeviationKind int8

// Deviation kinds, kept distinct per the Open Question resolution in §9:
// Fraction and Percent are never conflated.
const (
	Absolute DeviationKind = iota
	Fraction
	Percent
)

// Config is shared by ExceptionFilter and CompressionFilter (§3's
// FilterConfig).
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	DeviationKind DeviationKind `yaml:"deviationKind"`
	Limit        float64       `yaml:"limit" validate:"min=0"`
	Window       time.Duration `yaml:"window" validate:"min=1"`
}

// LimitAbs resolves the configured Limit to an absolute deviation bound
// given the anchor value it is measured against, per §4.2 step 7 /
// §4.3 step 3.
func (c Config) LimitAbs(anchor float64) float64 {
	switch c.DeviationKind {
	case Fraction:
		return abs(anchor) * c.Limit
	case Percent:
		return abs(anchor) * c.Limit / 100
	default:
		return c.Limit
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
