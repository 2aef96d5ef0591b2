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

// Package timeparse implements the §6 time/duration grammar: absolute
// ISO-8601, numeric unix-ms, relative "* [+-] <n>[unit]" expressions, and
// the "<n><unit>" / "[d.]hh:mm:ss[.fff]" duration grammars used for
// sample-interval and window fields.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lulzzz/aika/src/aika/apierror"
)

// unitDurations maps the grammar's unit suffixes to their duration, with
// 1y = 365d exactly as §6 specifies.
var unitDurations = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"y":  365 * 24 * time.Hour,
}

var termPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)(ms|s|m|h|d|y)`)

var clockPattern = regexp.MustCompile(`^(?:([0-9]+)\.)?([0-9]{1,2}):([0-9]{2}):([0-9]{2})(?:\.([0-9]{1,3}))?$`)

// ParseDuration parses either the "<n>[ms|s|m|h|d|y]" grammar (one or more
// concatenated terms, e.g. "1h30m", fractional values allowed, e.g.
// "1.5h") or the "[d.]hh:mm:ss[.fff]" clock grammar. Both are
// case-insensitive and whitespace-insensitive.
func ParseDuration(expr string) (time.Duration, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(expr), ""))
	if normalized == "" {
		return 0, apierror.New(apierror.Validation, "empty duration expression")
	}
	if strings.Contains(normalized, ":") {
		return parseClockDuration(normalized)
	}
	return parseTermDuration(normalized)
}

func parseTermDuration(normalized string) (time.Duration, error) {
	matches := termPattern.FindAllStringSubmatchIndex(normalized, -1)
	if len(matches) == 0 {
		return 0, apierror.New(apierror.Validation, "malformed duration expression: "+normalized)
	}

	var total time.Duration
	cursor := 0
	for _, m := range matches {
		if m[0] != cursor {
			return 0, apierror.New(apierror.Validation, "malformed duration expression: "+normalized)
		}
		n, err := strconv.ParseFloat(normalized[m[2]:m[3]], 64)
		if err != nil {
			return 0, apierror.Wrap(apierror.Validation, err, "malformed duration magnitude")
		}
		unit := normalized[m[4]:m[5]]
		total += time.Duration(n * float64(unitDurations[unit]))
		cursor = m[1]
	}
	if cursor != len(normalized) {
		return 0, apierror.New(apierror.Validation, "malformed duration expression: "+normalized)
	}
	return total, nil
}

func parseClockDuration(normalized string) (time.Duration, error) {
	m := clockPattern.FindStringSubmatch(normalized)
	if m == nil {
		return 0, apierror.New(apierror.Validation, "malformed duration expression: "+normalized)
	}

	var days, millis int64
	var err error
	if m[1] != "" {
		if days, err = strconv.ParseInt(m[1], 10, 64); err != nil {
			return 0, apierror.Wrap(apierror.Validation, err, "malformed day component")
		}
	}
	hours, _ := strconv.ParseInt(m[2], 10, 64)
	minutes, _ := strconv.ParseInt(m[3], 10, 64)
	seconds, _ := strconv.ParseInt(m[4], 10, 64)
	if m[5] != "" {
		fracDigits := m[5] + strings.Repeat("0", 3-len(m[5]))
		if millis, err = strconv.ParseInt(fracDigits, 10, 64); err != nil {
			return 0, apierror.Wrap(apierror.Validation, err, "malformed fractional-second component")
		}
	}

	total := time.Duration(days) * 24 * time.Hour
	total += time.Duration(hours) * time.Hour
	total += time.Duration(minutes) * time.Minute
	total += time.Duration(seconds) * time.Second
	total += time.Duration(millis) * time.Millisecond
	return total, nil
}
