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

package timeparse

import (
	"strconv"
	"strings"
	"time"

	"github.com/lulzzz/aika/src/aika/apierror"
)

// ParseTime resolves a time field per §6: absolute ISO-8601 UTC, numeric
// unix-ms, or a relative "* [+-] <n>[unit]" expression anchored at now.
func ParseTime(expr string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return time.Time{}, apierror.New(apierror.Validation, "empty time expression")
	}

	normalized := strings.Join(strings.Fields(strings.ToLower(raw)), "")
	if strings.HasPrefix(normalized, "*") {
		return parseRelative(normalized, now)
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, apierror.New(apierror.Validation, "unrecognized time expression: "+expr)
}

func parseRelative(normalized string, now time.Time) (time.Time, error) {
	rest := normalized[1:]
	if rest == "" {
		return now.UTC(), nil
	}

	sign := 1.0
	switch rest[0] {
	case '+':
		rest = rest[1:]
	case '-':
		sign = -1.0
		rest = rest[1:]
	default:
		return time.Time{}, apierror.New(apierror.Validation, "relative time expression missing +/- sign: "+normalized)
	}

	dur, err := ParseDuration(rest)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(time.Duration(sign * float64(dur))).UTC(), nil
}
