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

// Package storage defines the narrow port the core requires of a raw-value
// store (§4.7) and a minimal in-memory implementation of it.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/lulzzz/aika/src/aika/ts"
)

// Adapter is the StorageAdapter port (C7). Every method is cancellable via
// ctx; implementations may be in-memory, disk-backed, or remote.
type Adapter interface {
	// Insert appends samples in time order; duplicate inserts of the same
	// (tagID, UTCTime) are idempotent no-ops.
	Insert(ctx context.Context, tagID uuid.UUID, samples []ts.Sample) error

	// Snapshot returns the most recently inserted sample, if any.
	Snapshot(ctx context.Context, tagID uuid.UUID) (ts.Sample, bool, error)

	// RawRange returns up to limit samples in [t0, t1) ascending by time,
	// plus the nearest sample at-or-before t0 and at-or-after t1 as
	// boundary anchors when they exist, so AggregationEngine can
	// interpolate across a query window's edges. limit <= 0 means
	// unbounded.
	RawRange(ctx context.Context, tagID uuid.UUID, t0, t1 ts.Ticks, limit int) ([]ts.Sample, error)

	// DeleteTagData removes all samples for a tag.
	DeleteTagData(ctx context.Context, tagID uuid.UUID) error
}
