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

// Package reader is the TagDataReader (C8): a thin composition of
// StorageAdapter.RawRange and the AggregationEngine.
package reader

import (
	"context"

	"github.com/lulzzz/aika/src/aika/aggregation"
	"github.com/lulzzz/aika/src/aika/apierror"
	"github.com/lulzzz/aika/src/aika/storage"
	"github.com/lulzzz/aika/src/aika/tag"
	"github.com/lulzzz/aika/src/aika/ts"
)

// Reader composes a tag.Registry (for name resolution and read
// authorization) with a storage.Adapter and the aggregation engine.
type Reader struct {
	registry *tag.Registry
	adapter  storage.Adapter
}

// NewReader returns a Reader over registry/adapter.
func NewReader(registry *tag.Registry, adapter storage.Adapter) *Reader {
	return &Reader{registry: registry, adapter: adapter}
}

func (r *Reader) resolve(principal tag.Principal, nameOrID string) (*tag.TagDefinition, error) {
	def, ok := r.registry.Resolve(nameOrID)
	if !ok {
		return nil, apierror.New(apierror.NotFound, "tag not found: "+nameOrID)
	}
	if !r.registry.AuthorizeRead(principal, def.ID) {
		return nil, apierror.New(apierror.Unauthorized, "not authorized to read tag: "+nameOrID)
	}
	return def, nil
}

// ReadRaw returns the raw archive series in [t0, t1], truncated to
// point_count if req.PointCount > 0 (§4.8).
func (r *Reader) ReadRaw(ctx context.Context, principal tag.Principal, nameOrID string, req aggregation.Request) ([]ts.Sample, error) {
	def, err := r.resolve(principal, nameOrID)
	if err != nil {
		return nil, err
	}

	raw, err := r.adapter.RawRange(ctx, def.ID, req.T0, req.T1, 0)
	if err != nil {
		return nil, apierror.Wrap(apierror.Unavailable, err, "raw_range failed")
	}

	out := aggregation.Apply(aggregation.Request{Fn: aggregation.Raw, T0: req.T0, T1: req.T1, PointCount: req.PointCount}, raw)
	return out, nil
}

// ReadProcessed runs req.Fn over a raw range wide enough to cover boundary
// anchors at req.T0/req.T1, per §4.8.
func (r *Reader) ReadProcessed(ctx context.Context, principal tag.Principal, nameOrID string, req aggregation.Request) ([]ts.Sample, error) {
	def, err := r.resolve(principal, nameOrID)
	if err != nil {
		return nil, err
	}

	fn := req.Fn
	if def.DataType.IsDiscrete() && fn != aggregation.Raw {
		fn = aggregation.Interval
	}

	raw, err := r.adapter.RawRange(ctx, def.ID, req.T0, req.T1, 0)
	if err != nil {
		return nil, apierror.Wrap(apierror.Unavailable, err, "raw_range failed")
	}

	out := aggregation.Apply(aggregation.Request{
		Fn:         fn,
		T0:         req.T0,
		T1:         req.T1,
		Interval:   req.Interval,
		PointCount: req.PointCount,
	}, raw)
	return out, nil
}
