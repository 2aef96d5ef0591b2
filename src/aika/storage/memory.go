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

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/lulzzz/aika/src/aika/ts"
)

type tagSeries struct {
	mu      sync.RWMutex
	samples []ts.Sample // ascending by UTCTime
}

// Memory is an in-memory Adapter, the reference double the core's tests
// exercise in place of a real persistence backend.
type Memory struct {
	mu     sync.RWMutex
	series map[uuid.UUID]*tagSeries
}

// NewMemory returns an empty in-memory Adapter.
func NewMemory() *Memory {
	return &Memory{series: make(map[uuid.UUID]*tagSeries)}
}

func (m *Memory) seriesFor(tagID uuid.UUID) *tagSeries {
	m.mu.RLock()
	s, ok := m.series[tagID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.series[tagID]; ok {
		return s
	}
	s = &tagSeries{}
	m.series[tagID] = s
	return s
}

// Insert appends samples in time order, silently skipping any sample whose
// (tagID, UTCTime) already exists.
func (m *Memory) Insert(ctx context.Context, tagID uuid.UUID, samples []ts.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	s := m.seriesFor(tagID)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range samples {
		idx := sort.Search(len(s.samples), func(i int) bool {
			return !s.samples[i].UTCTime.Before(sample.UTCTime)
		})
		if idx < len(s.samples) && s.samples[idx].UTCTime.Equal(sample.UTCTime) {
			continue // idempotent duplicate
		}
		s.samples = append(s.samples, ts.Sample{})
		copy(s.samples[idx+1:], s.samples[idx:])
		s.samples[idx] = sample
	}
	return nil
}

// Snapshot returns the most recent sample for a tag.
func (m *Memory) Snapshot(ctx context.Context, tagID uuid.UUID) (ts.Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return ts.Sample{}, false, err
	}
	s := m.seriesFor(tagID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return ts.Sample{}, false, nil
	}
	return s.samples[len(s.samples)-1], true, nil
}

// RawRange returns samples in [t0, t1) plus boundary anchors, per the
// Adapter contract.
func (m *Memory) RawRange(ctx context.Context, tagID uuid.UUID, t0, t1 ts.Ticks, limit int) ([]ts.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := m.seriesFor(tagID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	t0Time, t1Time := t0.Time(), t1.Time()

	lo := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].UTCTime.Before(t0Time)
	})
	hi := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].UTCTime.Before(t1Time)
	})

	var out []ts.Sample
	if before := lo - 1; before >= 0 {
		out = append(out, s.samples[before])
	}
	inRange := s.samples[lo:hi]
	if limit > 0 && len(inRange) > limit {
		inRange = inRange[:limit]
	}
	out = append(out, inRange...)
	if hi < len(s.samples) {
		out = append(out, s.samples[hi])
	}
	return out, nil
}

// DeleteTagData drops all samples for a tag.
func (m *Memory) DeleteTagData(ctx context.Context, tagID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.series, tagID)
	m.mu.Unlock()
	return nil
}
