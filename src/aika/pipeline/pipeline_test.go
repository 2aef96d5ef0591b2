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

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lulzzz/aika/src/aika/apierror"
	"github.com/lulzzz/aika/src/aika/filter"
	"github.com/lulzzz/aika/src/aika/instrument"
	"github.com/lulzzz/aika/src/aika/storage"
	"github.com/lulzzz/aika/src/aika/storage/mocks"
	"github.com/lulzzz/aika/src/aika/subscription"
	"github.com/lulzzz/aika/src/aika/tag"
	"github.com/lulzzz/aika/src/aika/ts"
)

type recordingObserver struct {
	mu   sync.Mutex
	got  []subscription.Update
	done chan struct{}
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{done: make(chan struct{}, 64)}
}

func (o *recordingObserver) Deliver(updates []subscription.Update) error {
	o.mu.Lock()
	o.got = append(o.got, updates...)
	o.mu.Unlock()
	o.done <- struct{}{}
	return nil
}

func newHarness(t *testing.T) (*Pipeline, *tag.Registry, *subscription.Hub, storage.Adapter) {
	t.Helper()
	reg := tag.NewRegistry(nil, instrument.NewOptions())
	hub := subscription.NewHub(reg, instrument.NewOptions())
	mem := storage.NewMemory()
	p := NewPipeline(reg, mem, hub, instrument.NewOptions())
	return p, reg, hub, mem
}

func createFloatTag(t *testing.T, reg *tag.Registry, name string, limit float64) *tag.TagDefinition {
	t.Helper()
	def, err := reg.CreateTag(tag.Principal{ID: "tester"}, tag.Settings{
		Name:           name,
		DataType:       ts.FloatingPoint,
		ExceptionCfg:   filter.Config{Enabled: true, Limit: limit, Window: time.Hour},
		CompressionCfg: filter.Config{Enabled: true, Limit: limit, Window: time.Hour},
	})
	require.NoError(t, err)
	return def
}

func TestWriteSnapshotAcceptsFirstSample(t *testing.T) {
	p, reg, _, _ := newHarness(t)
	def := createFloatTag(t, reg, "temp.a", 0.5)

	summary, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 10, ts.Good, "")})
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Count)
	require.Len(t, summary.Notes, 1)
	assert.Equal(t, Accepted, summary.Notes[0].Disposition)
}

func TestWriteSnapshotDropsWithinBand(t *testing.T) {
	p, reg, _, _ := newHarness(t)
	def := createFloatTag(t, reg, "temp.b", 5.0)

	_, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 10, ts.Good, "")})
	require.NoError(t, err)

	summary, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(1, 0), 11, ts.Good, "")})
	require.NoError(t, err)
	require.Len(t, summary.Notes, 1)
	assert.Equal(t, DroppedByException, summary.Notes[0].Disposition)
	assert.Equal(t, 0, summary.Count)
}

func TestWriteSnapshotRejectsOutOfOrder(t *testing.T) {
	p, reg, _, _ := newHarness(t)
	def := createFloatTag(t, reg, "temp.c", 0.1)

	_, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(10, 0), 1, ts.Good, "")})
	require.NoError(t, err)

	summary, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(5, 0), 2, ts.Good, "")})
	require.NoError(t, err)
	require.Len(t, summary.Notes, 1)
	assert.Equal(t, Rejected, summary.Notes[0].Disposition)
	assert.Equal(t, "OutOfOrder", summary.Notes[0].Reason)
}

// TestWriteSummaryRejectionErrorCombinesPerSampleReasons checks that a batch
// rejecting more than one sample reduces their reasons to a single combined
// error via apierror.MultiError, while WriteSnapshot itself still reports
// the batch as successful (rejection is per-sample, not fatal to the call).
func TestWriteSummaryRejectionErrorCombinesPerSampleReasons(t *testing.T) {
	p, reg, _, _ := newHarness(t)
	def := createFloatTag(t, reg, "temp.cc", 0.1)

	summary, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{
			ts.NewNumeric(time.Unix(0, 0), 1, ts.Good, ""),
			ts.NewNumeric(time.Unix(0, 0), 2, ts.Good, ""),
			ts.NewNumeric(time.Unix(0, 0), 3, ts.Good, ""),
		})
	require.NoError(t, err)
	assert.True(t, summary.Success)

	rejErr := summary.RejectionError()
	require.Error(t, rejErr)
	assert.Equal(t, apierror.Validation, apierror.KindOf(rejErr))
	assert.Contains(t, rejErr.Error(), "OutOfOrder")
}

func TestWriteSnapshotPublishesToSubscribers(t *testing.T) {
	p, reg, hub, _ := newHarness(t)
	def := createFloatTag(t, reg, "temp.d", 0.1)

	obs := newRecordingObserver()
	sub := hub.Create(tag.Principal{ID: "tester"}, obs)
	rejected := hub.Subscribe(sub, []string{def.Name})
	assert.Empty(t, rejected)

	_, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 42, ts.Good, "")})
	require.NoError(t, err)

	select {
	case <-obs.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.got, 1)
	assert.Equal(t, 42.0, obs.got[0].Sample.Numeric)
}

func TestWriteSnapshotOrdersSamplesByTime(t *testing.T) {
	p, reg, _, mem := newHarness(t)
	def := createFloatTag(t, reg, "temp.e", 1000) // wide band: everything archives as first-of-door only

	_, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name, []ts.Sample{
		ts.NewNumeric(time.Unix(2, 0), 2, ts.Good, ""),
		ts.NewNumeric(time.Unix(0, 0), 0, ts.Good, ""),
		ts.NewNumeric(time.Unix(1, 0), 1, ts.Good, ""),
	})
	require.NoError(t, err)

	out, err := mem.RawRange(context.Background(), def.ID, ts.ToTicks(time.Unix(0, 0)), ts.ToTicks(time.Unix(3, 0)), 0)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, 0.0, out[0].Numeric)
}

func TestInsertArchiveBypassesFilters(t *testing.T) {
	p, reg, hub, mem := newHarness(t)
	def := createFloatTag(t, reg, "temp.f", 0.0001)

	obs := newRecordingObserver()
	sub := hub.Create(tag.Principal{ID: "tester"}, obs)
	hub.Subscribe(sub, []string{def.Name})

	err := p.InsertArchive(context.Background(), tag.Principal{ID: "tester"}, def.Name, []ts.Sample{
		ts.NewNumeric(time.Unix(0, 0), 1, ts.Good, ""),
		ts.NewNumeric(time.Unix(1, 0), 1.00001, ts.Good, ""),
	})
	require.NoError(t, err)

	select {
	case <-obs.done:
		t.Fatal("insert_archive must not publish to subscribers")
	case <-time.After(50 * time.Millisecond):
	}

	out, err := mem.RawRange(context.Background(), def.ID, ts.ToTicks(time.Unix(0, 0)), ts.ToTicks(time.Unix(2, 0)), 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, hasSnapshot := p.Snapshot(def.ID)
	assert.False(t, hasSnapshot, "insert_archive must not update the live snapshot")
}

func TestInsertArchiveRejectsNonIncreasingBatch(t *testing.T) {
	p, reg, _, _ := newHarness(t)
	def := createFloatTag(t, reg, "temp.g", 0.1)

	err := p.InsertArchive(context.Background(), tag.Principal{ID: "tester"}, def.Name, []ts.Sample{
		ts.NewNumeric(time.Unix(1, 0), 1, ts.Good, ""),
		ts.NewNumeric(time.Unix(1, 0), 2, ts.Good, ""),
	})
	require.Error(t, err)
	assert.Equal(t, apierror.Validation, apierror.KindOf(err))
}

func TestStorageFailureQuarantinesTagUntilReinitialized(t *testing.T) {
	reg := tag.NewRegistry(nil, instrument.NewOptions())
	hub := subscription.NewHub(reg, instrument.NewOptions())
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockAdapter := mocks.NewMockAdapter(ctrl)
	mockAdapter.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full")).AnyTimes()

	p := NewPipeline(reg, mockAdapter, hub, instrument.NewOptions())
	def := createFloatTag(t, reg, "temp.h", 0.1)

	summary, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 1, ts.Good, "")})
	require.NoError(t, err)
	require.Len(t, summary.Notes, 1)
	assert.Equal(t, Rejected, summary.Notes[0].Disposition)

	_, err = p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(1, 0), 2, ts.Good, "")})
	require.Error(t, err)
	assert.Equal(t, apierror.Internal, apierror.KindOf(err))

	p.Reinitialize(def.ID)

	summary, err = p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(2, 0), 3, ts.Good, "")})
	require.NoError(t, err)
	assert.Equal(t, Rejected, summary.Notes[0].Disposition)
}

func TestDeleteTagTearsDownExecutorAndStorage(t *testing.T) {
	p, reg, _, mem := newHarness(t)
	def := createFloatTag(t, reg, "temp.i", 0.1)

	_, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 1, ts.Good, "")})
	require.NoError(t, err)

	require.NoError(t, p.DeleteTag(context.Background(), tag.Principal{ID: "tester"}, def.ID))

	_, ok := reg.ResolveID(def.ID)
	assert.False(t, ok)

	out, err := mem.RawRange(context.Background(), def.ID, ts.ToTicks(time.Unix(0, 0)), ts.ToTicks(time.Unix(10, 0)), 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// TestWriteAgainstDeletedTagFailsWithDeletedNotNotFound checks that a write
// racing a tag deletion reports apierror.Deleted, distinguishable from a tag
// id that never existed.
func TestWriteAgainstDeletedTagFailsWithDeletedNotNotFound(t *testing.T) {
	p, reg, _, _ := newHarness(t)
	def := createFloatTag(t, reg, "temp.j", 0.1)

	require.NoError(t, p.DeleteTag(context.Background(), tag.Principal{ID: "tester"}, def.ID))

	_, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.ID.String(),
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 1, ts.Good, "")})
	require.Error(t, err)
	assert.Equal(t, apierror.Deleted, apierror.KindOf(err))

	err = p.InsertArchive(context.Background(), tag.Principal{ID: "tester"}, def.ID.String(),
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 1, ts.Good, "")})
	require.Error(t, err)
	assert.Equal(t, apierror.Deleted, apierror.KindOf(err))

	_, err = p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, uuid.New().String(),
		[]ts.Sample{ts.NewNumeric(time.Unix(0, 0), 1, ts.Good, "")})
	require.Error(t, err)
	assert.Equal(t, apierror.NotFound, apierror.KindOf(err))
}

// TestShutdownLeavesNoExecutorGoroutinesRunning checks that every tagExecutor
// loop goroutine spawned across a handful of writes actually exits once
// Shutdown returns, rather than leaking a goroutine per ever-seen tag.
func TestShutdownLeavesNoExecutorGoroutinesRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, reg, _, _ := newHarness(t)
	for i, name := range []string{"leak.a", "leak.b", "leak.c"} {
		def := createFloatTag(t, reg, name, 0.1)
		_, err := p.WriteSnapshot(context.Background(), tag.Principal{ID: "tester"}, def.Name,
			[]ts.Sample{ts.NewNumeric(time.Unix(int64(i), 0), float64(i), ts.Good, "")})
		require.NoError(t, err)
	}

	require.NoError(t, p.Shutdown())
}
