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
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/uber-go/tally"
	"golang.org/x/sync/errgroup"

	"github.com/lulzzz/aika/src/aika/apierror"
	"github.com/lulzzz/aika/src/aika/filter"
	"github.com/lulzzz/aika/src/aika/instrument"
	"github.com/lulzzz/aika/src/aika/storage"
	"github.com/lulzzz/aika/src/aika/subscription"
	"github.com/lulzzz/aika/src/aika/tag"
	"github.com/lulzzz/aika/src/aika/ts"
)

type pipelineMetrics struct {
	accepted    tally.Counter
	rejected    tally.Counter
	quarantined tally.Counter
}

// Pipeline is the WritePipeline (C4). It owns one tagExecutor per live tag
// and composes the registry, the filters, the subscription hub, and the
// storage adapter behind write_snapshot/insert_archive.
type Pipeline struct {
	registry *tag.Registry
	adapter  storage.Adapter
	hub      *subscription.Hub

	mu        sync.Mutex
	executors map[uuid.UUID]*tagExecutor
	closed    bool

	metrics pipelineMetrics
}

// NewPipeline wires a Pipeline over registry/adapter/hub.
func NewPipeline(registry *tag.Registry, adapter storage.Adapter, hub *subscription.Hub, iopts instrument.Options) *Pipeline {
	if iopts == nil {
		iopts = instrument.NewOptions()
	}
	scope := iopts.MetricsScope().SubScope("pipeline")
	return &Pipeline{
		registry:  registry,
		adapter:   adapter,
		hub:       hub,
		executors: make(map[uuid.UUID]*tagExecutor),
		metrics: pipelineMetrics{
			accepted:    scope.Counter("accepted"),
			rejected:    scope.Counter("rejected"),
			quarantined: scope.Counter("quarantined"),
		},
	}
}

func (p *Pipeline) executorFor(tagID uuid.UUID) (*tagExecutor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, apierror.New(apierror.Unavailable, "pipeline is shut down")
	}
	e, ok := p.executors[tagID]
	if !ok {
		e = newTagExecutor(tagID)
		p.executors[tagID] = e
	}
	return e, nil
}

// WriteSnapshot is write_snapshot (§4.4): authorizes, orders samples by
// utc_time, and for each runs the exception filter then the compression
// filter, updating the live snapshot and publishing to the hub on an
// exception Pass, and archiving whatever the compression filter emits.
func (p *Pipeline) WriteSnapshot(ctx context.Context, principal tag.Principal, nameOrID string, samples []ts.Sample) (WriteSummary, error) {
	def, err := p.registry.ResolveForWrite(nameOrID)
	if err != nil {
		return WriteSummary{}, err
	}
	if !p.registry.AuthorizeWrite(principal, def.ID) {
		return WriteSummary{}, apierror.New(apierror.Unauthorized, "not authorized to write tag: "+nameOrID)
	}

	executor, err := p.executorFor(def.ID)
	if err != nil {
		return WriteSummary{}, err
	}
	if quarantined, cause := executor.isQuarantined(); quarantined {
		return WriteSummary{}, apierror.Wrap(apierror.Internal, cause, "tag is quarantined: "+nameOrID)
	}

	ordered := append([]ts.Sample(nil), samples...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].UTCTime.Before(ordered[j].UTCTime) })

	var summary WriteSummary
	var cancelled bool
	executor.submit(func() {
		defer func() {
			if r := recover(); r != nil {
				executor.quarantine(apierror.New(apierror.Internal, "panic in write_snapshot"))
			}
		}()
		for _, sample := range ordered {
			if err := ctx.Err(); err != nil {
				cancelled = true
				return
			}
			p.processOne(def, executor, &summary, sample)
		}
	})

	summary.Success = true
	if cancelled {
		return summary, apierror.Wrap(apierror.Cancelled, ctx.Err(), "write cancelled")
	}
	return summary, nil
}

func (p *Pipeline) processOne(def *tag.TagDefinition, executor *tagExecutor, summary *WriteSummary, sample ts.Sample) {
	discrete := def.DataType.IsDiscrete()

	result := filter.Process(def.ExceptionCfg, &executor.exceptionState, discrete, sample)
	if result.Disposition == filter.Drop {
		if result.Reason == filter.OutOfOrder {
			summary.record(sample, Rejected, result.Reason.String())
			p.metrics.rejected.Inc(1)
		} else {
			summary.record(sample, DroppedByException, result.Reason.String())
		}
		return
	}

	executor.setSnapshot(sample)
	p.hub.Publish(def.ID, def.Name, sample)
	p.metrics.accepted.Inc(1)

	emitted := filter.Process(def.CompressionCfg, &executor.compressionState, discrete, sample)
	if len(emitted) > 0 {
		if err := p.adapter.Insert(context.Background(), def.ID, emitted); err != nil {
			executor.quarantine(apierror.Wrap(apierror.Unavailable, err, "storage insert failed"))
			p.metrics.quarantined.Inc(1)
			summary.record(sample, Rejected, "storage unavailable")
			return
		}
	}

	if emittedIncoming(emitted, sample) {
		summary.record(sample, Accepted, "")
		return
	}
	summary.record(sample, DroppedByCompression, "")
}

func emittedIncoming(emitted []ts.Sample, incoming ts.Sample) bool {
	for _, e := range emitted {
		if e.UTCTime.Equal(incoming.UTCTime) {
			return true
		}
	}
	return false
}

// InsertArchive is insert_archive (§4.4): authorizes and bypasses both
// filters; the caller is responsible for strict time ordering against the
// existing archive tail. No snapshot update, no subscription publish.
func (p *Pipeline) InsertArchive(ctx context.Context, principal tag.Principal, nameOrID string, samples []ts.Sample) error {
	def, err := p.registry.ResolveForWrite(nameOrID)
	if err != nil {
		return err
	}
	if !p.registry.AuthorizeWrite(principal, def.ID) {
		return apierror.New(apierror.Unauthorized, "not authorized to write tag: "+nameOrID)
	}

	executor, err := p.executorFor(def.ID)
	if err != nil {
		return err
	}
	if quarantined, cause := executor.isQuarantined(); quarantined {
		return apierror.Wrap(apierror.Internal, cause, "tag is quarantined: "+nameOrID)
	}

	for i := 1; i < len(samples); i++ {
		if !samples[i].UTCTime.After(samples[i-1].UTCTime) {
			return apierror.New(apierror.Validation, "insert_archive samples must be strictly time-ordered")
		}
	}

	var insertErr error
	executor.submit(func() {
		if ctx.Err() != nil {
			insertErr = apierror.Wrap(apierror.Cancelled, ctx.Err(), "insert_archive cancelled")
			return
		}
		if err := p.adapter.Insert(ctx, def.ID, samples); err != nil {
			executor.quarantine(apierror.Wrap(apierror.Unavailable, err, "storage insert failed"))
			insertErr = apierror.Wrap(apierror.Unavailable, err, "storage insert failed")
		}
	})
	return insertErr
}

// Reinitialize clears a quarantined tag's executor state, per §4's
// per-tag state machine: "further writes fail until reinitialization."
func (p *Pipeline) Reinitialize(tagID uuid.UUID) {
	p.mu.Lock()
	e, ok := p.executors[tagID]
	p.mu.Unlock()
	if ok {
		e.reinitialize()
	}
}

// Snapshot returns a tag's current live (pre-archive) value, if any writes
// have passed the exception filter yet.
func (p *Pipeline) Snapshot(tagID uuid.UUID) (ts.Sample, bool) {
	p.mu.Lock()
	e, ok := p.executors[tagID]
	p.mu.Unlock()
	if !ok {
		return ts.Sample{}, false
	}
	return e.currentSnapshot()
}

// DeleteTag tears down a tag's executor and storage data alongside the
// registry's own identity removal, per registry.go's DeleteTag comment:
// "tearing down its filter state, subscriptions, and per-tag executor is
// the caller's responsibility."
func (p *Pipeline) DeleteTag(ctx context.Context, principal tag.Principal, tagID uuid.UUID) error {
	if err := p.registry.DeleteTag(principal, tagID); err != nil {
		return err
	}

	p.mu.Lock()
	e, ok := p.executors[tagID]
	delete(p.executors, tagID)
	p.mu.Unlock()
	if ok {
		e.stop()
	}

	return p.adapter.DeleteTagData(ctx, tagID)
}

// Shutdown stops every tag executor's loop goroutine concurrently.
func (p *Pipeline) Shutdown() error {
	p.mu.Lock()
	p.closed = true
	executors := make([]*tagExecutor, 0, len(p.executors))
	for _, e := range p.executors {
		executors = append(executors, e)
	}
	p.executors = make(map[uuid.UUID]*tagExecutor)
	p.mu.Unlock()

	var g errgroup.Group
	for _, e := range executors {
		e := e
		g.Go(func() error {
			e.stop()
			return nil
		})
	}
	return g.Wait()
}
