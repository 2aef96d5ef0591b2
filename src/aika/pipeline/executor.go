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
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/lulzzz/aika/src/aika/filter"
	"github.com/lulzzz/aika/src/aika/ts"
)

// defaultJobQueueCapacity bounds the FIFO queue a tagExecutor's loop drains;
// synchronous callers (the only callers today) never actually queue past 1
// in flight, but a bound keeps a misbehaving caller from growing it
// unbounded.
const defaultJobQueueCapacity = 64

type job struct {
	fn   func()
	done chan struct{}
}

// tagExecutor is a single-writer-per-tag serial executor (grounded on
// metricMap's per-shard Entry discipline): every write_snapshot/
// insert_archive call for a tag runs inside the same goroutine, in arrival
// order, so exception/compression state never needs its own lock.
type tagExecutor struct {
	tagID uuid.UUID

	exceptionState   filter.ExceptionState
	compressionState filter.CompressionState

	mu       sync.RWMutex
	snapshot *ts.Sample

	// quarantine state is read on every submit() without going through the
	// executor's own goroutine, so it's lock-free rather than sharing mu.
	quarantined   atomic.Bool
	quarantineErr atomic.Error

	jobs chan job
}

func newTagExecutor(tagID uuid.UUID) *tagExecutor {
	e := &tagExecutor{
		tagID: tagID,
		jobs:  make(chan job, defaultJobQueueCapacity),
	}
	go e.loop()
	return e
}

func (e *tagExecutor) loop() {
	for j := range e.jobs {
		e.runJob(j)
	}
}

func (e *tagExecutor) runJob(j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			e.quarantined.Store(true)
		}
	}()
	j.fn()
}

// submit runs fn on the executor's goroutine and blocks until it completes.
func (e *tagExecutor) submit(fn func()) {
	j := job{fn: fn, done: make(chan struct{})}
	e.jobs <- j
	<-j.done
}

func (e *tagExecutor) isQuarantined() (bool, error) {
	return e.quarantined.Load(), e.quarantineErr.Load()
}

func (e *tagExecutor) quarantine(cause error) {
	e.quarantineErr.Store(cause)
	e.quarantined.Store(true)
}

// reinitialize clears quarantine and resets filter state, per §4 "State
// machine (per tag)": configuration changes re-seat filter state atomically
// at the next write boundary.
func (e *tagExecutor) reinitialize() {
	e.submit(func() {
		e.exceptionState = filter.ExceptionState{}
		e.compressionState = filter.CompressionState{}
		e.quarantined.Store(false)
		e.quarantineErr.Store(nil)
		e.mu.Lock()
		e.snapshot = nil
		e.mu.Unlock()
	})
}

func (e *tagExecutor) currentSnapshot() (ts.Sample, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snapshot == nil {
		return ts.Sample{}, false
	}
	return *e.snapshot, true
}

func (e *tagExecutor) setSnapshot(s ts.Sample) {
	e.mu.Lock()
	e.snapshot = &s
	e.mu.Unlock()
}

// stop closes the job queue once no further submissions will occur; the
// loop goroutine drains any buffered jobs and exits.
func (e *tagExecutor) stop() {
	close(e.jobs)
}
