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

package subscription

import (
	"sync"

	"github.com/google/uuid"
	"github.com/uber-go/tally"
)

// mailbox is a per-observer bounded inbox that coalesces bursts to the
// latest value per tag once full, rather than blocking the publisher or
// evicting an unrelated tag's pending update (§4.6, §5).
type mailbox struct {
	mu       sync.Mutex
	queue    []Update
	index    map[uuid.UUID]int
	capacity int
	notifyCh chan struct{}
	dropped  tally.Counter
}

func newMailbox(capacity int, dropped tally.Counter) *mailbox {
	return &mailbox{
		index:    make(map[uuid.UUID]int),
		capacity: capacity,
		notifyCh: make(chan struct{}, 1),
		dropped:  dropped,
	}
}

// enqueue never blocks: while there is room, u is appended; once the
// mailbox is full, u replaces u.TagID's latest pending update in place
// (latest-wins, order preserved), or is dropped with a counter if that tag
// has nothing pending.
func (m *mailbox) enqueue(u Update) {
	m.mu.Lock()
	if len(m.queue) >= m.capacity {
		idx, ok := m.index[u.TagID]
		if !ok {
			m.mu.Unlock()
			m.dropped.Inc(1)
			return
		}
		m.queue[idx] = u
		m.mu.Unlock()
		m.notify()
		return
	}
	m.index[u.TagID] = len(m.queue)
	m.queue = append(m.queue, u)
	m.mu.Unlock()
	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}

// drain atomically empties the mailbox and returns its contents in
// enqueue order.
func (m *mailbox) drain() []Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	m.index = make(map[uuid.UUID]int)
	return out
}
