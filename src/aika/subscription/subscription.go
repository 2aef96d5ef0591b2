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
	"github.com/willf/bitset"

	"github.com/lulzzz/aika/src/aika/tag"
)

// Subscription is (principal, tag_set, observer) per §4.6. tag_set is
// mutable; Subscribe/Unsubscribe mutate it through the owning Hub.
type Subscription struct {
	id        uuid.UUID
	principal tag.Principal
	observer  Observer
	hub       *Hub

	mu       sync.RWMutex
	interest *bitset.BitSet
	tagNames map[uuid.UUID]struct{}

	mailbox *mailbox
	closeCh chan struct{}
	stopOne sync.Once
}

// ID returns the subscription's identity.
func (s *Subscription) ID() uuid.UUID { return s.id }

func (s *Subscription) addInterest(tagID uuid.UUID, ordinal uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interest.Set(uint(ordinal))
	if s.tagNames == nil {
		s.tagNames = make(map[uuid.UUID]struct{})
	}
	s.tagNames[tagID] = struct{}{}
}

func (s *Subscription) removeInterest(tagID uuid.UUID, ordinal uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interest.Clear(uint(ordinal))
	delete(s.tagNames, tagID)
}

func (s *Subscription) hasInterest(ordinal uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interest.Test(uint(ordinal))
}

// Close idempotently closes the subscription through its owning Hub.
func (s *Subscription) Close() {
	s.hub.Close(s)
}

func (s *Subscription) stop() {
	s.stopOne.Do(func() { close(s.closeCh) })
}

// run is the subscription's dedicated delivery goroutine: it drains the
// mailbox whenever notified and hands batches to the observer, disconnecting
// after too many consecutive failures.
func (s *Subscription) run() {
	failures := 0
	for {
		select {
		case <-s.mailbox.notifyCh:
			updates := s.mailbox.drain()
			if len(updates) == 0 {
				continue
			}
			if err := s.observer.Deliver(updates); err != nil {
				failures++
				if failures >= s.hub.maxConsecutiveFailures {
					s.hub.disconnect(s.id)
					return
				}
				continue
			}
			failures = 0
		case <-s.closeCh:
			return
		}
	}
}
