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

// Package subscription fans snapshot updates out to interested observers
// with backpressure-safe, per-tag-coalescing semantics (§4.6).
package subscription

import (
	"sync"

	"github.com/google/uuid"
	"github.com/uber-go/tally"
	"github.com/willf/bitset"
	"golang.org/x/sync/errgroup"

	"github.com/lulzzz/aika/src/aika/instrument"
	"github.com/lulzzz/aika/src/aika/tag"
	"github.com/lulzzz/aika/src/aika/ts"
)

// Update is a post-filter snapshot change delivered to subscribed
// observers.
type Update struct {
	TagID  uuid.UUID
	Name   string
	Sample ts.Sample
}

// Observer receives coalesced batches of Updates. Deliver should return
// promptly; an observer whose Deliver returns an error
// maxConsecutiveFailures times in a row is disconnected. Slowness alone
// does not disconnect an observer.
type Observer interface {
	Deliver(updates []Update) error
}

type hubMetrics struct {
	dropped      tally.Counter
	disconnected tally.Counter
}

// Hub is the SubscriptionHub (C6). It resolves tag names through a
// tag.Registry and tracks, per subscription, a bitset of the tag ordinals
// it is interested in so publish can test membership in O(1) per
// subscription without re-walking a name set.
type Hub struct {
	mu                      sync.RWMutex
	registry                *tag.Registry
	subs                    map[uuid.UUID]*Subscription
	maxConsecutiveFailures  int
	mailboxCapacity         int
	metrics                 hubMetrics
}

// DefaultMaxConsecutiveFailures is the consecutive-failure limit NewHub
// gives every hub.
const DefaultMaxConsecutiveFailures = 5

// DefaultMailboxCapacity is the per-subscription mailbox capacity NewHub
// gives every hub.
const DefaultMailboxCapacity = 256

// NewHub returns a Hub resolving tag names via registry.
func NewHub(registry *tag.Registry, iopts instrument.Options) *Hub {
	if iopts == nil {
		iopts = instrument.NewOptions()
	}
	scope := iopts.MetricsScope().SubScope("subscription")
	return &Hub{
		registry:               registry,
		subs:                   make(map[uuid.UUID]*Subscription),
		maxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		mailboxCapacity:        DefaultMailboxCapacity,
		metrics: hubMetrics{
			dropped:      scope.Counter("dropped-updates"),
			disconnected: scope.Counter("disconnected-observers"),
		},
	}
}

// Create registers a new subscription for principal/observer with no
// tags subscribed yet.
func (h *Hub) Create(principal tag.Principal, observer Observer) *Subscription {
	sub := &Subscription{
		id:        uuid.New(),
		principal: principal,
		observer:  observer,
		hub:       h,
		interest:  bitset.New(64),
		mailbox:   newMailbox(h.mailboxCapacity, h.metrics.dropped),
		closeCh:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go sub.run()
	return sub
}

// Subscribe adds names to sub's interest set. Unknown or unauthorized names
// are silently skipped and reported in the returned diagnostics.
func (h *Hub) Subscribe(sub *Subscription, names []string) []string {
	var rejected []string
	for _, name := range names {
		def, ok := h.registry.Resolve(name)
		if !ok || !h.registry.AuthorizeRead(sub.principal, def.ID) {
			rejected = append(rejected, name)
			continue
		}
		ordinal, ok := h.registry.Ordinal(def.ID)
		if !ok {
			rejected = append(rejected, name)
			continue
		}
		sub.addInterest(def.ID, ordinal)
	}
	return rejected
}

// Unsubscribe removes names from sub's interest set.
func (h *Hub) Unsubscribe(sub *Subscription, names []string) []string {
	var rejected []string
	for _, name := range names {
		def, ok := h.registry.Resolve(name)
		if !ok {
			rejected = append(rejected, name)
			continue
		}
		ordinal, ok := h.registry.Ordinal(def.ID)
		if !ok {
			rejected = append(rejected, name)
			continue
		}
		sub.removeInterest(def.ID, ordinal)
	}
	return rejected
}

// Publish delivers (tagID, sample) to every subscription whose interest set
// contains tagID. Per §5, this never blocks on an observer's mailbox; a
// full mailbox either coalesces the update or drops it with a counter.
func (h *Hub) Publish(tagID uuid.UUID, name string, sample ts.Sample) {
	ordinal, ok := h.registry.Ordinal(tagID)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.hasInterest(ordinal) {
			sub.mailbox.enqueue(Update{TagID: tagID, Name: name, Sample: sample})
		}
	}
}

// Close idempotently closes sub, releasing its reference from the hub.
func (h *Hub) Close(sub *Subscription) {
	h.mu.Lock()
	_, exists := h.subs[sub.id]
	delete(h.subs, sub.id)
	h.mu.Unlock()
	if exists {
		sub.stop()
	}
}

func (h *Hub) disconnect(id uuid.UUID) {
	h.mu.Lock()
	sub, exists := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if exists {
		h.metrics.disconnected.Inc(1)
		sub.stop()
	}
}

// Shutdown removes every active subscription and signals each delivery
// goroutine to stop, concurrently. It returns once every stop signal has
// been sent; it does not wait for the delivery goroutines to exit.
func (h *Hub) Shutdown() error {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[uuid.UUID]*Subscription)
	h.mu.Unlock()

	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			sub.stop()
			return nil
		})
	}
	return g.Wait()
}
