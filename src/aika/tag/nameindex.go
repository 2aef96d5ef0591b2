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

package tag

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// nameIndexEntry is one case-insensitive name pointing at a tag id, kept in
// a hash bucket alongside any other name that collides on xxhash.Sum64.
type nameIndexEntry struct {
	key string // nameKey(name); confirms a bucket hit past the hash collision
	id  uuid.UUID
}

// nameIndex resolves case-insensitive tag names to ids by xxhash.Sum64 of
// the lowercased name, confirming on collision with a linear scan of the
// (typically single-entry) bucket, mirroring the aggregator's
// entryKey{metricType, idHash} + confirm pattern in metricMap.
type nameIndex struct {
	buckets map[uint64][]nameIndexEntry
}

func newNameIndex() *nameIndex {
	return &nameIndex{buckets: make(map[uint64][]nameIndexEntry)}
}

func (n *nameIndex) hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func (n *nameIndex) lookup(name string) (uuid.UUID, bool) {
	key := nameKey(name)
	for _, e := range n.buckets[n.hash(key)] {
		if e.key == key {
			return e.id, true
		}
	}
	return uuid.UUID{}, false
}

func (n *nameIndex) put(name string, id uuid.UUID) {
	key := nameKey(name)
	h := n.hash(key)
	n.buckets[h] = append(n.buckets[h], nameIndexEntry{key: key, id: id})
}

func (n *nameIndex) remove(name string) {
	key := nameKey(name)
	h := n.hash(key)
	bucket := n.buckets[h]
	for i, e := range bucket {
		if e.key == key {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(n.buckets, h)
		return
	}
	n.buckets[h] = bucket
}
