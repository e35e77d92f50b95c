/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package store implements the per-server graph store: an in-memory
key-value index from (vertex, predicate, direction) to an ordered,
deduplicated adjacency list, plus typed attribute lookup.

The layout follows spec.md 4.2: a hash-index zone of fixed-size buckets
with chained overflow (grounded on hash/htreebucket.go's bucket/overflow
shape, simplified - we need a static hash table with overflow chaining,
not a dynamically-splitting extendible tree), and a separate payload
arena holding packed vertex-ID arrays and typed attribute scalars
(package store's arena.go).
*/
package store

import (
	"sort"
	"sync"
	"sync/atomic"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/rhizome/rdf"
)

/*
entryType disambiguates what a bucket entry's payload range holds.
*/
type entryType byte

/*
Entry payload kinds.
*/
const (
	typeSIDList entryType = iota
	typeInt
	typeFloat
	typeDouble
)

/*
bucketCapacity is the number of entries a single bucket holds before an
overflow bucket is chained onto it (mirrors hash.MaxBucketElements).
*/
const bucketCapacity = 4

/*
key identifies one adjacency list or attribute value.
*/
type key struct {
	Vertex    uint64
	Predicate uint64
	Dir       rdf.Direction
}

func (k key) hash() uint64 {
	h := k.Vertex*1000003 ^ k.Predicate*2654435761
	if k.Dir == rdf.IN {
		h = ^h
	}
	return h
}

type entry struct {
	key    key
	offset uint64
	length uint32
	typ    entryType
}

type bucket struct {
	mu       sync.Mutex
	version  uint64
	entries  []entry
	overflow *bucket
}

/*
Store is a single server's in-memory graph shard: the hash-index zone of
buckets plus the edge-payload arena.
*/
type Store struct {
	mu      sync.RWMutex // guards resizing of buckets; reads/writes of individual buckets use their own lock
	buckets []*bucket
	arena   *arena

	versatile bool

	// remote-read cache: thread id -> scratch results from the last
	// EdgesGlobal call on that thread (transport.RemoteRead caller's
	// scratch, per spec.md 4.2 "the result lives in the caller's
	// scratch until the next remote read on the same thread").
	scratchMu sync.Mutex
	scratch   map[int][]uint64
}

/*
New creates an empty store with numBuckets hash slots. versatile selects
SPO/OPS ordering (true) vs. predicate-major PSO/POS ordering (false), per
spec.md 4.2.
*/
func New(numBuckets int, versatile bool) *Store {
	if numBuckets <= 0 {
		numBuckets = 1 << 16
	}

	buckets := make([]*bucket, numBuckets)
	for i := range buckets {
		buckets[i] = &bucket{}
	}

	return &Store{
		buckets:   buckets,
		arena:     newArena(0),
		versatile: versatile,
		scratch:   make(map[int][]uint64),
	}
}

func (s *Store) bucketFor(k key) *bucket {
	idx := k.hash() % uint64(len(s.buckets))
	return s.buckets[idx]
}

/*
lookup finds the entry for k, following the overflow chain. Callers must
not hold the bucket's lock.
*/
func (s *Store) lookup(k key) (entry, bool) {
	b := s.bucketFor(k)
	for b != nil {
		b.mu.Lock()
		for _, e := range b.entries {
			if e.key == k {
				b.mu.Unlock()
				return e, true
			}
		}
		next := b.overflow
		b.mu.Unlock()
		b = next
	}
	return entry{}, false
}

/*
put inserts or replaces the entry for k, chaining a new overflow bucket
when the head bucket is full. The bucket's version is bumped on every
successful CAS-style mutation, giving incremental load (store.InsertTripleOut)
a cheap optimistic-concurrency marker even though we use a mutex for the
actual critical section (spec.md's "atomic CAS on bucket version").
*/
func (s *Store) put(k key, e entry) {
	b := s.bucketFor(k)
	for {
		b.mu.Lock()
		for i := range b.entries {
			if b.entries[i].key == k {
				b.entries[i] = e
				atomic.AddUint64(&b.version, 1)
				b.mu.Unlock()
				return
			}
		}
		if len(b.entries) < bucketCapacity {
			b.entries = append(b.entries, e)
			atomic.AddUint64(&b.version, 1)
			b.mu.Unlock()
			return
		}
		if b.overflow == nil {
			b.overflow = &bucket{}
		}
		next := b.overflow
		b.mu.Unlock()
		b = next
	}
}

/*
Edges returns the local adjacency list for (vertex, predicate, direction).
Returns nil (an empty list) if there is no such list - spec.md 4.2
says "empty if not present" rather than an error.
*/
func (s *Store) Edges(vertex, predicate uint64, dir rdf.Direction) []uint64 {
	e, ok := s.lookup(key{vertex, predicate, dir})
	if !ok || e.typ != typeSIDList {
		return nil
	}
	return decodeSIDList(s.arena.read(e.offset, e.length))
}

/*
IndexEdgesLocal performs a local-only index lookup, i.e. Edges(0, predOrType, direction).
*/
func (s *Store) IndexEdgesLocal(predOrType uint64, dir rdf.Direction) []uint64 {
	return s.Edges(0, predOrType, dir)
}

/*
Attr returns the typed attribute value stored for (vertex, predicate),
direction is always OUT for attributes per spec.md 4.3.
*/
func (s *Store) Attr(vertex, predicate uint64) (rdf.AttrValue, bool) {
	e, ok := s.lookup(key{vertex, predicate, rdf.OUT})
	if !ok {
		return rdf.AttrValue{}, false
	}

	raw := s.arena.read(e.offset, e.length)

	switch e.typ {
	case typeInt:
		return rdf.IntValue(decodeInt32(raw)), true
	case typeFloat:
		return rdf.FloatValue(decodeFloat32(raw)), true
	case typeDouble:
		return rdf.DoubleValue(decodeFloat64(raw)), true
	}

	return rdf.AttrValue{}, false
}

/*
ScratchFor returns the cached remote-read result for a thread, if any -
used by EdgesGlobal to satisfy spec.md 4.2's "the result lives in the
caller's scratch until the next remote read on the same thread".
*/
func (s *Store) ScratchFor(thread int) []uint64 {
	s.scratchMu.Lock()
	defer s.scratchMu.Unlock()
	return s.scratch[thread]
}

func (s *Store) setScratch(thread int, vals []uint64) {
	s.scratchMu.Lock()
	defer s.scratchMu.Unlock()
	s.scratch[thread] = vals
}

/*
insertSIDList stores a sorted, deduplicated vertex-ID list under k,
replacing any prior value.
*/
func (s *Store) insertSIDList(k key, vals []uint64) {
	if len(vals) == 0 {
		return
	}
	off, length := s.arena.alloc(encodeSIDList(vals))
	s.put(k, entry{key: k, offset: off, length: length, typ: typeSIDList})
}

/*
appendSIDList merges newVals into the existing list for k (if any),
re-sorting and deduplicating according to the ordering implied by dir -
used by incremental inserts which must preserve the store's mandated
ordering invariant.
*/
func (s *Store) appendSIDList(k key, newVals []uint64, checkDup bool) {
	existing := s.Edges(k.Vertex, k.Predicate, k.Dir)

	merged := make([]uint64, 0, len(existing)+len(newVals))
	merged = append(merged, existing...)
	merged = append(merged, newVals...)

	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })

	if checkDup {
		merged = dedupUint64(merged)
	}

	s.insertSIDList(k, merged)
}

func dedupUint64(vals []uint64) []uint64 {
	if len(vals) <= 1 {
		return vals
	}
	n := 1
	for i := 1; i < len(vals); i++ {
		if vals[i] == vals[i-1] {
			continue
		}
		vals[n] = vals[i]
		n++
	}
	return vals[:n]
}

func must(err error) {
	errorutil.AssertOk(err)
}
