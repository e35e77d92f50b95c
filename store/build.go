/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import (
	"sort"

	"devt.de/krotik/rhizome/rdf"
)

/*
InsertNormal bulk-inserts one engine thread's share of OUT-ordered and
IN-ordered triples (already sorted and deduplicated by the loader's
aggregate pass per spec.md 4.1) into the adjacency-list index. Safe to
call concurrently from multiple threads - different threads touch
different subjects/objects but may still hash into the same bucket, so
insertion still goes through Store.put's per-bucket lock.
*/
func (s *Store) InsertNormal(psoTriples, posTriples []rdf.Triple) {
	insertGrouped(psoTriples, func(t rdf.Triple) uint64 { return t.S },
		func(group []rdf.Triple, s_ uint64) {
			byPred := groupByPredicate(group)
			for pred, objs := range byPred {
				s.insertSIDList(key{s_, pred, rdf.OUT}, objs)
			}
		})

	insertGrouped(posTriples, func(t rdf.Triple) uint64 { return t.O },
		func(group []rdf.Triple, o uint64) {
			byPred := groupByPredicateSubjects(group)
			for pred, subs := range byPred {
				s.insertSIDList(key{o, pred, rdf.IN}, subs)
			}
		})
}

/*
groupByPredicate maps a predicate ID to the sorted, deduplicated set of
object IDs within triples sharing one subject.
*/
func groupByPredicate(triples []rdf.Triple) map[uint64][]uint64 {
	out := make(map[uint64][]uint64)
	for _, t := range triples {
		out[t.P] = append(out[t.P], t.O)
	}
	for p, vals := range out {
		out[p] = sortDedup(vals)
	}
	return out
}

/*
groupByPredicateSubjects is the IN-side mirror of groupByPredicate.
*/
func groupByPredicateSubjects(triples []rdf.Triple) map[uint64][]uint64 {
	out := make(map[uint64][]uint64)
	for _, t := range triples {
		out[t.P] = append(out[t.P], t.S)
	}
	for p, vals := range out {
		out[p] = sortDedup(vals)
	}
	return out
}

func sortDedup(vals []uint64) []uint64 {
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return dedupUint64(vals)
}

/*
insertGrouped walks triples (already sorted so that triples sharing the
same groupKey are contiguous) and invokes apply once per contiguous
group - mirrors the reference's per-vertex batching during gstore
insertion.
*/
func insertGrouped(triples []rdf.Triple, groupKey func(rdf.Triple) uint64, apply func(group []rdf.Triple, key uint64)) {
	i := 0
	for i < len(triples) {
		k := groupKey(triples[i])
		j := i + 1
		for j < len(triples) && groupKey(triples[j]) == k {
			j++
		}
		apply(triples[i:j], k)
		i = j
	}
}

/*
InsertAttr bulk-inserts typed attribute triples. Per spec.md 3, attribute
values for (s, a) are unique per server - overwriting is undefined, so
the last write for a given (s, a) simply wins.
*/
func (s *Store) InsertAttr(triples []rdf.AttrTriple) {
	for _, t := range triples {
		s.insertAttrValue(t.S, t.A, t.V)
	}
}

func (s *Store) insertAttrValue(subject, attr uint64, v rdf.AttrValue) {
	k := key{subject, attr, rdf.OUT}

	var typ entryType
	var raw []byte

	switch v.Type {
	case rdf.AttrInt:
		typ, raw = typeInt, encodeInt32(v.Int)
	case rdf.AttrFloat:
		typ, raw = typeFloat, encodeFloat32(v.Float)
	case rdf.AttrDouble:
		typ, raw = typeDouble, encodeFloat64(v.Double)
	default:
		return
	}

	off, length := s.arena.alloc(raw)
	s.put(k, entry{key: k, offset: off, length: length, typ: typ})
}

/*
InsertIndex (re)builds the local-index entries described in spec.md 4.2:
the predicate-of-vertex index, the locally-known-types/predicates lists,
and (in VERSATILE mode) the all-local-vertices list. Must run after
InsertNormal/InsertAttr have populated the adjacency lists.
*/
func (s *Store) InsertIndex() {
	types := make(map[uint64]bool)
	preds := make(map[uint64]bool)
	vertices := make(map[uint64]bool)

	type vpd struct {
		vertex uint64
		pred   uint64
		dir    rdf.Direction
	}
	var adjacency []vpd

	for _, b := range s.buckets {
		s.walkBucketChain(b, func(e entry) {
			if e.key.Vertex == 0 || e.typ != typeSIDList {
				return
			}

			preds[e.key.Predicate] = true
			vertices[e.key.Vertex] = true
			adjacency = append(adjacency, vpd{e.key.Vertex, e.key.Predicate, e.key.Dir})

			if e.key.Predicate == rdf.TypeID && e.key.Dir == rdf.OUT {
				for _, t := range decodeSIDList(s.arena.read(e.offset, e.length)) {
					types[t] = true
				}
			}
		})
	}

	// Apply the (vertex, PredicateID, dir) -> predicates index only after
	// the full adjacency snapshot has been taken, so newly written index
	// entries are never mistaken for adjacency-list predicates.
	for _, a := range adjacency {
		s.appendSIDList(key{a.vertex, rdf.PredicateID, a.dir}, []uint64{a.pred}, true)
	}

	s.insertSIDList(key{0, rdf.TypeID, rdf.OUT}, sortedKeys(types))
	s.insertSIDList(key{0, rdf.PredicateID, rdf.OUT}, sortedKeys(preds))

	if s.versatile {
		s.insertSIDList(key{0, rdf.TypeID, rdf.IN}, sortedKeys(vertices))
	}
}

func sortedKeys(m map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

/*
walkBucketChain applies fn to every entry reachable from b, following
overflow chains. Used only during single-threaded index build.
*/
func (s *Store) walkBucketChain(b *bucket, fn func(entry)) {
	for b != nil {
		b.mu.Lock()
		entries := append([]entry(nil), b.entries...)
		next := b.overflow
		b.mu.Unlock()

		for _, e := range entries {
			fn(e)
		}
		b = next
	}
}
