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

import "devt.de/krotik/rhizome/rdf"

/*
GstoreCheck runs the store's consistency self-check (spec.md 4.2) and
returns the number of problems found. indexCheck verifies the local
index invariants (spec.md 8 "Index completeness"); normalCheck verifies
that every adjacency-list entry decodes to a non-empty, sorted,
deduplicated list.
*/
func (s *Store) GstoreCheck(indexCheck, normalCheck bool) int {
	errCount := 0

	if normalCheck {
		for _, b := range s.buckets {
			s.walkBucketChain(b, func(e entry) {
				if e.typ != typeSIDList {
					return
				}
				vals := decodeSIDList(s.arena.read(e.offset, e.length))
				if len(vals) == 0 {
					errCount++
					return
				}
				for i := 1; i < len(vals); i++ {
					if vals[i] <= vals[i-1] {
						errCount++
						return
					}
				}
			})
		}
	}

	if indexCheck {
		for _, b := range s.buckets {
			s.walkBucketChain(b, func(e entry) {
				if e.key.Vertex == 0 || e.typ != typeSIDList || e.key.Predicate == rdf.PredicateID {
					return
				}

				preds := s.Edges(e.key.Vertex, rdf.PredicateID, e.key.Dir)
				found := false
				for _, p := range preds {
					if p == e.key.Predicate {
						found = true
						break
					}
				}
				if !found {
					errCount++
				}
			})
		}
	}

	return errCount
}

/*
Statistics summarizes per-server graph cardinality - recovered from the
reference's generate_statistic, which the original used to feed its
(out-of-scope) query planner. Useful here for ops visibility and tests
without requiring a planner.
*/
type Statistics struct {
	Vertices   int
	Types      int
	Predicates int
}

/*
Statistics computes cardinality counts using the local index entries
built by InsertIndex.
*/
func (s *Store) Statistics() Statistics {
	return Statistics{
		Vertices:   len(s.IndexEdgesLocal(rdf.TypeID, rdf.IN)),
		Types:      len(s.IndexEdgesLocal(rdf.TypeID, rdf.OUT)),
		Predicates: len(s.IndexEdgesLocal(rdf.PredicateID, rdf.OUT)),
	}
}
