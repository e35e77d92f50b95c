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
	"testing"

	"devt.de/krotik/rhizome/rdf"
)

func TestEdgesEmptyWhenAbsent(t *testing.T) {
	s := New(16, false)

	got := s.Edges(1, 2, rdf.OUT)
	if got != nil {
		t.Fatalf("Edges on empty store = %v, want nil", got)
	}
}

func TestNewDefaultsBucketCount(t *testing.T) {
	s := New(0, false)
	if len(s.buckets) == 0 {
		t.Fatalf("New(0, false) allocated zero buckets")
	}
}

func TestInsertNormalAndEdges(t *testing.T) {
	s := New(16, false)

	pso := []rdf.Triple{
		{S: 1, P: 10, O: 100},
		{S: 1, P: 10, O: 50},
		{S: 1, P: 10, O: 100}, // duplicate, must be deduped
		{S: 1, P: 20, O: 7},
		{S: 2, P: 10, O: 9},
	}
	pos := []rdf.Triple{
		{S: 1, P: 10, O: 100},
		{S: 2, P: 10, O: 100},
	}

	s.InsertNormal(pso, pos)

	got := s.Edges(1, 10, rdf.OUT)
	want := []uint64{50, 100}
	if len(got) != len(want) {
		t.Fatalf("Edges(1,10,OUT) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Edges(1,10,OUT) = %v, want %v", got, want)
		}
	}

	in := s.Edges(100, 10, rdf.IN)
	wantIn := []uint64{1, 2}
	if len(in) != len(wantIn) {
		t.Fatalf("Edges(100,10,IN) = %v, want %v", in, wantIn)
	}
	for i := range wantIn {
		if in[i] != wantIn[i] {
			t.Fatalf("Edges(100,10,IN) = %v, want %v", in, wantIn)
		}
	}

	if got := s.Edges(1, 20, rdf.OUT); len(got) != 1 || got[0] != 7 {
		t.Fatalf("Edges(1,20,OUT) = %v, want [7]", got)
	}
}

func TestInsertNormalOrdersAcrossOverflow(t *testing.T) {
	s := New(1, false) // a single bucket forces overflow chaining

	var pso []rdf.Triple
	for i := uint64(0); i < 50; i++ {
		pso = append(pso, rdf.Triple{S: i, P: 1, O: i + 1000})
	}

	s.InsertNormal(pso, nil)

	for i := uint64(0); i < 50; i++ {
		got := s.Edges(i, 1, rdf.OUT)
		if len(got) != 1 || got[0] != i+1000 {
			t.Fatalf("Edges(%d,1,OUT) = %v, want [%d]", i, got, i+1000)
		}
	}
}

func TestAttrRoundTrip(t *testing.T) {
	s := New(16, false)

	s.InsertAttr([]rdf.AttrTriple{
		{S: 1, A: 5, V: rdf.IntValue(42)},
		{S: 1, A: 6, V: rdf.FloatValue(1.5)},
		{S: 1, A: 7, V: rdf.DoubleValue(2.75)},
	})

	v, ok := s.Attr(1, 5)
	if !ok || v.Type != rdf.AttrInt || v.Int != 42 {
		t.Fatalf("Attr(1,5) = %+v, %v", v, ok)
	}

	v, ok = s.Attr(1, 6)
	if !ok || v.Type != rdf.AttrFloat || v.Float != 1.5 {
		t.Fatalf("Attr(1,6) = %+v, %v", v, ok)
	}

	v, ok = s.Attr(1, 7)
	if !ok || v.Type != rdf.AttrDouble || v.Double != 2.75 {
		t.Fatalf("Attr(1,7) = %+v, %v", v, ok)
	}

	if _, ok := s.Attr(1, 999); ok {
		t.Fatalf("Attr(1,999) found a value, want not found")
	}
}

func TestAttrOverwriteLastWins(t *testing.T) {
	s := New(16, false)

	s.InsertAttr([]rdf.AttrTriple{
		{S: 1, A: 5, V: rdf.IntValue(1)},
		{S: 1, A: 5, V: rdf.IntValue(2)},
	})

	v, ok := s.Attr(1, 5)
	if !ok || v.Int != 2 {
		t.Fatalf("Attr(1,5) = %+v, want Int=2", v)
	}
}

func TestIndexEdgesLocal(t *testing.T) {
	s := New(16, false)

	s.InsertNormal([]rdf.Triple{{S: 0, P: 3, O: 9}, {S: 0, P: 3, O: 5}}, nil)

	got := s.IndexEdgesLocal(3, rdf.OUT)
	want := []uint64{5, 9}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("IndexEdgesLocal(3,OUT) = %v, want %v", got, want)
	}
}

func TestInsertIndexBuildsPredicateIndex(t *testing.T) {
	s := New(16, false)

	s.InsertNormal([]rdf.Triple{
		{S: 1, P: 10, O: 100},
		{S: 1, P: 20, O: 200},
	}, []rdf.Triple{
		{S: 1, P: 10, O: 100},
	})
	s.InsertIndex()

	preds := s.Edges(1, rdf.PredicateID, rdf.OUT)
	if len(preds) != 2 || preds[0] != 10 || preds[1] != 20 {
		t.Fatalf("predicate index for vertex 1 OUT = %v, want [10 20]", preds)
	}
}

func TestInsertIndexTypesAndPredicates(t *testing.T) {
	s := New(16, false)

	s.InsertNormal([]rdf.Triple{
		{S: 1, P: rdf.TypeID, O: 500},
		{S: 2, P: rdf.TypeID, O: 501},
		{S: 1, P: 10, O: 2},
	}, nil)
	s.InsertIndex()

	types := s.IndexEdgesLocal(rdf.TypeID, rdf.OUT)
	if len(types) != 2 {
		t.Fatalf("global types index = %v, want 2 entries", types)
	}

	preds := s.IndexEdgesLocal(rdf.PredicateID, rdf.OUT)
	found := false
	for _, p := range preds {
		if p == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("global predicate index = %v, want to contain 10", preds)
	}
}

func TestInsertIndexVersatileAddsVertexList(t *testing.T) {
	s := New(16, true)

	s.InsertNormal([]rdf.Triple{{S: 1, P: 10, O: 2}}, nil)
	s.InsertIndex()

	vertices := s.IndexEdgesLocal(rdf.TypeID, rdf.IN)
	if len(vertices) == 0 {
		t.Fatalf("versatile store has no global vertex list after InsertIndex")
	}
}

func TestScratchForEmptyByDefault(t *testing.T) {
	s := New(16, false)
	if got := s.ScratchFor(3); got != nil {
		t.Fatalf("ScratchFor(3) on fresh store = %v, want nil", got)
	}
}
