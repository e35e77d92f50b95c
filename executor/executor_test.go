/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package executor

import (
	"context"
	"errors"
	"testing"

	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
	"devt.de/krotik/rhizome/store"
)

// unreachableFetcher fails the test if a kernel ever takes the remote
// path - every fixture below is single-server so every lookup must stay
// local.
type unreachableFetcher struct{ t *testing.T }

func (f unreachableFetcher) FetchEdges(context.Context, int, int, uint64, uint64, rdf.Direction) ([]uint64, error) {
	f.t.Fatal("unexpected remote edge fetch in a single-server fixture")
	return nil, nil
}

func (f unreachableFetcher) FetchAttr(context.Context, int, int, uint64, uint64) (rdf.AttrValue, bool, error) {
	f.t.Fatal("unexpected remote attr fetch in a single-server fixture")
	return rdf.AttrValue{}, false, nil
}

const (
	knows   uint64 = 100
	name    uint64 = 101
	age     uint64 = 102
	alice   uint64 = 1
	bob     uint64 = 2
	carol   uint64 = 3
)

func newFixture(t *testing.T) *Context {
	s := store.New(64, true)

	out := []rdf.Triple{
		{S: alice, P: knows, O: bob},
		{S: alice, P: knows, O: carol},
		{S: bob, P: knows, O: carol},
	}
	in := []rdf.Triple{
		{S: alice, P: knows, O: bob},
		{S: alice, P: knows, O: carol},
		{S: bob, P: knows, O: carol},
	}
	s.InsertNormal(out, in)
	s.InsertAttr([]rdf.AttrTriple{
		{S: alice, A: age, V: rdf.IntValue(30)},
		{S: bob, A: age, V: rdf.IntValue(40)},
	})
	s.InsertIndex()

	return &Context{
		Store:       s,
		Fetcher:     unreachableFetcher{t},
		Thread:      0,
		Server:      0,
		NumServers:  1,
		NumEngines:  1,
		EnableVAttr: true,
	}
}

func TestConstToUnknown(t *testing.T) {
	e := newFixture(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(alice), P: knows, Dir: rdf.OUT, O: query.VarTerm("x")},
		},
	}, []string{"x"})

	if err := Step(context.Background(), e, q); err != nil {
		t.Fatal(err)
	}

	if got := q.Result.RowCount(); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
	if !IsFinished(q) {
		t.Fatal("expected query to be finished after its only pattern")
	}
}

func TestKnownToUnknownFansOut(t *testing.T) {
	e := newFixture(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(alice), P: knows, Dir: rdf.OUT, O: query.VarTerm("y")},
			{S: query.VarTerm("y"), P: knows, Dir: rdf.OUT, O: query.VarTerm("z")},
		},
	}, []string{"y", "z"})

	if err := Step(context.Background(), e, q); err != nil {
		t.Fatal(err)
	}
	if err := Step(context.Background(), e, q); err != nil {
		t.Fatal(err)
	}

	// alice knows {bob, carol}; only bob knows carol.
	if got := q.Result.RowCount(); got != 1 {
		t.Fatalf("expected 1 row, got %d", got)
	}

	yCol := q.Result.Var2Col("y")
	zCol := q.Result.Var2Col("z")
	if q.Result.Get(0, yCol) != bob || q.Result.Get(0, zCol) != carol {
		t.Fatalf("unexpected row: y=%d z=%d", q.Result.Get(0, yCol), q.Result.Get(0, zCol))
	}
}

func TestKnownToConstFilters(t *testing.T) {
	e := newFixture(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(alice), P: knows, Dir: rdf.OUT, O: query.VarTerm("y")},
			{S: query.VarTerm("y"), P: knows, Dir: rdf.OUT, O: query.ConstTerm(carol)},
		},
	}, []string{"y"})

	if err := Step(context.Background(), e, q); err != nil {
		t.Fatal(err)
	}
	if err := Step(context.Background(), e, q); err != nil {
		t.Fatal(err)
	}

	if got := q.Result.RowCount(); got != 1 {
		t.Fatalf("expected 1 row, got %d", got)
	}
	if q.Result.Get(0, q.Result.Var2Col("y")) != bob {
		t.Fatalf("expected y=bob, got %d", q.Result.Get(0, q.Result.Var2Col("y")))
	}
}

func TestConstToUnknownAttr(t *testing.T) {
	e := newFixture(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(alice), P: age, PredKind: query.PredAttr, Dir: rdf.OUT, O: query.VarTerm("a")},
		},
	}, []string{"a"})

	if err := Step(context.Background(), e, q); err != nil {
		t.Fatal(err)
	}

	if got := q.Result.RowCount(); got != 1 {
		t.Fatalf("expected 1 row, got %d", got)
	}

	v, ok := q.Result.Attr(0, q.Result.Var2Col("a"))
	if !ok || v.Int != 30 {
		t.Fatalf("expected attr 30, got %v (ok=%v)", v, ok)
	}
}

func TestIndexToUnknown(t *testing.T) {
	e := newFixture(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.IndexTerm(rdf.TypeID), P: rdf.TypeID, Dir: rdf.IN, O: query.VarTerm("v")},
		},
	}, []string{"v"})

	if err := Step(context.Background(), e, q); err != nil {
		t.Fatal(err)
	}

	if got := q.Result.RowCount(); got != 3 {
		t.Fatalf("expected 3 rows (alice, bob, carol), got %d", got)
	}
	if q.LocalVar != -1 {
		t.Fatalf("expected LocalVar sentinel cleared, got %d", q.LocalVar)
	}
}

func TestUnsupportedPatternShape(t *testing.T) {
	e := newFixture(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(alice), P: knows, Dir: rdf.OUT, O: query.ConstTerm(bob)},
		},
	}, nil)

	err := Step(context.Background(), e, q)
	if err == nil {
		t.Fatal("expected an error for const->const pattern")
	}
	if !errors.Is(err, rdf.ErrUnsupportedPattern) {
		t.Fatalf("expected ErrUnsupportedPattern, got %v", err)
	}
}
