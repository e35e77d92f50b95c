/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package driver

import (
	"context"
	"testing"

	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/executor"
	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
	"devt.de/krotik/rhizome/store"
)

type driverFetcher struct{ t *testing.T }

func (f driverFetcher) FetchEdges(context.Context, int, int, uint64, uint64, rdf.Direction) ([]uint64, error) {
	f.t.Fatal("unexpected remote edge fetch in a single-server fixture")
	return nil, nil
}

func (f driverFetcher) FetchAttr(context.Context, int, int, uint64, uint64) (rdf.AttrValue, bool, error) {
	f.t.Fatal("unexpected remote attr fetch in a single-server fixture")
	return rdf.AttrValue{}, false, nil
}

const (
	drvKnows uint64 = 100
	drvAlice uint64 = 1
	drvBob   uint64 = 2
	drvCarol uint64 = 3
)

func newDriver(t *testing.T) *Driver {
	s := store.New(64, false)

	out := []rdf.Triple{
		{S: drvAlice, P: drvKnows, O: drvBob},
		{S: drvAlice, P: drvKnows, O: drvCarol},
		{S: drvBob, P: drvKnows, O: drvCarol},
	}
	in := []rdf.Triple{
		{S: drvAlice, P: drvKnows, O: drvBob},
		{S: drvAlice, P: drvKnows, O: drvCarol},
		{S: drvBob, P: drvKnows, O: drvCarol},
	}
	s.InsertNormal(out, in)
	s.InsertIndex()

	return &Driver{
		Executor: &executor.Context{
			Store:       s,
			Fetcher:     driverFetcher{t},
			Thread:      0,
			Server:      0,
			NumServers:  1,
			NumEngines:  1,
		},
		Dictionary:    dict.NewMemory(),
		Replies:       NewReplyMap(),
		Coder:         NewCoder(0, 0),
		Server:        0,
		Thread:        0,
		NumServers:    1,
		NumEngines:    1,
		RDMAEnabled:   false,
		RDMAThreshold: 0,
	}
}

func TestAdvanceRunsLocalQueryToCompletion(t *testing.T) {
	d := newDriver(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(drvAlice), P: drvKnows, Dir: rdf.OUT, O: query.VarTerm("y")},
		},
	}, []string{"y"})
	q.Server, q.Thread = 0, 0
	q.OriginServer, q.OriginThread = 0, 0

	res, err := d.Advance(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Done {
		t.Fatalf("expected a single-server query with no fork-join trigger to finish in one Advance call, got dispatch=%v", res.Dispatch)
	}
	if got := res.Query.Result.RowCount(); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
}

func TestAdvanceAppliesLimitBeforeReturning(t *testing.T) {
	d := newDriver(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(drvAlice), P: drvKnows, Dir: rdf.OUT, O: query.VarTerm("y")},
		},
	}, []string{"y"})
	q.Distinct = true
	q.Limit = 1
	q.Server, q.Thread = 0, 0
	q.OriginServer, q.OriginThread = 0, 0

	res, err := d.Advance(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Done {
		t.Fatal("expected the query to finish locally")
	}
	if got := res.Query.Result.RowCount(); got != 1 {
		t.Fatalf("expected LIMIT 1 to cut the result down to 1 row, got %d", got)
	}
}

func TestAdvanceForwardsNonOwnerReplyToDispatcher(t *testing.T) {
	d := newDriver(t)

	q := query.NewQuery(query.Group{
		Patterns: []query.Pattern{
			{S: query.ConstTerm(drvAlice), P: drvKnows, Dir: rdf.OUT, O: query.VarTerm("y")},
		},
	}, []string{"y"})

	// simulate a fork-join shard: this engine is not where the original
	// query was issued, so on finish the reply must be routed back to
	// whoever dispatched it (encoded in ParentID), not handed to the
	// caller as Done.
	parentCoder := NewCoder(2, 3)
	q.ParentID = parentCoder.NextID()
	q.Server, q.Thread = 0, 0
	q.OriginServer, q.OriginThread = 9, 9

	res, err := d.Advance(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if res.Done {
		t.Fatal("a non-owner reply must not be reported as Done")
	}
	if len(res.Dispatch) != 1 {
		t.Fatalf("expected exactly one forwarding target, got %d", len(res.Dispatch))
	}
	if res.Dispatch[0].Server != 2 || res.Dispatch[0].Thread != 3 {
		t.Fatalf("expected the reply to route back to (2,3), got (%d,%d)", res.Dispatch[0].Server, res.Dispatch[0].Thread)
	}
}
