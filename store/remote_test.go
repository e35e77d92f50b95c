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
	"context"
	"errors"
	"testing"

	"devt.de/krotik/rhizome/partition"
	"devt.de/krotik/rhizome/rdf"
)

/*
fakeFetcher is a canned EdgeFetcher used to exercise EdgesGlobal/AttrGlobal's
ownership-routing logic without any real transport.
*/
type fakeFetcher struct {
	edges    []uint64
	attr     rdf.AttrValue
	attrOk   bool
	err      error
	calls    int
}

func (f *fakeFetcher) FetchEdges(ctx context.Context, thread, peer int, vertex, predicate uint64, dir rdf.Direction) ([]uint64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.edges, nil
}

func (f *fakeFetcher) FetchAttr(ctx context.Context, thread, peer int, vertex, predicate uint64) (rdf.AttrValue, bool, error) {
	f.calls++
	if f.err != nil {
		return rdf.AttrValue{}, false, f.err
	}
	return f.attr, f.attrOk, nil
}

func TestEdgesGlobalServesLocalWhenOwned(t *testing.T) {
	s := New(16, false)
	s.InsertNormal([]rdf.Triple{{S: 1, P: 10, O: 2}}, nil)

	const numServers = 1 // with a single server every vertex hashes local
	fetcher := &fakeFetcher{err: errors.New("must not be called")}

	got, err := s.EdgesGlobal(context.Background(), fetcher, 0, 0, numServers, 1, 10, rdf.OUT)
	if err != nil {
		t.Fatalf("EdgesGlobal: %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("EdgesGlobal called the fetcher for a locally-owned vertex")
	}
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("EdgesGlobal = %v, want [2]", got)
	}
}

func TestEdgesGlobalFetchesRemoteAndCachesScratch(t *testing.T) {
	s := New(16, false)

	const numServers = 4
	thread := 2

	// pick a vertex this server (id 0) does not own.
	var remoteVertex uint64
	for id := uint64(1); ; id++ {
		if partition.HashMod(id, numServers) != 0 {
			remoteVertex = id
			break
		}
	}

	fetcher := &fakeFetcher{edges: []uint64{7, 8, 9}}

	got, err := s.EdgesGlobal(context.Background(), fetcher, thread, 0, numServers, remoteVertex, 10, rdf.OUT)
	if err != nil {
		t.Fatalf("EdgesGlobal: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("EdgesGlobal called the fetcher %d times, want 1", fetcher.calls)
	}
	if len(got) != 3 || got[0] != 7 {
		t.Fatalf("EdgesGlobal = %v, want [7 8 9]", got)
	}

	scratch := s.ScratchFor(thread)
	if len(scratch) != 3 || scratch[0] != 7 {
		t.Fatalf("ScratchFor(%d) = %v, want the fetched result cached", thread, scratch)
	}
}

func TestEdgesGlobalPropagatesFetchError(t *testing.T) {
	s := New(16, false)

	const numServers = 4
	var remoteVertex uint64
	for id := uint64(1); ; id++ {
		if partition.HashMod(id, numServers) != 0 {
			remoteVertex = id
			break
		}
	}

	wantErr := errors.New("peer unreachable")
	fetcher := &fakeFetcher{err: wantErr}

	_, err := s.EdgesGlobal(context.Background(), fetcher, 0, 0, numServers, remoteVertex, 10, rdf.OUT)
	if !errors.Is(err, wantErr) {
		t.Fatalf("EdgesGlobal error = %v, want %v", err, wantErr)
	}
}

func TestAttrGlobalServesLocalWhenOwned(t *testing.T) {
	s := New(16, false)
	s.InsertAttr([]rdf.AttrTriple{{S: 1, A: 5, V: rdf.IntValue(42)}})

	fetcher := &fakeFetcher{err: errors.New("must not be called")}

	v, ok, err := s.AttrGlobal(context.Background(), fetcher, 0, 0, 1, 1, 5)
	if err != nil {
		t.Fatalf("AttrGlobal: %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("AttrGlobal called the fetcher for a locally-owned vertex")
	}
	if !ok || v.Int != 42 {
		t.Fatalf("AttrGlobal = %+v, %v, want Int=42, true", v, ok)
	}
}

func TestAttrGlobalFetchesRemote(t *testing.T) {
	s := New(16, false)

	const numServers = 4
	var remoteVertex uint64
	for id := uint64(1); ; id++ {
		if partition.HashMod(id, numServers) != 0 {
			remoteVertex = id
			break
		}
	}

	fetcher := &fakeFetcher{attr: rdf.FloatValue(1.25), attrOk: true}

	v, ok, err := s.AttrGlobal(context.Background(), fetcher, 0, 0, numServers, remoteVertex, 5)
	if err != nil {
		t.Fatalf("AttrGlobal: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("AttrGlobal called the fetcher %d times, want 1", fetcher.calls)
	}
	if !ok || v.Float != 1.25 {
		t.Fatalf("AttrGlobal = %+v, %v, want Float=1.25, true", v, ok)
	}
}
