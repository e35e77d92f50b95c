/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cluster

import (
	"context"
	"testing"
	"time"

	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/driver"
	"devt.de/krotik/rhizome/engine"
	"devt.de/krotik/rhizome/executor"
	"devt.de/krotik/rhizome/rdf"
	"devt.de/krotik/rhizome/store"
	"devt.de/krotik/rhizome/transport"
)

func newTestWorker(hub *transport.InProcessHub, server, thread int, s *store.Store) *engine.Worker {
	d := &driver.Driver{
		Executor: &executor.Context{
			Store:      s,
			Thread:     thread,
			Server:     server,
			NumServers: 2,
		},
		Dictionary: dict.NewMemory(),
		Replies:    driver.NewReplyMap(),
		Coder:      driver.NewCoder(server, thread),
		Server:     server,
		Thread:     thread,
		NumServers: 2,
	}
	return engine.NewWorker(server, thread, d, hub.Endpoint(server, thread, 8))
}

func TestRemoteFetcherRoundTrip(t *testing.T) {
	hub := transport.NewInProcessHub()

	s0 := store.New(64, false)
	s1 := store.New(64, false)

	w0 := newTestWorker(hub, 0, 0, s0)
	w1 := newTestWorker(hub, 1, 0, s1)
	w1.OnEdgeFetch = LocalAnswer(s1)

	s1.InsertTripleOut(rdf.Triple{S: 10, P: 20, O: 30}, false)
	s1.InsertAttrTriple(rdf.AttrTriple{S: 10, A: 99, V: rdf.IntValue(42)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w0.Run(ctx)
	go w1.Run(ctx)

	fetcher := &RemoteFetcher{
		Workers:     []*engine.Worker{w0},
		PeerEngines: func(int) int { return 1 },
	}

	fctx, fcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer fcancel()

	edges, err := fetcher.FetchEdges(fctx, 0, 1, 10, 20, rdf.OUT)
	if err != nil {
		t.Fatalf("FetchEdges: %v", err)
	}
	if len(edges) != 1 || edges[0] != 30 {
		t.Fatalf("unexpected edges: %v", edges)
	}

	actx, acancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acancel()

	v, found, err := fetcher.FetchAttr(actx, 0, 1, 10, 99)
	if err != nil {
		t.Fatalf("FetchAttr: %v", err)
	}
	if !found || v.Int != 42 {
		t.Fatalf("unexpected attr: %+v found=%v", v, found)
	}
}

func TestRemoteFetcherFailsWithoutPeer(t *testing.T) {
	hub := transport.NewInProcessHub()
	s0 := store.New(64, false)
	w0 := newTestWorker(hub, 0, 0, s0)

	// server 1's endpoint is never created, so Send fails immediately.
	fetcher := &RemoteFetcher{
		Workers:     []*engine.Worker{w0},
		PeerEngines: func(int) int { return 1 },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := fetcher.FetchEdges(ctx, 0, 1, 10, 20, rdf.OUT); err == nil {
		t.Fatalf("expected an error when the peer endpoint does not exist")
	}
}
