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
	"fmt"

	"devt.de/krotik/rhizome/engine"
	"devt.de/krotik/rhizome/rdf"
	"devt.de/krotik/rhizome/store"
	"devt.de/krotik/rhizome/transport"
)

/*
RemoteFetcher implements store.EdgeFetcher over a transport.Transport
that cannot express a raw one-sided RemoteRead (InProcess and WS both
answer ErrRemoteReadUnsupported there): it sends an
transport.EdgeFetchRequest to the peer's worker and blocks on a reply
channel registered with the asking engine's own Worker until the
matching transport.EdgeFetchResponse arrives or ctx is done.

One RemoteFetcher is shared by every local engine's executor.Context -
FetchEdges/FetchAttr are told which Worker is asking via the caller-
supplied thread index into Workers.
*/
type RemoteFetcher struct {
	// Workers holds this server's own engine Workers, indexed by thread -
	// FetchEdges/FetchAttr register their reply waiter on
	// Workers[thread] and send the request from there, so the response
	// routes back to the same engine that is blocked waiting for it.
	Workers []*engine.Worker

	// PeerEngines is the peer server's engine count, used to pick a
	// destination engine for the request (same thread index convention
	// driver.dispatch.go uses for sub-query routing).
	PeerEngines func(server int) int
}

func (f *RemoteFetcher) ask(ctx context.Context, thread, peer int, req transport.EdgeFetchRequest) (transport.EdgeFetchResponse, error) {
	if thread < 0 || thread >= len(f.Workers) {
		return transport.EdgeFetchResponse{}, fmt.Errorf("cluster: no local worker for thread %d", thread)
	}
	w := f.Workers[thread]

	peerEngines := 1
	if f.PeerEngines != nil {
		if n := f.PeerEngines(peer); n > 0 {
			peerEngines = n
		}
	}
	dstEngine := thread % peerEngines

	req.ID = w.NextFetchID()
	req.ReplyServer = w.Server
	req.ReplyEngine = w.Thread

	replyCh := w.RegisterFetchWaiter(req.ID)
	defer w.UnregisterFetchWaiter(req.ID)

	bundle := transport.Bundle{Kind: transport.BundleEdgeFetchRequest, FetchReq: &req}
	if !w.Send(peer, dstEngine, bundle) {
		return transport.EdgeFetchResponse{}, fmt.Errorf("cluster: edge-fetch request to server %d engine %d would block", peer, dstEngine)
	}

	select {
	case resp := <-replyCh:
		if resp.Err != "" {
			return transport.EdgeFetchResponse{}, fmt.Errorf("cluster: remote fetch failed: %s", resp.Err)
		}
		return resp, nil
	case <-ctx.Done():
		return transport.EdgeFetchResponse{}, ctx.Err()
	}
}

/*
FetchEdges implements store.EdgeFetcher.
*/
func (f *RemoteFetcher) FetchEdges(ctx context.Context, thread, peer int, vertex, predicate uint64, dir rdf.Direction) ([]uint64, error) {
	resp, err := f.ask(ctx, thread, peer, transport.EdgeFetchRequest{
		Vertex:    vertex,
		Predicate: predicate,
		Dir:       byte(dir),
	})
	if err != nil {
		return nil, err
	}
	return resp.Edges, nil
}

/*
FetchAttr implements store.EdgeFetcher.
*/
func (f *RemoteFetcher) FetchAttr(ctx context.Context, thread, peer int, vertex, predicate uint64) (rdf.AttrValue, bool, error) {
	resp, err := f.ask(ctx, thread, peer, transport.EdgeFetchRequest{
		Vertex:    vertex,
		Predicate: predicate,
		Attr:      true,
	})
	if err != nil {
		return rdf.AttrValue{}, false, err
	}
	return rdf.AttrValue{
		Type:   rdf.AttrType(resp.Attr.Type),
		Int:    resp.Attr.Int,
		Float:  resp.Attr.Float,
		Double: resp.Attr.Double,
	}, resp.AttrFound, nil
}

/*
LocalAnswer builds the transport.EdgeFetchRequest handler a Worker
installs as OnEdgeFetch, answering directly from store s without going
through EdgesGlobal/AttrGlobal's ownership check (the request having
reached this server at all already implies local ownership - the asking
RemoteFetcher only sends to partition.HashMod(vertex, numServers)).
*/
func LocalAnswer(s *store.Store) func(*transport.EdgeFetchRequest) transport.EdgeFetchResponse {
	return func(req *transport.EdgeFetchRequest) transport.EdgeFetchResponse {
		if req.Attr {
			v, ok := s.Attr(req.Vertex, req.Predicate)
			return transport.EdgeFetchResponse{
				AttrFound: ok,
				Attr: transport.AttrValueMsg{
					Type:   byte(v.Type),
					Int:    v.Int,
					Float:  v.Float,
					Double: v.Double,
				},
			}
		}

		edges := s.Edges(req.Vertex, req.Predicate, rdf.Direction(req.Dir))
		return transport.EdgeFetchResponse{Edges: edges}
	}
}
