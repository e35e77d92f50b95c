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

	"devt.de/krotik/rhizome/partition"
	"devt.de/krotik/rhizome/rdf"
)

/*
EdgeFetcher is the narrow seam through which EdgesGlobal reaches a peer
server's store. Implementations live in package transport/cluster - this
keeps store free of any dependency on how bytes actually move between
servers (RDMA one-sided read, websocket message, or in-process channel;
spec.md's design note "One-sided remote reads... express as a trait").
*/
type EdgeFetcher interface {
	FetchEdges(ctx context.Context, thread, peer int, vertex, predicate uint64, dir rdf.Direction) ([]uint64, error)

	// FetchAttr fetches a single vertex's attribute value from peer.
	// found mirrors the reference's get_vertex_attr_global bool return.
	FetchAttr(ctx context.Context, thread, peer int, vertex, predicate uint64) (value rdf.AttrValue, found bool, err error)
}

/*
EdgesGlobal is the global variant of Edges (spec.md 4.2): if vertex is
owned by this server it is served locally; otherwise the list is fetched
from the owning peer through fetcher and cached in the calling thread's
scratch slot until the next remote read on the same thread.
*/
func (s *Store) EdgesGlobal(ctx context.Context, fetcher EdgeFetcher, thread, localServer, numServers int,
	vertex, predicate uint64, dir rdf.Direction) ([]uint64, error) {

	if partition.HashMod(vertex, numServers) == localServer {
		return s.Edges(vertex, predicate, dir), nil
	}

	owner := partition.HashMod(vertex, numServers)

	vals, err := fetcher.FetchEdges(ctx, thread, owner, vertex, predicate, dir)
	if err != nil {
		return nil, err
	}

	s.setScratch(thread, vals)

	return vals, nil
}

/*
AttrGlobal is the global variant of Attr (spec.md 4.2): served locally if
vertex is owned by this server, otherwise fetched from the owning peer.
Attribute triples follow the same subject-hash partitioning as adjacency
lists (spec.md 2's attribute triple (s, a, v)), so the ownership check is
identical to EdgesGlobal's.
*/
func (s *Store) AttrGlobal(ctx context.Context, fetcher EdgeFetcher, thread, localServer, numServers int,
	vertex, predicate uint64) (rdf.AttrValue, bool, error) {

	if partition.HashMod(vertex, numServers) == localServer {
		v, ok := s.Attr(vertex, predicate)
		return v, ok, nil
	}

	owner := partition.HashMod(vertex, numServers)
	return fetcher.FetchAttr(ctx, thread, owner, vertex, predicate)
}
