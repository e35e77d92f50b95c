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
Package transport implements the non-blocking bundle channel and
one-sided remote-read trait an engine's worker loop uses to reach other
engines, local or remote (spec.md 4.7, 6's "Transport adaptor").

Three implementations are provided: InProcess (Go channels, for
single-binary deployments and tests), WS (a gorilla/websocket duplex
channel, the message-fallback path when RDMA is unavailable - grounded
on the teacher's ecal.WebsocketConnection), and RDMA (an interface seam
only - a real one-sided RDMA transport needs kernel/NIC bypass that has
no idiomatic Go expression, so it is interfaced rather than faked).
*/
package transport

import "devt.de/krotik/rhizome/query"

/*
BundleKind tags the payload a Bundle carries on the wire.
*/
type BundleKind byte

/*
Bundle kinds (spec.md 6's "wire format").
*/
const (
	BundleSPARQLQuery BundleKind = iota
	BundleDynamicLoad
	BundleGstoreCheck
	BundleEdgeFetchRequest
	BundleEdgeFetchResponse
)

/*
DynamicLoad carries an incremental-load command to the owning server's
worker loop (loader.IncrementalLoad's wire counterpart).
*/
type DynamicLoad struct {
	Normal   []TripleMsg
	Attr     []AttrTripleMsg
	CheckDup bool
}

/*
TripleMsg is the wire shape of an rdf.Triple - kept as a plain struct
here (rather than importing rdf into the wire payload directly) so a
future binary codec does not have to reach back into the data-model
package to know field order.
*/
type TripleMsg struct {
	S, P, O uint64
	Dir     byte // rdf.Direction: OUT inserts the OUT-indexed copy, IN the IN-indexed copy
}

/*
AttrTripleMsg is the wire shape of an rdf.AttrTriple.
*/
type AttrTripleMsg struct {
	S, A     uint64
	AttrType byte
	Int      int64
	Float    float32
	Double   float64
}

/*
GstoreCheck carries a consistency self-check request plus the address to
reply to (store.GstoreCheck's wire counterpart).
*/
type GstoreCheck struct {
	IndexCheck  bool
	NormalCheck bool

	ReplyServer int
	ReplyEngine int
}

/*
AttrValueMsg is the wire shape of an rdf.AttrValue, reusing the same
type/int/float/double encoding as AttrTripleMsg.
*/
type AttrValueMsg struct {
	Type   byte
	Int    int32
	Float  float32
	Double float64
}

/*
EdgeFetchRequest asks the owning server for one vertex's adjacency list
(store.EdgeFetcher.FetchEdges) or attribute value (FetchAttr) - the
message-passing counterpart of a one-sided RDMA read, for transports
that cannot express RemoteRead directly (spec.md's design note "One-
sided remote reads... express as a trait"; InProcess and WS both answer
ErrRemoteReadUnsupported from RemoteRead and route EdgeFetcher calls
through this request/response pair instead).

ID is unique per (ReplyServer, ReplyEngine) pair and echoed back on the
matching EdgeFetchResponse so the waiting caller can be found again.
*/
type EdgeFetchRequest struct {
	ID uint64

	ReplyServer int
	ReplyEngine int

	Vertex    uint64
	Predicate uint64
	Dir       byte // meaningful only when Attr is false

	Attr bool // true requests FetchAttr semantics, false FetchEdges
}

/*
EdgeFetchResponse answers an EdgeFetchRequest. Err carries a non-empty
message on failure; Edges/Attr/Found are meaningful only when Err is
empty.
*/
type EdgeFetchResponse struct {
	ID  uint64
	Err string

	Edges []uint64

	Attr      AttrValueMsg
	AttrFound bool
}

/*
Bundle is the tagged union carried over Send/TryRecv: exactly one of
Query/Load/Check/FetchReq/FetchResp is meaningful, selected by Kind.
*/
type Bundle struct {
	Kind       BundleKind
	Query      *query.SPARQLQuery
	Load       *DynamicLoad
	Check      *GstoreCheck
	FetchReq   *EdgeFetchRequest
	FetchResp  *EdgeFetchResponse
}
