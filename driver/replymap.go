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
Package driver implements the query driver loop (spec.md 4.4): the
five-step advance cycle that walks a query through the step executor,
applies the co-run optimisation, dispatches UNION/OPTIONAL/fork-join
sub-queries and collects their replies, then runs FILTER and final
processing before handing the result back to the proxy.

Grounded on the reference's Engine class (original_source/core/
engine.hpp) - Reply_Map, execute_sparql_request's dispatch logic,
do_corun, generate_*_query, filter/general_filter/relational_filter,
and final_process/Compare/ReduceCmp.
*/
package driver

import (
	"sync"

	"devt.de/krotik/rhizome/query"
)

/*
ReplyMap collects the replies of a fork-join/UNION/OPTIONAL dispatch
until every sub-query has reported back, merging each reply into the
parent's result table as it arrives (spec.md 4.4's Reply Map).
*/
type ReplyMap struct {
	mu    sync.Mutex
	items map[uint64]*replyItem
}

type replyItem struct {
	count  int
	parent *query.SPARQLQuery
	merged query.Result
}

/*
NewReplyMap creates an empty reply map. One ReplyMap is owned by each
engine thread, exactly as in the reference.
*/
func NewReplyMap() *ReplyMap {
	return &ReplyMap{items: make(map[uint64]*replyItem)}
}

/*
PutParentRequest registers a parent query as waiting for count
sub-query replies. For an OPTIONAL dispatch that has already produced
its required-side rows, the merge seed starts from the parent's own
result (mirrors the reference seeding merged_reply.result with r.result
when r.is_optional() && r.optional_dispatched).
*/
func (m *ReplyMap) PutParentRequest(r *query.SPARQLQuery, count int) {
	it := &replyItem{count: count, parent: r}
	if (r.Kind == query.KindOptional || len(r.Group.Optional) > 0) && r.OptionalDispatched {
		it.merged = r.Result.Clone()
	} else {
		it.merged = query.NewResult()
	}

	m.mu.Lock()
	m.items[r.ID] = it
	m.mu.Unlock()
}

/*
Has reports whether id names a pending entry in this map - used by the
worker loop to tell a freshly dispatched child (ParentID names some
other engine's entry, or none at all) from a reply arriving for a
dispatch this engine itself registered.
*/
func (m *ReplyMap) Has(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.items[id]
	return ok
}

/*
PutReply merges r into its parent's pending entry and reports whether
every expected reply has now arrived.
*/
func (m *ReplyMap) PutReply(r *query.SPARQLQuery) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[r.ParentID]
	if !ok {
		return false
	}

	it.count--

	switch {
	case (it.parent.Kind == query.KindOptional || len(it.parent.Group.Optional) > 0) && it.parent.OptionalDispatched:
		it.merged.MergeOptional(&r.Result)
	default:
		// KindUnion's "multiset union" and KindForkJoin/KindPlain's plain
		// concatenation are the same operation (spec.md 4.4).
		it.merged.MergeRows(&r.Result)
	}

	return it.count == 0
}

/*
GetMergedReply returns the parent query with its result replaced by the
merged reply table, and forgets the pending entry.
*/
func (m *ReplyMap) GetMergedReply(pid uint64) *query.SPARQLQuery {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.items[pid]
	r := it.parent.Clone()
	r.Result = it.merged
	delete(m.items, pid)
	return r
}
