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
	"devt.de/krotik/rhizome/partition"
	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
)

/*
NeedForkJoin reports whether q's current result table should be
partitioned across every server rather than continuing to run wherever
it happens to be (spec.md 6's "fork-join threshold"). There is nothing
to partition across a single server, so that case never forks. Beyond
that, this mirrors the reference's need_fork_join: without RDMA there
is no cheap way to read a peer's store in place, so fork-join is always
required. With RDMA, fork-join only pays off once the row count reaches
rdmaThreshold AND the upcoming pattern's subject isn't already the
column the rows were last partitioned on (LocalVar) - re-forking on the
same anchor would just reshuffle rows that are already co-located with
the data the next step needs.
*/
func NeedForkJoin(q *query.SPARQLQuery, numServers int, rdmaEnabled bool, rdmaThreshold int) bool {
	if numServers <= 1 {
		return false
	}
	if !rdmaEnabled {
		return true
	}

	subCol := -1
	if q.Step < len(q.Group.Patterns) {
		pattern := q.Group.Patterns[q.Step]
		if pattern.S.Resolve(q.Result.Vars()) == query.Known {
			subCol = q.Result.Var2Col(pattern.S.Var)
		}
	}

	return subCol != q.LocalVar && q.Result.RowCount() >= rdmaThreshold
}

/*
generateForkJoinQueries partitions q's current result rows across
numServers shards, one sub-query per non-empty shard, each carrying only
the rows that shard should continue executing (reference:
generate_sub_query). Rows are assigned by hashing the value bound to the
query's current pattern subject, so that the shard which will need to
resolve that vertex's edges already holds the partial row.
*/
func generateForkJoinQueries(q *query.SPARQLQuery, numServers int) []*query.SPARQLQuery {
	pattern := q.Group.Patterns[q.Step]

	splitCol := -1
	switch pattern.S.Kind {
	case query.Known, query.Unknown:
		splitCol = q.Result.Var2Col(pattern.S.Var)
	}

	names := q.Result.VarNames()
	rows := q.Result.Rows()

	shardRows := make([][][]uint64, numServers)
	shardAttrs := make([][][]rdf.AttrValue, numServers)

	for i, row := range rows {
		shard := 0
		if splitCol >= 0 && splitCol < len(row) {
			shard = partition.HashMod(row[splitCol], numServers)
		}
		shardRows[shard] = append(shardRows[shard], row)
		shardAttrs[shard] = append(shardAttrs[shard], q.Result.AttrRow(i))
	}

	var out []*query.SPARQLQuery
	for srv := range shardRows {
		if len(shardRows[srv]) == 0 {
			continue
		}

		sub := q.Clone()
		sub.Kind = query.KindForkJoin
		sub.Server = srv
		sub.ParentID = q.ID
		sub.LocalVar = splitCol

		sr := query.NewResult()
		for _, v := range names {
			sr.AddColumn(v)
		}
		sr.SetRows(shardRows[srv], shardAttrs[srv])
		sub.Result = sr

		out = append(out, sub)
	}
	return out
}

/*
generateUnionQueries builds one sub-query per alternative group in q's
UNION (reference: the union branch of execute_sparql_request), each
seeded with q's current result table so every branch starts from the
same bindings and its own pattern group.
*/
func generateUnionQueries(q *query.SPARQLQuery) []*query.SPARQLQuery {
	out := make([]*query.SPARQLQuery, len(q.Group.Unions))
	for i, alt := range q.Group.Unions {
		sub := q.Clone()
		sub.Group = *alt
		sub.Step = 0
		sub.Kind = query.KindUnion
		sub.UnionIdx = i
		sub.ParentID = q.ID
		out[i] = sub
	}
	return out
}

/*
generateOptionalQueries builds one sub-query per OPTIONAL block attached
to q's current group (reference: generate_optional_query), each seeded
with q's current result table so MergeOptional can left-outer-join the
OPTIONAL's findings back onto it.
*/
func generateOptionalQueries(q *query.SPARQLQuery) []*query.SPARQLQuery {
	out := make([]*query.SPARQLQuery, len(q.Group.Optional))
	for i, opt := range q.Group.Optional {
		sub := q.Clone()
		sub.Group = *opt
		sub.Step = 0
		sub.Kind = query.KindOptional
		sub.ParentID = q.ID
		out[i] = sub
	}
	return out
}
