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

	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
)

/*
constToUnknown resolves "<const> p ?x" - the query plan requires this to
be the very first pattern (result has no columns yet).
*/
func constToUnknown(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)

	vals, err := e.edges(ctx, p.S.Value, p.P, p.Dir)
	if err != nil {
		return err
	}

	q.Result.AddColumn(p.O.Var)

	rows := make([][]uint64, len(vals))
	for i, v := range vals {
		rows[i] = []uint64{v}
	}
	q.Result.SetRows(rows, make([][]rdf.AttrValue, len(rows)))

	q.Step++
	return nil
}

/*
knownToUnknown resolves "?s p ?x" where ?s is already bound, fanning out
every existing row over every edge found for that row's subject.
*/
func knownToUnknown(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)
	startCol := q.Result.Var2Col(p.S.Var)
	oldRows := q.Result.Rows()

	q.Result.AddColumn(p.O.Var)

	var newRows [][]uint64
	for _, row := range oldRows {
		vals, err := e.edges(ctx, row[startCol], p.P, p.Dir)
		if err != nil {
			return err
		}
		for _, v := range vals {
			newRows = append(newRows, appendCol(row, v))
		}
	}

	q.Result.SetRows(newRows, make([][]rdf.AttrValue, len(newRows)))
	q.Step++
	return nil
}

/*
knownToKnown resolves "?s p ?o" where both ?s and ?o are already bound,
keeping only rows for which the edge actually exists (a semi-join, not a
fan-out).
*/
func knownToKnown(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)
	startCol := q.Result.Var2Col(p.S.Var)
	endCol := q.Result.Var2Col(p.O.Var)
	oldRows := q.Result.Rows()

	var newRows [][]uint64
	var newAttrs [][]rdf.AttrValue
	for i, row := range oldRows {
		vals, err := e.edges(ctx, row[startCol], p.P, p.Dir)
		if err != nil {
			return err
		}

		target := row[endCol]
		for _, v := range vals {
			if v == target {
				newRows = append(newRows, row)
				if e.EnableVAttr {
					newAttrs = append(newAttrs, q.Result.AttrRow(i))
				} else {
					newAttrs = append(newAttrs, nil)
				}
				break
			}
		}
	}

	q.Result.SetRows(newRows, newAttrs)
	q.Step++
	return nil
}

/*
knownToConst resolves "?s p <const>" where ?s is already bound, keeping
only rows for which the edge to the constant object exists.
*/
func knownToConst(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)
	startCol := q.Result.Var2Col(p.S.Var)
	oldRows := q.Result.Rows()

	var newRows [][]uint64
	var newAttrs [][]rdf.AttrValue
	for i, row := range oldRows {
		vals, err := e.edges(ctx, row[startCol], p.P, p.Dir)
		if err != nil {
			return err
		}

		for _, v := range vals {
			if v == p.O.Value {
				newRows = append(newRows, row)
				if e.EnableVAttr {
					newAttrs = append(newAttrs, q.Result.AttrRow(i))
				} else {
					newAttrs = append(newAttrs, nil)
				}
				break
			}
		}
	}

	q.Result.SetRows(newRows, newAttrs)
	q.Step++
	return nil
}

/*
indexToUnknown resolves a start-from-index pattern: enumerate every
vertex carrying a given type, or every subject/object of a given
predicate, from the local index zone only (spec.md 4.2's local index
entries). The driver force-dispatches this pattern to every engine
thread on every server before calling Step, so each thread must only
take its own stride-sharded slice of the index list - q.Thread encodes
which slice (negative meaning "same server", per spec.md 9c). The
stride is the engine-thread count (e.NumEngines), not the fork-join row
threshold - the reference's global_mt_threshold plays both roles, but
here that threshold defaults to 1000 while a local index list is
typically much shorter, so sharing it would starve every thread but one.
*/
func indexToUnknown(e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)

	if p.P != rdf.PredicateID && p.P != rdf.TypeID {
		return &rdf.Error{Type: rdf.ErrUnsupportedPattern, Detail: "index pattern must target PREDICATE_ID or TYPE_ID"}
	}

	res := e.Store.IndexEdgesLocal(p.S.Value, p.Dir)

	start := q.Thread
	stride := e.NumEngines
	if start < 0 {
		start = -start - 1
		stride = e.NumEngines - 1
	}

	var newRows [][]uint64
	for k := start; k < len(res); k += stride {
		newRows = append(newRows, []uint64{res[k]})
	}

	q.Result.AddColumn(p.O.Var)
	q.Result.SetRows(newRows, make([][]rdf.AttrValue, len(newRows)))

	q.Step++
	q.LocalVar = -1
	return nil
}
