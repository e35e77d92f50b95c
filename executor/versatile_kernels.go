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
Kernels for VERSATILE-mode patterns where the predicate itself is an
unbound variable (spec.md 4.3's "unknown-predicate" shapes). Resolving
these requires first listing the known predicates of a vertex through
the (vertex, PREDICATE_ID, d) local index entry before following each
one - grounded on the reference's const_unknown_unknown/
known_unknown_unknown/known_unknown_const.
*/
package executor

import (
	"context"

	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
)

/*
constUnknownUnknown resolves "<const> ?p ?x" - the first pattern in the
group, result table still empty.
*/
func constUnknownUnknown(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)

	pids, err := e.edges(ctx, p.S.Value, rdf.PredicateID, p.Dir)
	if err != nil {
		return err
	}

	var newRows [][]uint64
	for _, pid := range pids {
		vals, err := e.edges(ctx, p.S.Value, pid, p.Dir)
		if err != nil {
			return err
		}
		for _, v := range vals {
			newRows = append(newRows, []uint64{pid, v})
		}
	}

	q.Result.AddColumn(p.PredVar)
	q.Result.AddColumn(p.O.Var)
	q.Result.SetRows(newRows, make([][]rdf.AttrValue, len(newRows)))

	q.Step++
	return nil
}

/*
knownUnknownUnknown resolves "?s ?p ?x" where ?s is already bound,
fanning out every row over every (predicate, object) pair reachable from
that row's subject.
*/
func knownUnknownUnknown(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)
	startCol := q.Result.Var2Col(p.S.Var)
	oldRows := q.Result.Rows()

	q.Result.AddColumn(p.PredVar)
	q.Result.AddColumn(p.O.Var)

	var newRows [][]uint64
	for _, row := range oldRows {
		vertex := row[startCol]

		pids, err := e.edges(ctx, vertex, rdf.PredicateID, p.Dir)
		if err != nil {
			return err
		}

		for _, pid := range pids {
			vals, err := e.edges(ctx, vertex, pid, p.Dir)
			if err != nil {
				return err
			}
			for _, v := range vals {
				newRows = append(newRows, appendCol(row, pid, v))
			}
		}
	}

	q.Result.SetRows(newRows, make([][]rdf.AttrValue, len(newRows)))
	q.Step++
	return nil
}

/*
knownUnknownConst resolves "?s ?p <const>" where ?s is already bound:
for each row, scan every predicate of that row's subject looking for one
whose object equals the constant. The reference marks this kernel dead
code (no query planner in this build reaches it) but keeps it for
completeness; we do the same.
*/
func knownUnknownConst(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)
	startCol := q.Result.Var2Col(p.S.Var)
	oldRows := q.Result.Rows()

	q.Result.AddColumn(p.PredVar)

	var newRows [][]uint64
	for _, row := range oldRows {
		vertex := row[startCol]

		pids, err := e.edges(ctx, vertex, rdf.PredicateID, p.Dir)
		if err != nil {
			return err
		}

		for _, pid := range pids {
			vals, err := e.edges(ctx, vertex, pid, p.Dir)
			if err != nil {
				return err
			}
			for _, v := range vals {
				if v == p.O.Value {
					newRows = append(newRows, appendCol(row, pid))
					break
				}
			}
		}
	}

	q.Result.SetRows(newRows, make([][]rdf.AttrValue, len(newRows)))
	q.Step++
	return nil
}
