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
constToUnknownAttr resolves "<const> a ?x" where a is an attribute
predicate - the first pattern in the group, result table still empty.
Attribute triples are always stored OUT (spec.md 2), matching the
reference's assert(d == OUT).
*/
func constToUnknownAttr(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)

	v, found, err := e.attr(ctx, p.S.Value, p.P)
	if err != nil {
		return err
	}

	q.Result.AddColumn(p.O.Var)

	if !found {
		q.Result.SetRows(nil, nil)
		q.Step++
		return nil
	}

	q.Result.SetRows([][]uint64{{0}}, [][]rdf.AttrValue{{v}})
	q.Step++
	return nil
}

/*
knownToUnknownAttr resolves "?s a ?x" where ?s is already bound and a is
an attribute predicate. Rows whose subject has no such attribute are
dropped, not fanned out with a zero value.
*/
func knownToUnknownAttr(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	p := CurrentPattern(q)
	startCol := q.Result.Var2Col(p.S.Var)
	oldRows := q.Result.Rows()

	q.Result.AddColumn(p.O.Var)

	var newRows [][]uint64
	var newAttrs [][]rdf.AttrValue
	for i, row := range oldRows {
		v, found, err := e.attr(ctx, row[startCol], p.P)
		if err != nil {
			return err
		}
		if !found {
			continue
		}

		newRows = append(newRows, appendCol(row, 0))
		attrRow := append([]rdf.AttrValue(nil), q.Result.AttrRow(i)...)
		for len(attrRow) < len(newRows[len(newRows)-1]) {
			attrRow = append(attrRow, rdf.AttrValue{})
		}
		attrRow[len(attrRow)-1] = v
		newAttrs = append(newAttrs, attrRow)
	}

	q.Result.SetRows(newRows, newAttrs)
	q.Step++
	return nil
}
