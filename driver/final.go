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
	"sort"
	"strings"

	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
)

/*
FinalProcess runs DISTINCT, ORDER BY, OFFSET, LIMIT and the final
projection to q.Required, in that order (spec.md 4.6). Only the proxy
thread that owns a query's reply runs this - every other engine just
forwards its partial result up the fork-join tree.
*/
func FinalProcess(q *query.SPARQLQuery, dictionary dict.Dictionary) {
	if q.Blind || q.Result.RowCount() == 0 {
		return
	}

	if q.Distinct || len(q.Order) > 0 {
		applyDistinctAndOrder(q, dictionary)
	}

	if q.Offset > 0 {
		applyOffset(q, q.Offset)
	}

	if q.Limit > 0 {
		applyLimit(q, q.Limit)
	}

	q.Result.Project(q.Required)
}

func applyDistinctAndOrder(q *query.SPARQLQuery, dictionary dict.Dictionary) {
	rows := q.Result.Rows()
	size := len(rows)

	attrs := make([][]rdf.AttrValue, size)
	for i := range rows {
		attrs[i] = q.Result.AttrRow(i)
	}

	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}

	if q.Distinct {
		sort.SliceStable(idx, func(a, b int) bool {
			return rowLessOnRequired(rows[idx[a]], rows[idx[b]], q)
		})

		p := 0
		for k := 1; k < size; k++ {
			if rowsEqualOnRequired(rows[idx[p]], rows[idx[k]], q) {
				continue
			}
			p++
			idx[p] = idx[k]
		}
		idx = idx[:p+1]
	}

	if len(q.Order) > 0 {
		sort.SliceStable(idx, func(a, b int) bool {
			return compareOrder(rows[idx[a]], rows[idx[b]], q, dictionary) < 0
		})
	}

	newRows := make([][]uint64, len(idx))
	newAttrs := make([][]rdf.AttrValue, len(idx))
	for i, id := range idx {
		newRows[i] = rows[id]
		newAttrs[i] = attrs[id]
	}
	q.Result.SetRows(newRows, newAttrs)
}

/*
rowLessOnRequired orders rows by the projected (Required) columns only,
matching rowsEqualOnRequired's notion of equality - DISTINCT's sort and
its adjacent-duplicate collapse must agree on which columns make two
rows "the same", or duplicates equal on the projection but differing in
a column Required drops can end up non-adjacent after the sort.
*/
func rowLessOnRequired(a, b []uint64, q *query.SPARQLQuery) bool {
	for _, v := range q.Required {
		col := q.Result.Var2Col(v)
		if col < 0 {
			continue
		}
		if a[col] != b[col] {
			return a[col] < b[col]
		}
	}
	return false
}

func rowsEqualOnRequired(a, b []uint64, q *query.SPARQLQuery) bool {
	for _, v := range q.Required {
		col := q.Result.Var2Col(v)
		if col < 0 {
			continue
		}
		if a[col] != b[col] {
			return false
		}
	}
	return true
}

func compareOrder(a, b []uint64, q *query.SPARQLQuery, dictionary dict.Dictionary) int {
	for _, o := range q.Order {
		col := q.Result.Var2Col(o.Var)
		if col < 0 {
			continue
		}

		sa := strOf(a[col], dictionary)
		sb := strOf(b[col], dictionary)

		cmp := strings.Compare(sa, sb)
		if cmp == 0 {
			continue
		}
		if o.Desc {
			cmp = -cmp
		}
		return cmp
	}
	return 0
}

func strOf(id uint64, dictionary dict.Dictionary) string {
	if dictionary != nil && dictionary.Exist(id) {
		return dictionary.Str(id)
	}
	return ""
}

func applyOffset(q *query.SPARQLQuery, offset int) {
	rows := q.Result.Rows()
	if offset >= len(rows) {
		q.Result.SetRows(nil, nil)
		return
	}

	attrs := make([][]rdf.AttrValue, len(rows))
	for i := range rows {
		attrs[i] = q.Result.AttrRow(i)
	}

	q.Result.SetRows(append([][]uint64(nil), rows[offset:]...), append([][]rdf.AttrValue(nil), attrs[offset:]...))
}

func applyLimit(q *query.SPARQLQuery, limit int) {
	rows := q.Result.Rows()
	if limit >= len(rows) {
		return
	}

	attrs := make([][]rdf.AttrValue, len(rows))
	for i := range rows {
		attrs[i] = q.Result.AttrRow(i)
	}

	q.Result.SetRows(append([][]uint64(nil), rows[:limit]...), append([][]rdf.AttrValue(nil), attrs[:limit]...))
}
