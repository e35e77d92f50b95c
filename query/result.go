/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import "devt.de/krotik/rhizome/rdf"

/*
Result is a flat, row-major table of vertex IDs produced by a query's
execution so far, plus a parallel attribute table for columns populated
by an attribute-kernel step (spec.md 3).
*/
type Result struct {
	cols int
	vars map[string]int // variable name -> column index

	rows  [][]uint64       // row-major vertex id table
	attrs [][]rdf.AttrValue // parallel attribute table; nil entries mean "no attribute column used"

	// Err surfaces an execution failure to an embedding application
	// without changing the wire merge semantics (SPEC_FULL.md 7's
	// "Result envelope" allowance).
	Err error
}

/*
NewResult creates an empty result table.
*/
func NewResult() Result {
	return Result{vars: make(map[string]int)}
}

/*
Clone returns a deep copy of r.
*/
func (r Result) Clone() Result {
	c := Result{
		cols: r.cols,
		vars: make(map[string]int, len(r.vars)),
		Err:  r.Err,
	}
	for k, v := range r.vars {
		c.vars[k] = v
	}
	c.rows = make([][]uint64, len(r.rows))
	for i, row := range r.rows {
		c.rows[i] = append([]uint64(nil), row...)
	}
	c.attrs = make([][]rdf.AttrValue, len(r.attrs))
	for i, row := range r.attrs {
		if row != nil {
			c.attrs[i] = append([]rdf.AttrValue(nil), row...)
		}
	}
	return c
}

/*
ColCount returns the number of columns currently in the table.
*/
func (r *Result) ColCount() int { return r.cols }

/*
RowCount returns the number of rows currently in the table.
*/
func (r *Result) RowCount() int { return len(r.rows) }

/*
Var2Col returns the column index bound to a variable name, or -1 if the
variable is not yet bound.
*/
func (r *Result) Var2Col(v string) int {
	if c, ok := r.vars[v]; ok {
		return c
	}
	return -1
}

/*
Vars returns the variable-to-column map.
*/
func (r *Result) Vars() map[string]int { return r.vars }

/*
VarNames returns the bound variable names ordered by column index, for
callers (fork-join sub-query seeding) that need to replay the column
layout onto a fresh Result.
*/
func (r *Result) VarNames() []string {
	names := make([]string, len(r.vars))
	for v, c := range r.vars {
		if c >= 0 && c < len(names) {
			names[c] = v
		}
	}
	return names
}

/*
AddColumn introduces a new variable, appending a column; returns its
index. A no-op (returns the existing index) if the variable is already
bound.
*/
func (r *Result) AddColumn(v string) int {
	if c, ok := r.vars[v]; ok {
		return c
	}
	idx := r.cols
	r.vars[v] = idx
	r.cols++
	return idx
}

/*
Get returns the vertex id at (row, col).
*/
func (r *Result) Get(row, col int) uint64 {
	return r.rows[row][col]
}

/*
Attr returns the attribute value at (row, col), if any.
*/
func (r *Result) Attr(row, col int) (rdf.AttrValue, bool) {
	if row >= len(r.attrs) || col >= len(r.attrs[row]) {
		return rdf.AttrValue{}, false
	}
	v := r.attrs[row][col]
	return v, v.Type != 0
}

/*
AttrRow returns the attribute row for row, or nil if that row has no
attribute column populated. Callers must not retain the slice across
further mutation of r.
*/
func (r *Result) AttrRow(row int) []rdf.AttrValue {
	if row < 0 || row >= len(r.attrs) {
		return nil
	}
	return r.attrs[row]
}

/*
AppendRow appends a new row built from prior with one or more additional
values, returning the new row's index. prior may be nil for the first
step of a query (spec.md 4.3 "Requires prior column count == 0").
*/
func (r *Result) AppendRow(prior []uint64, extra ...uint64) int {
	row := make([]uint64, 0, len(prior)+len(extra))
	row = append(row, prior...)
	row = append(row, extra...)

	for len(row) < r.cols {
		row = append(row, 0)
	}

	r.rows = append(r.rows, row)
	r.attrs = append(r.attrs, nil)
	return len(r.rows) - 1
}

/*
SetAttrCol records an attribute value for a row at a given column,
growing the attribute row as needed.
*/
func (r *Result) SetAttrCol(row, col int, v rdf.AttrValue) {
	for len(r.attrs[row]) <= col {
		r.attrs[row] = append(r.attrs[row], rdf.AttrValue{})
	}
	r.attrs[row][col] = v
}

/*
Rows returns the raw row slice - callers must not retain it across
further mutation of r.
*/
func (r *Result) Rows() [][]uint64 { return r.rows }

/*
SetRows replaces the row table wholesale (used by fork-join concatenation,
DISTINCT/ORDER/LIMIT/OFFSET and projection).
*/
func (r *Result) SetRows(rows [][]uint64, attrs [][]rdf.AttrValue) {
	r.rows = rows
	r.attrs = attrs
}

/*
MergeRows merges src's rows into r, aligning columns by variable name
rather than raw index (sub-queries dispatched to different shards or
union branches do not necessarily assign the same variable to the same
column). Used for plain fork-join concatenation and for UNION's
multiset union - both simply accumulate every row; UNION's "multiset"
wording just means duplicates across branches are kept, which a plain
append already does.
*/
func (r *Result) MergeRows(src *Result) {
	if len(r.vars) == 0 {
		r.vars = make(map[string]int, len(src.vars))
		for k, v := range src.vars {
			r.vars[k] = v
		}
		r.cols = src.cols
		r.rows = append(r.rows, cloneRows(src.rows)...)
		r.attrs = append(r.attrs, cloneAttrs(src.attrs)...)
		return
	}

	colMap := make(map[int]int, len(src.vars))
	for v, sc := range src.vars {
		colMap[sc] = r.AddColumn(v)
	}

	// earlier merges may have produced narrower rows than the column
	// count just grown by the AddColumn calls above - pad them.
	for i, row := range r.rows {
		if len(row) < r.cols {
			nrow := make([]uint64, r.cols)
			copy(nrow, row)
			r.rows[i] = nrow
		}
	}

	for i, srow := range src.rows {
		nrow := make([]uint64, r.cols)
		for sc, dc := range colMap {
			if sc < len(srow) {
				nrow[dc] = srow[sc]
			}
		}
		r.rows = append(r.rows, nrow)

		var nattr []rdf.AttrValue
		if i < len(src.attrs) && src.attrs[i] != nil {
			nattr = make([]rdf.AttrValue, r.cols)
			for sc, dc := range colMap {
				if sc < len(src.attrs[i]) {
					nattr[dc] = src.attrs[i][sc]
				}
			}
		}
		r.attrs = append(r.attrs, nattr)
	}
}

/*
MergeOptional left-outer-joins src into r on their shared bound
variables: rows in r with no matching src row survive unchanged (their
OPTIONAL columns stay unbound), rows with one or more matches are
expanded once per match. This is the reply-map merge semantics for a
dispatched OPTIONAL sub-query.
*/
func (r *Result) MergeOptional(src *Result) {
	type joinCol struct {
		name   string
		dstCol int
		srcCol int
	}

	var shared []joinCol
	var newVars []string
	for v, sc := range src.vars {
		if dc, ok := r.vars[v]; ok {
			shared = append(shared, joinCol{v, dc, sc})
		} else {
			newVars = append(newVars, v)
		}
	}

	newCols := make(map[string]int, len(newVars))
	for _, v := range newVars {
		newCols[v] = r.AddColumn(v)
	}

	oldRows := r.rows
	oldAttrs := r.attrs

	var newRows [][]uint64
	var newAttrs [][]rdf.AttrValue

	pad := func(row []uint64) []uint64 {
		nrow := make([]uint64, r.cols)
		copy(nrow, row)
		return nrow
	}
	padAttr := func(row []rdf.AttrValue) []rdf.AttrValue {
		if row == nil {
			return nil
		}
		nrow := make([]rdf.AttrValue, r.cols)
		copy(nrow, row)
		return nrow
	}

	for i, lrow := range oldRows {
		var lattr []rdf.AttrValue
		if i < len(oldAttrs) {
			lattr = oldAttrs[i]
		}

		matched := false
		for j, srow := range src.rows {
			ok := true
			for _, s := range shared {
				if lrow[s.dstCol] != srow[s.srcCol] {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			matched = true

			nrow := pad(lrow)
			for _, v := range newVars {
				nrow[newCols[v]] = srow[src.vars[v]]
			}
			newRows = append(newRows, nrow)
			newAttrs = append(newAttrs, padAttr(lattr))
			_ = j
		}

		if !matched {
			newRows = append(newRows, pad(lrow))
			newAttrs = append(newAttrs, padAttr(lattr))
		}
	}

	r.rows = newRows
	r.attrs = newAttrs
}

func cloneRows(rows [][]uint64) [][]uint64 {
	out := make([][]uint64, len(rows))
	for i, row := range rows {
		out[i] = append([]uint64(nil), row...)
	}
	return out
}

func cloneAttrs(attrs [][]rdf.AttrValue) [][]rdf.AttrValue {
	out := make([][]rdf.AttrValue, len(attrs))
	for i, row := range attrs {
		if row != nil {
			out[i] = append([]rdf.AttrValue(nil), row...)
		}
	}
	return out
}

/*
Project reduces the table to the given variables, in order, renumbering
columns and the variable map to match (spec.md 4.6's final step).
*/
func (r *Result) Project(vars []string) {
	cols := make([]int, len(vars))
	for i, v := range vars {
		cols[i] = r.Var2Col(v)
	}

	newRows := make([][]uint64, len(r.rows))
	newAttrs := make([][]rdf.AttrValue, len(r.rows))

	for i, row := range r.rows {
		nrow := make([]uint64, len(cols))
		for j, c := range cols {
			if c >= 0 && c < len(row) {
				nrow[j] = row[c]
			}
		}
		newRows[i] = nrow

		if r.attrs[i] != nil {
			nattr := make([]rdf.AttrValue, len(cols))
			for j, c := range cols {
				if c >= 0 && c < len(r.attrs[i]) {
					nattr[j] = r.attrs[i][c]
				}
			}
			newAttrs[i] = nattr
		}
	}

	newVars := make(map[string]int, len(vars))
	for i, v := range vars {
		newVars[v] = i
	}

	r.rows = newRows
	r.attrs = newAttrs
	r.vars = newVars
	r.cols = len(vars)
}
