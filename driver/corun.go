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
	"context"

	"devt.de/krotik/rhizome/executor"
	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
)

/*
runCorun executes the reference's co-run optimisation (original_source/
core/engine.hpp's do_corun): instead of fanning the current result table
out through every pattern between CorunStep and FetchStep row by row, it
dedups the corun variable's distinct values, replays just that window as
a tiny isolated sub-query seeded with those distinct values, and then
semi-joins the outer table against the sub-query's surviving corun-variable
values.

The reference picks between a qsort+binary-search join and a hash-set
join depending on the window's result arity (2 vs >2 columns), a
cache-locality trade-off specific to sorting raw C arrays; a single
membership set on the corun variable itself serves every arity here,
since the semi-join only ever needs to know whether a given corun value
survived the window, not what else the window's own pattern variables
resolved to.
*/
func runCorun(ctx context.Context, e *executor.Context, q *query.SPARQLQuery) error {
	corunVar := q.Group.Patterns[q.CorunStep].S.Var
	corunCol := q.Result.Var2Col(corunVar)

	unique := make(map[uint64]struct{})
	for _, row := range q.Result.Rows() {
		unique[row[corunCol]] = struct{}{}
	}

	subPatterns := append([]query.Pattern(nil), q.Group.Patterns[q.CorunStep:q.FetchStep]...)

	subResult := query.NewResult()
	subResult.AddColumn(corunVar)

	seedRows := make([][]uint64, 0, len(unique))
	for v := range unique {
		seedRows = append(seedRows, []uint64{v})
	}
	subResult.SetRows(seedRows, make([][]rdf.AttrValue, len(seedRows)))

	subReq := &query.SPARQLQuery{
		Group:     query.Group{Patterns: subPatterns},
		Result:    subResult,
		LocalVar:  -1,
		CorunStep: -1,
	}

	for !executor.IsFinished(subReq) {
		if err := executor.Step(ctx, e, subReq); err != nil {
			return err
		}
	}

	subCorunCol := subReq.Result.Var2Col(corunVar)
	members := make(map[uint64]struct{}, subReq.Result.RowCount())
	for _, srow := range subReq.Result.Rows() {
		members[srow[subCorunCol]] = struct{}{}
	}

	oldRows := q.Result.Rows()
	var newRows [][]uint64
	var newAttrs [][]rdf.AttrValue
	for i, row := range oldRows {
		if _, ok := members[row[corunCol]]; ok {
			newRows = append(newRows, row)
			newAttrs = append(newAttrs, q.Result.AttrRow(i))
		}
	}

	q.Result.SetRows(newRows, newAttrs)
	q.Step = q.FetchStep
	return nil
}
