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
Package executor implements the step executor (spec.md 4.3): the join
kernels that advance one triple pattern of a query's pattern group
against the local/global graph store, one call per pattern per step.

Each kernel is grounded on a same-named function in the reference's
Engine class (original_source/core/engine.hpp) - const_to_unknown,
known_to_unknown, known_to_known, known_to_const, index_to_unknown, plus
the VERSATILE-only unknown-predicate and attribute variants. The control
loop that calls Step repeatedly, the co-run optimisation and the
UNION/OPTIONAL/FILTER machinery around it live in package driver.
*/
package executor

import (
	"context"

	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
	"devt.de/krotik/rhizome/store"
)

/*
Context carries everything a kernel needs to reach the local store and,
through fetcher, a peer's store - the per-engine-thread state the
reference keeps as Engine member fields (tid, sid, global_num_servers,
global_mt_threshold, global_enable_vattr).
*/
type Context struct {
	Store   *store.Store
	Fetcher store.EdgeFetcher

	Thread      int
	Server      int
	NumServers  int
	NumEngines  int // index-stride for indexToUnknown's force-dispatch fan-out, matching the reference's global_mt_threshold (engine-thread count); kept separate from driver.NeedForkJoin's row/RDMA gate, which is an unrelated knob
	EnableVAttr bool
}

func (e *Context) edges(ctx context.Context, vertex, predicate uint64, dir rdf.Direction) ([]uint64, error) {
	return e.Store.EdgesGlobal(ctx, e.Fetcher, e.Thread, e.Server, e.NumServers, vertex, predicate, dir)
}

func (e *Context) attr(ctx context.Context, vertex, predicate uint64) (rdf.AttrValue, bool, error) {
	return e.Store.AttrGlobal(ctx, e.Fetcher, e.Thread, e.Server, e.NumServers, vertex, predicate)
}

/*
IsFinished reports whether every pattern in q's group has been executed.
*/
func IsFinished(q *query.SPARQLQuery) bool {
	return q.Step >= len(q.Group.Patterns)
}

/*
CurrentPattern returns the pattern the next Step call will execute.
*/
func CurrentPattern(q *query.SPARQLQuery) query.Pattern {
	return q.Group.Patterns[q.Step]
}

/*
StartFromIndex reports whether q's first pattern is a start-from-index
pattern (spec.md 4.3's "index->unknown"), which the driver force-dispatches
across every engine thread on step 0.
*/
func StartFromIndex(q *query.SPARQLQuery) bool {
	return len(q.Group.Patterns) > 0 && q.Group.Patterns[0].S.Kind == query.Index
}

func appendCol(row []uint64, vals ...uint64) []uint64 {
	nr := make([]uint64, 0, len(row)+len(vals))
	nr = append(nr, row...)
	nr = append(nr, vals...)
	return nr
}

/*
Step executes the pattern at q.Step against e, advancing q.Step and
growing/filtering q.Result. It dispatches on (subject kind, object kind,
predicate kind) exactly as the reference's execute_one_step does.

Returns rdf.ErrUnsupportedPattern (wrapped in an *rdf.Error) for pattern
shapes the reference marks as query-planning errors (e.g. const->const,
or starting from an unbound subject) - these indicate a malformed query
plan rather than a runtime fault, so Step reports them rather than
panicking.
*/
func Step(ctx context.Context, e *Context, q *query.SPARQLQuery) error {
	if q.Step == 0 && StartFromIndex(q) {
		return indexToUnknown(e, q)
	}

	p := CurrentPattern(q)
	vars := q.Result.Vars()
	sKind := p.S.Resolve(vars)
	oKind := p.O.Resolve(vars)

	if p.PredKind == query.PredUnknown {
		switch {
		case sKind == query.Const && oKind == query.Unknown:
			return constUnknownUnknown(ctx, e, q)
		case sKind == query.Known && oKind == query.Unknown:
			return knownUnknownUnknown(ctx, e, q)
		case sKind == query.Known && oKind == query.Const:
			return knownUnknownConst(ctx, e, q)
		default:
			return unsupported(sKind, oKind)
		}
	}

	if p.PredKind == query.PredAttr {
		switch {
		case sKind == query.Const && oKind == query.Unknown:
			return constToUnknownAttr(ctx, e, q)
		case sKind == query.Known && oKind == query.Unknown:
			return knownToUnknownAttr(ctx, e, q)
		default:
			return unsupported(sKind, oKind)
		}
	}

	switch {
	case sKind == query.Const && oKind == query.Unknown:
		return constToUnknown(ctx, e, q)
	case sKind == query.Known && oKind == query.Const:
		return knownToConst(ctx, e, q)
	case sKind == query.Known && oKind == query.Known:
		return knownToKnown(ctx, e, q)
	case sKind == query.Known && oKind == query.Unknown:
		return knownToUnknown(ctx, e, q)
	default:
		return unsupported(sKind, oKind)
	}
}

func unsupported(sKind, oKind query.VarKind) error {
	return &rdf.Error{
		Type:   rdf.ErrUnsupportedPattern,
		Detail: "subject/object kind combination has no join kernel",
	}
}
