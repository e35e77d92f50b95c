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
Package query holds the SPARQL query object which flows through proxy,
driver and executor: the pattern group, the result table, and the
control fields used to route and resume a query across engines.

Everything here is pure data - the join kernels live in package executor,
the control-flow loop lives in package driver. This mirrors the
reference's SPARQLQuery struct (original_source/core/engine.hpp), which
is likewise a plain data carrier walked by free functions.
*/
package query

import (
	"github.com/google/uuid"

	"devt.de/krotik/rhizome/rdf"
)

/*
VarKind classifies how a pattern's subject/object is bound at the point
the pattern executes.
*/
type VarKind byte

/*
Variable kinds recognised by the step executor (spec.md 4.3).
*/
const (
	Const VarKind = iota
	Known
	Unknown
	Index // "start-from-index": s holds a predicate/type id, p is PREDICATE_ID or TYPE_ID
)

/*
PredKind classifies a pattern's predicate slot.
*/
type PredKind byte

/*
Predicate kinds.
*/
const (
	PredBound PredKind = iota // p is a concrete predicate id
	PredUnknown               // VERSATILE only: p is itself a free variable
	PredAttr                  // p is an attribute predicate (pred_type > 0)
)

/*
Term is one side (subject or object) of a triple pattern.
*/
type Term struct {
	Kind  VarKind
	Value uint64 // meaningful when Kind == Const or Index
	Var   string // meaningful when Kind == Known or Unknown
}

/*
ConstTerm creates a bound-literal term.
*/
func ConstTerm(v uint64) Term { return Term{Kind: Const, Value: v} }

/*
VarTerm creates a variable term; Known vs. Unknown is resolved against
the result table's variable map at execution time by the caller
(pattern.Resolve).
*/
func VarTerm(name string) Term { return Term{Kind: Unknown, Var: name} }

/*
IndexTerm creates a start-from-index term (s holds a predicate or type
id).
*/
func IndexTerm(v uint64) Term { return Term{Kind: Index, Value: v} }

/*
Pattern is a single triple pattern (s, p, d, o) in a BGP.
*/
type Pattern struct {
	S        Term
	P        uint64
	PredVar  string // meaningful when PredKind == PredUnknown: the variable bound to the predicate column (VERSATILE mode, spec.md 4.3)
	PredKind PredKind
	Dir      rdf.Direction
	O        Term
}

/*
Resolve computes the effective VarKind of a term given the result table's
current variable bindings: Unknown if the variable has no column yet,
Known otherwise. Const and Index terms resolve to themselves.
*/
func (t Term) Resolve(vars map[string]int) VarKind {
	if t.Kind != Unknown {
		return t.Kind
	}
	if _, bound := vars[t.Var]; bound {
		return Known
	}
	return Unknown
}

/*
Filter is a node in a FILTER expression tree (spec.md 4.5).
*/
type FilterOp byte

/*
Supported filter operators.
*/
const (
	FilterAnd FilterOp = iota
	FilterOr
	FilterLT
	FilterLE
	FilterGT
	FilterGE
	FilterEQ
	FilterNE
	FilterBound
	FilterIsIRI
	FilterIsLiteral
	FilterRegex
)

/*
Filter is an expression tree node. Leaves reference a variable (Arg1) and
optionally a second variable/value (Arg2); regex additionally carries a
pattern and flags.
*/
type Filter struct {
	Op      FilterOp
	Arg1    string // variable name
	Arg2    string // variable name, meaningful for comparators
	Left    *Filter
	Right   *Filter
	Pattern string // regex pattern, meaningful for FilterRegex
	Flags   string // regex flags, e.g. "i"
}

/*
Group is a basic graph pattern plus its nested UNION/OPTIONAL groups and
FILTER expressions.
*/
type Group struct {
	Patterns []Pattern
	Optional []*Group
	Unions   []*Group
	Filters  []*Filter
}

/*
OrderEntry is one ORDER BY term.
*/
type OrderEntry struct {
	Var  string
	Desc bool
}

/*
SPARQLQuery is the query object passed through the engine (spec.md 3,
control fields from spec.md 6).
*/
type SPARQLQuery struct {
	ID       uint64
	ParentID uint64
	TraceID  uuid.UUID // debug/log correlation only, not part of the wire routing id

	OriginServer int
	OriginThread int // proxy thread which should receive the final reply

	Server int // current owning server
	Thread int // destination engine (negative sentinel: same server, engine -tid-1)

	Step          int
	LocalVar      int // -1 once an index step has cleared the anchor (spec.md 9c)
	ForceDispatch bool

	CorunStep int // -1 means "no co-run window configured" (spec.md 4.4)
	FetchStep int

	Priority int

	Group Group

	Required  []string // projection (required_vars)
	Distinct  bool
	Order     []OrderEntry
	Offset    int
	Limit     int // 0 or negative means "no limit"

	Kind      QueryKind // which merge semantics a reply map entry for this query should use
	UnionIdx  int       // which union alternative this sub-query represents, if Kind == KindUnion
	Blind     bool      // discard results on merge

	Result Result

	OptionalDispatched bool
	UnionDispatched    bool
}

/*
QueryKind distinguishes why a sub-query was spawned, so the reply map
knows which merge semantics to apply when its replies come back.
*/
type QueryKind byte

/*
Query kinds.
*/
const (
	KindPlain QueryKind = iota
	KindForkJoin
	KindUnion
	KindOptional
)

/*
NewQuery creates a fresh top-level query with sane defaults.
*/
func NewQuery(group Group, required []string) *SPARQLQuery {
	return &SPARQLQuery{
		TraceID:   uuid.New(),
		LocalVar:  -1,
		CorunStep: -1,
		Group:     group,
		Required:  required,
		Result:    NewResult(),
	}
}

/*
Clone returns a deep-enough copy of q suitable for seeding a sub-query:
the pattern group is shared (read-only after planning), the result table
is copied.
*/
func (q *SPARQLQuery) Clone() *SPARQLQuery {
	clone := *q
	clone.Result = q.Result.Clone()
	return &clone
}
