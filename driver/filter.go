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
	"sync"

	"github.com/dlclark/regexp2"

	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rdf"
)

/*
BlankID is the sentinel column value meaning "this variable is not
bound on this row" - tested by FILTER's bound() builtin (spec.md 4.5).
*/
const BlankID uint64 = 0

var (
	iriPattern     = regexp2.MustCompile(`^(<[^<>"{}|^`+"`"+`\\]*>|.*:.*)$`, 0)
	literalPattern = regexp2.MustCompile(`^('[^'\\\n\r]*'|"[^"\\\n\r]*")(@[a-zA-Z]+(-[a-zA-Z0-9]+)*|\^\^(<[^<>"{}|^`+"`"+`\\]*>|.*:.*))?$`, 0)
)

// regexCache compiles each FILTER regex node's pattern once, keyed by
// the node's identity (spec.md's Design Notes: "regex compiled once per
// filter node").
var regexCache sync.Map // map[*query.Filter]*regexp2.Regexp

/*
Filter applies q's FILTER expressions against q.Result, keeping only
rows every expression is satisfied on (spec.md 4.5). A no-op if q has no
filters. FILTER can be nested inside UNION/OPTIONAL sub-groups, so the
driver calls this once per finished pattern group, not just at the very
end of a query.
*/
func Filter(q *query.SPARQLQuery, dictionary dict.Dictionary) {
	if len(q.Group.Filters) == 0 {
		return
	}

	sat := make([]bool, q.Result.RowCount())
	for i := range sat {
		sat[i] = true
	}

	for _, f := range q.Group.Filters {
		generalFilter(f, &q.Result, dictionary, sat)
	}

	rows := q.Result.Rows()
	var newRows [][]uint64
	var newAttrs [][]rdf.AttrValue
	for row, ok := range sat {
		if ok {
			newRows = append(newRows, rows[row])
			newAttrs = append(newAttrs, q.Result.AttrRow(row))
		}
	}
	q.Result.SetRows(newRows, newAttrs)
}

func generalFilter(f *query.Filter, result *query.Result, d dict.Dictionary, sat []bool) {
	switch f.Op {
	case query.FilterAnd:
		generalFilter(f.Left, result, d, sat)
		generalFilter(f.Right, result, d, sat)

	case query.FilterOr:
		sat1 := append([]bool(nil), sat...)
		sat2 := append([]bool(nil), sat...)
		generalFilter(f.Left, result, d, sat1)
		generalFilter(f.Right, result, d, sat2)
		for i := range sat {
			sat[i] = sat[i] && (sat1[i] || sat2[i])
		}

	case query.FilterLT, query.FilterLE, query.FilterGT, query.FilterGE, query.FilterEQ, query.FilterNE:
		relationalFilter(f, result, d, sat)

	case query.FilterBound:
		boundFilter(f, result, sat)

	case query.FilterIsIRI:
		regexClassFilter(f, result, d, sat, iriPattern)

	case query.FilterIsLiteral:
		regexClassFilter(f, result, d, sat, literalPattern)

	case query.FilterRegex:
		regexFilter(f, result, d, sat)
	}
}

func getStr(arg string, result *query.Result, d dict.Dictionary, row int) string {
	if col := result.Var2Col(arg); col >= 0 {
		id := result.Get(row, col)
		if d != nil && d.Exist(id) {
			return d.Str(id)
		}
		return ""
	}
	return "\"" + arg + "\""
}

func relationalFilter(f *query.Filter, result *query.Result, d dict.Dictionary, sat []bool) {
	for row := 0; row < len(sat); row++ {
		if !sat[row] {
			continue
		}

		a := getStr(f.Arg1, result, d, row)
		b := getStr(f.Arg2, result, d, row)

		var ok bool
		switch f.Op {
		case query.FilterEQ:
			ok = a == b
		case query.FilterNE:
			ok = a != b
		case query.FilterLT:
			ok = a < b
		case query.FilterLE:
			ok = a <= b
		case query.FilterGT:
			ok = a > b
		case query.FilterGE:
			ok = a >= b
		}
		if !ok {
			sat[row] = false
		}
	}
}

func boundFilter(f *query.Filter, result *query.Result, sat []bool) {
	col := result.Var2Col(f.Arg1)
	for row := range sat {
		if !sat[row] {
			continue
		}
		if col < 0 || result.Get(row, col) == BlankID {
			sat[row] = false
		}
	}
}

func regexClassFilter(f *query.Filter, result *query.Result, d dict.Dictionary, sat []bool, pattern *regexp2.Regexp) {
	col := result.Var2Col(f.Arg1)
	for row := range sat {
		if !sat[row] {
			continue
		}

		id := result.Get(row, col)
		str := ""
		if d != nil && d.Exist(id) {
			str = d.Str(id)
		}

		matched, _ := pattern.MatchString(str)
		if !matched {
			sat[row] = false
		}
	}
}

func regexFilter(f *query.Filter, result *query.Result, d dict.Dictionary, sat []bool) {
	compiled, ok := regexCache.Load(f)
	if !ok {
		compiled, _ = regexCache.LoadOrStore(f, compileFilterRegex(f))
	}
	pattern := compiled.(*regexp2.Regexp)

	col := result.Var2Col(f.Arg1)
	for row := range sat {
		if !sat[row] {
			continue
		}

		id := result.Get(row, col)
		str := ""
		if d != nil && d.Exist(id) {
			str = d.Str(id)
		}
		// variable-bound strings are stored with surrounding quotes in
		// the dictionary (reference: regex_filter's front()/back() check).
		if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
			str = str[1 : len(str)-1]
		}

		matched, _ := pattern.MatchString(str)
		if !matched {
			sat[row] = false
		}
	}
}

func compileFilterRegex(f *query.Filter) *regexp2.Regexp {
	opts := regexp2.None
	if f.Flags == "i" {
		opts = regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(f.Pattern, opts)
	if err != nil {
		// an invalid pattern matches nothing rather than panicking a
		// running query.
		re, _ = regexp2.Compile(`a^`, 0)
	}
	return re
}
