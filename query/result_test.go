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

import (
	"testing"

	"devt.de/krotik/rhizome/rdf"
)

func TestResultAddColumnAndAppendRow(t *testing.T) {
	r := NewResult()

	cx := r.AddColumn("x")
	cy := r.AddColumn("y")
	if cx != 0 || cy != 1 {
		t.Fatalf("AddColumn(x,y) = %d,%d, want 0,1", cx, cy)
	}

	// re-adding an existing variable is a no-op that returns the same index.
	if got := r.AddColumn("x"); got != 0 {
		t.Fatalf("AddColumn(x) again = %d, want 0", got)
	}

	row := r.AppendRow(nil, 10, 20)
	if row != 0 {
		t.Fatalf("AppendRow = %d, want 0", row)
	}
	if got := r.Get(0, 0); got != 10 {
		t.Fatalf("Get(0,0) = %d, want 10", got)
	}
	if got := r.Get(0, 1); got != 20 {
		t.Fatalf("Get(0,1) = %d, want 20", got)
	}
	if r.RowCount() != 1 {
		t.Fatalf("RowCount() = %d, want 1", r.RowCount())
	}
}

func TestResultAppendRowPadsShortRows(t *testing.T) {
	r := NewResult()
	r.AddColumn("x")
	r.AddColumn("y")
	r.AddColumn("z")

	r.AppendRow(nil, 1) // only one value supplied for three columns
	row := r.Rows()[0]
	if len(row) != 3 {
		t.Fatalf("padded row = %v, want length 3", row)
	}
	if row[0] != 1 || row[1] != 0 || row[2] != 0 {
		t.Fatalf("padded row = %v, want [1 0 0]", row)
	}
}

func TestResultVar2ColAndVarNames(t *testing.T) {
	r := NewResult()
	r.AddColumn("x")
	r.AddColumn("y")

	if got := r.Var2Col("x"); got != 0 {
		t.Errorf("Var2Col(x) = %d, want 0", got)
	}
	if got := r.Var2Col("missing"); got != -1 {
		t.Errorf("Var2Col(missing) = %d, want -1", got)
	}

	names := r.VarNames()
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Fatalf("VarNames() = %v, want [x y]", names)
	}
}

func TestResultAttrRoundTrip(t *testing.T) {
	r := NewResult()
	r.AddColumn("x")
	r.AppendRow(nil, 1)

	r.SetAttrCol(0, 0, rdf.IntValue(42))

	v, ok := r.Attr(0, 0)
	if !ok || v.Int != 42 {
		t.Fatalf("Attr(0,0) = %+v, %v, want Int=42, true", v, ok)
	}

	if _, ok := r.Attr(5, 0); ok {
		t.Errorf("Attr(5,0) on an out-of-range row reported found")
	}
}

func TestResultCloneIsIndependent(t *testing.T) {
	r := NewResult()
	r.AddColumn("x")
	r.AppendRow(nil, 1)

	c := r.Clone()
	c.AppendRow(nil, 2)
	c.SetAttrCol(0, 0, rdf.IntValue(7))

	if r.RowCount() != 1 {
		t.Fatalf("original RowCount() = %d, want 1", r.RowCount())
	}
	if c.RowCount() != 2 {
		t.Fatalf("clone RowCount() = %d, want 2", c.RowCount())
	}
	if _, ok := r.Attr(0, 0); ok {
		t.Fatalf("mutating clone's attr column leaked into original")
	}
}

func TestResultMergeRowsFirstMergeAdoptsSchema(t *testing.T) {
	src := NewResult()
	src.AddColumn("x")
	src.AppendRow(nil, 1)
	src.AppendRow(nil, 2)

	dst := NewResult()
	dst.MergeRows(&src)

	if dst.ColCount() != 1 || dst.RowCount() != 2 {
		t.Fatalf("MergeRows into empty dst = cols %d rows %d, want 1,2", dst.ColCount(), dst.RowCount())
	}
	if dst.Get(0, 0) != 1 || dst.Get(1, 0) != 2 {
		t.Fatalf("MergeRows values = %v, want [1] [2]", dst.Rows())
	}
}

func TestResultMergeRowsAlignsByVariableName(t *testing.T) {
	dst := NewResult()
	dst.AddColumn("x")
	dst.AppendRow(nil, 100)

	src := NewResult()
	src.AddColumn("y")
	src.AddColumn("x")
	src.AppendRow(nil, 7, 200) // y=7, x=200

	dst.MergeRows(&src)

	if dst.RowCount() != 2 {
		t.Fatalf("RowCount() = %d, want 2", dst.RowCount())
	}

	xCol := dst.Var2Col("x")
	yCol := dst.Var2Col("y")
	if xCol < 0 || yCol < 0 {
		t.Fatalf("expected both x and y columns present, got vars %v", dst.Vars())
	}

	// the second row came from src: its x value must land in the shared x
	// column, not get overwritten by src's own column index.
	if dst.Get(1, xCol) != 200 {
		t.Fatalf("merged row x = %d, want 200", dst.Get(1, xCol))
	}
	if dst.Get(1, yCol) != 7 {
		t.Fatalf("merged row y = %d, want 7", dst.Get(1, yCol))
	}

	// the original row (which had no y binding) must come through as 0 in
	// the new y column, not break.
	if dst.Get(0, xCol) != 100 {
		t.Fatalf("original row x = %d, want 100", dst.Get(0, xCol))
	}
}

func TestResultMergeOptionalKeepsUnmatchedLeftRows(t *testing.T) {
	dst := NewResult()
	dst.AddColumn("x")
	dst.AppendRow(nil, 1)
	dst.AppendRow(nil, 2)

	src := NewResult()
	src.AddColumn("x")
	src.AddColumn("y")
	src.AppendRow(nil, 1, 99) // matches dst row x=1 only

	dst.MergeOptional(&src)

	if dst.RowCount() != 2 {
		t.Fatalf("MergeOptional RowCount() = %d, want 2 (no match duplication for single match)", dst.RowCount())
	}

	xCol := dst.Var2Col("x")
	yCol := dst.Var2Col("y")

	var gotMatched, gotUnmatched bool
	for i := 0; i < dst.RowCount(); i++ {
		x := dst.Get(i, xCol)
		y := dst.Get(i, yCol)
		if x == 1 && y == 99 {
			gotMatched = true
		}
		if x == 2 && y == 0 {
			gotUnmatched = true
		}
	}
	if !gotMatched {
		t.Errorf("expected a row with x=1,y=99 (OPTIONAL match)")
	}
	if !gotUnmatched {
		t.Errorf("expected a row with x=2,y=0 (OPTIONAL left-outer default)")
	}
}

func TestResultMergeOptionalExpandsMultipleMatches(t *testing.T) {
	dst := NewResult()
	dst.AddColumn("x")
	dst.AppendRow(nil, 1)

	src := NewResult()
	src.AddColumn("x")
	src.AddColumn("y")
	src.AppendRow(nil, 1, 10)
	src.AppendRow(nil, 1, 20)

	dst.MergeOptional(&src)

	if dst.RowCount() != 2 {
		t.Fatalf("MergeOptional RowCount() = %d, want 2 (one row per match)", dst.RowCount())
	}
}

func TestResultProject(t *testing.T) {
	r := NewResult()
	r.AddColumn("x")
	r.AddColumn("y")
	r.AddColumn("z")
	r.AppendRow(nil, 1, 2, 3)
	r.SetAttrCol(0, 1, rdf.IntValue(55))

	r.Project([]string{"z", "x"})

	if r.ColCount() != 2 {
		t.Fatalf("Project ColCount() = %d, want 2", r.ColCount())
	}
	if got := r.Get(0, 0); got != 3 {
		t.Errorf("Project row[0] (z) = %d, want 3", got)
	}
	if got := r.Get(0, 1); got != 1 {
		t.Errorf("Project row[1] (x) = %d, want 1", got)
	}
	if r.Var2Col("y") != -1 {
		t.Errorf("Project retained dropped variable y")
	}
}
