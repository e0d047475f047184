/*
Copyright © 2026 the vecraster authors.
This file is part of vecraster.

vecraster is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vecraster is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vecraster.  If not, see <http://www.gnu.org/licenses/>.
*/

package vecraster

import (
	"errors"
	"sort"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

// tenByTen is a 10×10 grid of unit cells with its origin at (0, 0).
func tenByTen() *Grid {
	return &Grid{North: 10, South: 0, East: 10, West: 0, CellSize: 1, Rows: 10, Cols: 10}
}

// scanCells returns the cells emitted by g.ScanPart, in emission order.
func scanCells(t *testing.T, g *Grid, points []geom.Point) []Cell {
	var cells []Cell
	err := g.ScanPart(points, 1, func(c Cell) error {
		cells = append(cells, c)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return cells
}

// uniqueCells sorts cells and removes duplicates.
func uniqueCells(cells []Cell) []Cell {
	sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
	var o []Cell
	for i, c := range cells {
		if i == 0 || c != cells[i-1] {
			o = append(o, c)
		}
	}
	return o
}

func TestScanPartVertical(t *testing.T) {
	cells := scanCells(t, tenByTen(), []geom.Point{{X: 4.5, Y: 1.2}, {X: 4.5, Y: 8.7}})
	var want []Cell
	for r := 1; r <= 8; r++ {
		want = append(want, Cell{Row: r, Col: 4, Value: 1})
	}
	if diff := cmp.Diff(want, cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestScanPartHorizontal(t *testing.T) {
	cells := scanCells(t, tenByTen(), []geom.Point{{X: 1.2, Y: 4.5}, {X: 8.7, Y: 4.5}})
	var want []Cell
	for c := 1; c <= 8; c++ {
		want = append(want, Cell{Row: 5, Col: c, Value: 1})
	}
	if diff := cmp.Diff(want, cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestScanPartDiagonal(t *testing.T) {
	cells := scanCells(t, tenByTen(), []geom.Point{{X: 0.5, Y: 0.5}, {X: 9.5, Y: 9.5}})
	if len(cells) != 20 {
		t.Errorf("have %d emitted cells, want 20 (one per row and one per column)", len(cells))
	}
	var want []Cell
	for r := 0; r < 10; r++ {
		want = append(want, Cell{Row: r, Col: 9 - r, Value: 1})
	}
	if diff := cmp.Diff(want, uniqueCells(cells)); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestScanPartSquare(t *testing.T) {
	g := tenByTen()
	square := []geom.Point{
		{X: 2.5, Y: 2.5}, {X: 2.5, Y: 7.5}, {X: 7.5, Y: 7.5}, {X: 7.5, Y: 2.5}, {X: 2.5, Y: 2.5},
	}
	have := uniqueCells(scanCells(t, g, square))

	var want []Cell
	for r := 2; r <= 7; r++ {
		for c := 2; c <= 7; c++ {
			if r == 2 || r == 7 || c == 2 || c == 7 {
				want = append(want, Cell{Row: r, Col: c, Value: 1})
			}
		}
	}
	if diff := cmp.Diff(want, have); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestScanPartOutside(t *testing.T) {
	g := tenByTen()
	t.Run("disjoint", func(t *testing.T) {
		cells := scanCells(t, g, []geom.Point{{X: 20, Y: 20}, {X: 30, Y: 30}})
		if len(cells) != 0 {
			t.Errorf("have %v, want no cells", cells)
		}
	})
	t.Run("clipped", func(t *testing.T) {
		cells := scanCells(t, g, []geom.Point{{X: -5, Y: 5.5}, {X: 15, Y: 5.5}})
		var want []Cell
		for c := 0; c < 10; c++ {
			want = append(want, Cell{Row: 4, Col: c, Value: 1})
		}
		if diff := cmp.Diff(want, cells); diff != "" {
			t.Errorf("cells mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("single point", func(t *testing.T) {
		cells := scanCells(t, g, []geom.Point{{X: 5, Y: 5}})
		if len(cells) != 0 {
			t.Errorf("have %v, want no cells", cells)
		}
	})
}

func TestScanPartEmitError(t *testing.T) {
	wantErr := errors.New("stop")
	var n int
	err := tenByTen().ScanPart([]geom.Point{{X: 0.5, Y: 0.5}, {X: 9.5, Y: 9.5}}, 1, func(Cell) error {
		n++
		if n == 3 {
			return wantErr
		}
		return nil
	})
	if err != wantErr {
		t.Errorf("have error %v, want %v", err, wantErr)
	}
	if n != 3 {
		t.Errorf("emit called %d times, want 3", n)
	}
}

func TestIsBetween(t *testing.T) {
	for _, test := range []struct {
		v, t1, t2 float64
		want      bool
	}{
		{1, 1, 2, true},
		{2, 1, 2, true},
		{1, 2, 1, true},
		{2, 2, 1, true},
		{1.5, 1, 2, true},
		{1.5, 2, 1, true},
		{0.5, 1, 2, false},
		{2.5, 2, 1, false},
		{3, 3, 3, true},
	} {
		if have := isBetween(test.v, test.t1, test.t2); have != test.want {
			t.Errorf("isBetween(%g, %g, %g) = %v, want %v", test.v, test.t1, test.t2, have, test.want)
		}
	}
}

func TestCellLess(t *testing.T) {
	a := Cell{Row: 1, Col: 5, Value: 9}
	b := Cell{Row: 2, Col: 0, Value: 0}
	c := Cell{Row: 1, Col: 5, Value: 0}
	if !a.Less(b) || b.Less(a) {
		t.Error("row should take precedence over column")
	}
	if a.Less(c) || c.Less(a) {
		t.Error("value should not affect ordering")
	}
}
