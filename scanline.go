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
	"fmt"

	"github.com/ctessum/geom"
)

// Cell is a raster cell with the value to be written to it.
// Cells are ordered by row and then by column; Value does not take part
// in the ordering.
type Cell struct {
	Row, Col int
	Value    float64
}

// Less returns whether c comes before o in row-major order.
func (c Cell) Less(o Cell) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)=%g", c.Row, c.Col, c.Value)
}

// ScanPart finds the cells crossed by the chain of segments between
// consecutive points and passes each of them to emit together with
// value. The chain is treated as open: no closing segment is added.
//
// Every row within the extent of the part is intersected with every
// non-horizontal segment, and every column with every non-vertical
// segment. The two sweeps overlap, so the same cell may be emitted more
// than once. The sweeps are limited to the rows and columns of g, but the
// interpolated column (or row) of a cell can still fall outside of the
// grid when a segment extends past its edge; callers must check emitted
// cells with Contains.
//
// If emit returns an error, scanning stops and the error is returned.
func (g *Grid) ScanPart(points []geom.Point, value float64, emit func(Cell) error) error {
	if len(points) < 2 {
		return nil
	}
	b := PartBounds(points, 0, len(points))

	topRow, bottomRow := g.RowOf(b.Max.Y), g.RowOf(b.Min.Y)
	if bottomRow >= 0 && topRow < g.Rows {
		topRow, bottomRow = g.clampRow(topRow), g.clampRow(bottomRow)
		for row := topRow; row <= bottomRow; row++ {
			y := g.YOf(row)
			for i := 0; i < len(points)-1; i++ {
				p1, p2 := points[i], points[i+1]
				if !isBetween(y, p1.Y, p2.Y) || p1.Y == p2.Y {
					continue
				}
				x := p1.X + (y-p1.Y)/(p2.Y-p1.Y)*(p2.X-p1.X)
				if err := emit(Cell{Row: row, Col: g.ColOf(x), Value: value}); err != nil {
					return err
				}
			}
		}
	}

	leftCol, rightCol := g.ColOf(b.Min.X), g.ColOf(b.Max.X)
	if rightCol >= 0 && leftCol < g.Cols {
		leftCol, rightCol = g.clampCol(leftCol), g.clampCol(rightCol)
		for col := leftCol; col <= rightCol; col++ {
			x := g.XOf(col)
			for i := 0; i < len(points)-1; i++ {
				p1, p2 := points[i], points[i+1]
				if !isBetween(x, p1.X, p2.X) || p1.X == p2.X {
					continue
				}
				y := p1.Y + (x-p1.X)/(p2.X-p1.X)*(p2.Y-p1.Y)
				if err := emit(Cell{Row: g.RowOf(y), Col: col, Value: value}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// isBetween returns whether v lies between t1 and t2, inclusive, whatever
// the order of t1 and t2.
func isBetween(v, t1, t2 float64) bool {
	if v == t1 || v == t2 {
		return true
	}
	if t2 > t1 {
		return v > t1 && v < t2
	}
	return v > t2 && v < t1
}
