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
	"math"

	"github.com/ctessum/geom"
)

// autoCellDivisions is the number of cells that the shorter side of the
// layer extent is divided into when no cell size is given.
const autoCellDivisions = 500.

// Grid specifies the geometry of a raster: its extent, cell size, and
// the number of rows and columns. Row 0 is the northernmost row and
// column 0 is the westernmost column. Cells are square.
type Grid struct {
	North, South, East, West float64
	CellSize                 float64
	Rows, Cols               int
}

// NewGrid creates a grid covering the given extent. The number of rows and
// columns is rounded up so that the whole extent is covered.
func NewGrid(north, south, east, west, cellSize float64) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("vecraster: invalid cell size %g", cellSize)
	}
	if !(north > south) || !(east > west) {
		return nil, fmt.Errorf("vecraster: invalid extent: north=%g, south=%g, east=%g, west=%g",
			north, south, east, west)
	}
	return &Grid{
		North:    north,
		South:    south,
		East:     east,
		West:     west,
		CellSize: cellSize,
		Rows:     int(math.Ceil((north - south) / cellSize)),
		Cols:     int(math.Ceil((east - west) / cellSize)),
	}, nil
}

// GridFromBounds creates a grid that covers b plus half a cell on every
// side. The east and south edges are then moved so that the grid is a
// whole number of cells across.
func GridFromBounds(b *geom.Bounds, cellSize float64) (*Grid, error) {
	if b == nil || b.Empty() {
		return nil, fmt.Errorf("vecraster: cannot create a grid from empty bounds")
	}
	g, err := NewGrid(b.Max.Y+cellSize/2, b.Min.Y-cellSize/2,
		b.Max.X+cellSize/2, b.Min.X-cellSize/2, cellSize)
	if err != nil {
		return nil, err
	}
	g.East = g.West + float64(g.Cols)*cellSize
	g.South = g.North - float64(g.Rows)*cellSize
	return g, nil
}

// AutoCellSize returns the cell size that divides the shorter side of b
// into 500 cells. If b is degenerate in one direction the other direction
// is used.
func AutoCellSize(b *geom.Bounds) (float64, error) {
	if b == nil || b.Empty() {
		return 0, fmt.Errorf("vecraster: cannot derive a cell size from empty bounds")
	}
	h := (b.Max.Y - b.Min.Y) / autoCellDivisions
	w := (b.Max.X - b.Min.X) / autoCellDivisions
	switch {
	case h > 0 && w > 0:
		return math.Min(h, w), nil
	case h > 0:
		return h, nil
	case w > 0:
		return w, nil
	}
	return 0, fmt.Errorf("vecraster: cannot derive a cell size: layer extent has zero area and length")
}

// RowOf returns the index of the row that contains y. The result is not
// checked against the grid dimensions.
func (g *Grid) RowOf(y float64) int {
	return int(math.Floor((g.North - y) / g.CellSize))
}

// ColOf returns the index of the column that contains x. The result is
// not checked against the grid dimensions.
func (g *Grid) ColOf(x float64) int {
	return int(math.Floor((x - g.West) / g.CellSize))
}

// YOf returns the y coordinate of the center of the given row.
func (g *Grid) YOf(row int) float64 {
	return g.North - g.CellSize/2 - float64(row)*g.CellSize
}

// XOf returns the x coordinate of the center of the given column.
func (g *Grid) XOf(col int) float64 {
	return g.West + g.CellSize/2 + float64(col)*g.CellSize
}

// Contains returns whether (row, col) is a cell of g.
func (g *Grid) Contains(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// Bounds returns the extent of g.
func (g *Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.West, Y: g.South},
		Max: geom.Point{X: g.East, Y: g.North},
	}
}

func (g *Grid) String() string {
	return fmt.Sprintf("%d rows × %d cols, cell size %g, N=%g S=%g E=%g W=%g",
		g.Rows, g.Cols, g.CellSize, g.North, g.South, g.East, g.West)
}

// clampRow limits row to the rows of g.
func (g *Grid) clampRow(row int) int {
	if row < 0 {
		return 0
	}
	if row >= g.Rows {
		return g.Rows - 1
	}
	return row
}

// clampCol limits col to the columns of g.
func (g *Grid) clampCol(col int) int {
	if col < 0 {
		return 0
	}
	if col >= g.Cols {
		return g.Cols - 1
	}
	return col
}
