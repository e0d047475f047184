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
	"fmt"
	"math"
	"runtime"
	"runtime/debug"

	"github.com/ctessum/sparse"
)

// DefaultNoData is the no-data value used when none is specified.
const DefaultNoData = -32768.

// ErrResourceExhausted is returned when a raster or write buffer would not
// fit in the memory available to the process. Reducing the raster
// resolution or the size of the input usually helps.
var ErrResourceExhausted = errors.New("vecraster: insufficient memory")

// IsResourceExhausted returns whether err was caused by running out of
// memory.
func IsResourceExhausted(err error) bool {
	if err == ErrResourceExhausted {
		return true
	}
	_, ok := err.(resourceError)
	return ok
}

type resourceError struct {
	what  string
	bytes float64
	limit int64
}

func (e resourceError) Error() string {
	return fmt.Sprintf("%v: %s needs %.0f bytes but only %d are available",
		ErrResourceExhausted, e.what, e.bytes, e.limit)
}

// ValueType is the numeric type of raster values.
type ValueType int

const (
	// Int32 rasters hold record identifiers.
	Int32 ValueType = iota
	// Float64 rasters hold numeric attribute values.
	Float64
)

func (v ValueType) String() string {
	switch v {
	case Int32:
		return "int32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("ValueType(%d)", int(v))
}

// convert returns val as it would be stored in a raster of type v.
func (v ValueType) convert(val float64) float64 {
	if v == Int32 {
		return float64(int32(val))
	}
	return val
}

// Raster is the destination of rasterized cells.
type Raster interface {
	// Grid returns the geometry of the raster.
	Grid() *Grid

	// SetValue sets the value of the cell at (row, col).
	SetValue(row, col int, val float64) error

	// AddMetadataEntry adds a free-text entry to the raster metadata.
	AddMetadataEntry(entry string) error

	// Flush writes any buffered values to storage.
	Flush() error

	// Close flushes the raster and releases its resources.
	Close() error
}

// RasterFactory creates a raster with the given geometry, value type,
// background value, and no-data value.
type RasterFactory func(g *Grid, vt ValueType, background, noData float64) (Raster, error)

// DenseRaster is a raster held in memory.
type DenseRaster struct {
	grid       *Grid
	data       *sparse.DenseArray
	valueType  ValueType
	background float64
	noData     float64
	metadata   []string
}

// NewDenseRaster creates an in-memory raster with every cell set to
// background. It returns an error satisfying IsResourceExhausted if the
// raster would not fit in memory.
func NewDenseRaster(g *Grid, vt ValueType, background, noData float64) (*DenseRaster, error) {
	if g == nil || g.Rows <= 0 || g.Cols <= 0 {
		return nil, fmt.Errorf("vecraster: invalid raster grid %v", g)
	}
	if err := checkMemory("raster", float64(g.Rows)*float64(g.Cols)*8); err != nil {
		return nil, err
	}
	r := &DenseRaster{
		grid:       g,
		data:       sparse.ZerosDense(g.Rows, g.Cols),
		valueType:  vt,
		background: vt.convert(background),
		noData:     noData,
	}
	if r.background != 0 {
		for i := range r.data.Elements {
			r.data.Elements[i] = r.background
		}
	}
	return r, nil
}

// DenseRasterFactory is a RasterFactory that creates DenseRasters.
func DenseRasterFactory(g *Grid, vt ValueType, background, noData float64) (Raster, error) {
	return NewDenseRaster(g, vt, background, noData)
}

// Grid implements Raster.
func (r *DenseRaster) Grid() *Grid { return r.grid }

// SetValue implements Raster.
func (r *DenseRaster) SetValue(row, col int, val float64) error {
	if !r.grid.Contains(row, col) {
		return fmt.Errorf("vecraster: cell (%d, %d) is outside of the %d×%d raster",
			row, col, r.grid.Rows, r.grid.Cols)
	}
	r.data.Set(r.valueType.convert(val), row, col)
	return nil
}

// Value returns the value of the cell at (row, col).
func (r *DenseRaster) Value(row, col int) (float64, error) {
	if !r.grid.Contains(row, col) {
		return math.NaN(), fmt.Errorf("vecraster: cell (%d, %d) is outside of the %d×%d raster",
			row, col, r.grid.Rows, r.grid.Cols)
	}
	return r.data.Get(row, col), nil
}

// AddMetadataEntry implements Raster.
func (r *DenseRaster) AddMetadataEntry(entry string) error {
	r.metadata = append(r.metadata, entry)
	return nil
}

// Metadata returns the metadata entries of r.
func (r *DenseRaster) Metadata() []string { return r.metadata }

// ValueType returns the type of the values in r.
func (r *DenseRaster) ValueType() ValueType { return r.valueType }

// Background returns the value that cells hold before they are written to.
func (r *DenseRaster) Background() float64 { return r.background }

// NoData returns the no-data value of r.
func (r *DenseRaster) NoData() float64 { return r.noData }

// Data returns the underlying row-major array.
func (r *DenseRaster) Data() *sparse.DenseArray { return r.data }

// Flush implements Raster.
func (r *DenseRaster) Flush() error { return nil }

// Close implements Raster. The values stay readable after r is closed.
func (r *DenseRaster) Close() error { return nil }

// memoryLimit returns the number of bytes the process may use: the soft
// memory limit if one is set, or otherwise the memory currently obtained
// from the operating system.
func memoryLimit() int64 {
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		return limit
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Sys)
}

// checkMemory returns an error if an allocation of the given size would
// exceed the soft memory limit. Without a limit, only sizes that cannot
// be addressed are rejected.
func checkMemory(what string, bytes float64) error {
	limit := debug.SetMemoryLimit(-1)
	if bytes > float64(limit) || bytes > float64(math.MaxInt) {
		return resourceError{what: what, bytes: bytes, limit: limit}
	}
	return nil
}
