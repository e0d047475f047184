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
	"os"
	"strings"

	"github.com/ctessum/cdf"
)

const (
	// valueVar is the name of the NetCDF variable that holds cell values.
	valueVar = "value"

	// metadataVar holds metadata entries, one per row, padded with NULs.
	metadataVar = "metadata"

	// maxMetadataEntries and metadataLength size the metadata variable.
	// NetCDF headers cannot change once written, so space is reserved.
	maxMetadataEntries = 32
	metadataLength     = 256
)

// NetCDFRaster is a raster stored in a NetCDF classic file. Cell values are
// held in a variable named "value" with dimensions (row, col), and the
// grid geometry is stored in global attributes.
//
// Consecutive writes to adjacent cells of one row are combined into a
// single write.
type NetCDFRaster struct {
	f         *os.File
	cf        *cdf.File
	grid      *Grid
	valueType  ValueType
	background float64
	noData     float64
	nMeta      int

	// run holds values for cells (runRow, runCol), (runRow, runCol+1), ...
	// that have not been written yet.
	runRow, runCol int
	run            []float64
}

// CreateNetCDF creates a raster file at path and fills it with background.
func CreateNetCDF(path string, g *Grid, vt ValueType, background, noData float64) (*NetCDFRaster, error) {
	if g == nil || g.Rows <= 0 || g.Cols <= 0 {
		return nil, fmt.Errorf("vecraster: invalid raster grid %v", g)
	}
	background = vt.convert(background)

	h := cdf.NewHeader([]string{"row", "col", "metadata_entry", "metadata_len"},
		[]int{g.Rows, g.Cols, maxMetadataEntries, metadataLength})
	h.AddAttribute("", "comment", "vecraster raster file")
	h.AddAttribute("", "north", []float64{g.North})
	h.AddAttribute("", "south", []float64{g.South})
	h.AddAttribute("", "east", []float64{g.East})
	h.AddAttribute("", "west", []float64{g.West})
	h.AddAttribute("", "cellsize", []float64{g.CellSize})
	h.AddAttribute("", "rows", []int32{int32(g.Rows)})
	h.AddAttribute("", "cols", []int32{int32(g.Cols)})
	h.AddAttribute("", "nodata", []float64{noData})
	h.AddAttribute("", "background", []float64{background})
	h.AddAttribute("", "data_scale", "continuous")
	h.AddAttribute("", "value_type", vt.String())
	switch vt {
	case Int32:
		h.AddVariable(valueVar, []string{"row", "col"}, []int32{0})
		h.AddAttribute(valueVar, "_FillValue", []int32{int32(background)})
	default:
		h.AddVariable(valueVar, []string{"row", "col"}, []float64{0})
		h.AddAttribute(valueVar, "_FillValue", []float64{background})
	}
	h.AddAttribute(valueVar, "description", "rasterized feature values")
	h.AddVariable(metadataVar, []string{"metadata_entry", "metadata_len"}, "")
	h.AddAttribute(metadataVar, "description", "free-text metadata entries")
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("vecraster: creating NetCDF raster header: %v", errs[0])
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("vecraster: creating NetCDF raster: %v", err)
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vecraster: creating NetCDF raster: %v", err)
	}
	r := &NetCDFRaster{
		f:          f,
		cf:         cf,
		grid:       g,
		valueType:  vt,
		background: background,
		noData:     noData,
	}
	if err := r.fill(background); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NetCDFFactory returns a RasterFactory that creates a NetCDF raster at
// path.
func NetCDFFactory(path string) RasterFactory {
	return func(g *Grid, vt ValueType, background, noData float64) (Raster, error) {
		return CreateNetCDF(path, g, vt, background, noData)
	}
}

// fill sets every cell to val, one row at a time, and clears the
// metadata.
func (r *NetCDFRaster) fill(val float64) error {
	row := make([]float64, r.grid.Cols)
	for i := range row {
		row[i] = val
	}
	for i := 0; i < r.grid.Rows; i++ {
		if err := r.writeRun(i, 0, row); err != nil {
			return fmt.Errorf("vecraster: filling NetCDF raster: %v", err)
		}
	}
	w := r.cf.Writer(metadataVar, []int{0, 0}, []int{maxMetadataEntries, 0})
	if _, err := w.Write(make([]byte, maxMetadataEntries*metadataLength)); err != nil {
		return fmt.Errorf("vecraster: filling NetCDF metadata: %v", err)
	}
	return nil
}

// OpenNetCDF opens an existing raster file for reading and writing.
func OpenNetCDF(path string) (*NetCDFRaster, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("vecraster: opening NetCDF raster: %v", err)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vecraster: opening NetCDF raster %s: %v", path, err)
	}
	g, err := gridFromHeader(cf.Header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vecraster: opening NetCDF raster %s: %v", path, err)
	}
	r := &NetCDFRaster{f: f, cf: cf, grid: g, valueType: Float64}
	if vt, ok := cf.Header.GetAttribute("", "value_type").(string); ok && vt == Int32.String() {
		r.valueType = Int32
	}
	if nd, ok := cf.Header.GetAttribute("", "nodata").([]float64); ok && len(nd) == 1 {
		r.noData = nd[0]
	}
	if bg, ok := cf.Header.GetAttribute("", "background").([]float64); ok && len(bg) == 1 {
		r.background = bg[0]
	}
	entries, err := r.Metadata()
	if err != nil {
		f.Close()
		return nil, err
	}
	r.nMeta = len(entries)
	return r, nil
}

// ReadTemplate returns the grid of the raster file at path.
func ReadTemplate(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vecraster: opening template raster: %v", err)
	}
	defer f.Close()
	cf, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("vecraster: reading template raster %s: %v", path, err)
	}
	g, err := gridFromHeader(cf.Header)
	if err != nil {
		return nil, fmt.Errorf("vecraster: reading template raster %s: %v", path, err)
	}
	return g, nil
}

func gridFromHeader(h *cdf.Header) (*Grid, error) {
	g := new(Grid)
	for _, a := range []struct {
		name string
		v    *float64
	}{
		{"north", &g.North}, {"south", &g.South}, {"east", &g.East},
		{"west", &g.West}, {"cellsize", &g.CellSize},
	} {
		v, ok := h.GetAttribute("", a.name).([]float64)
		if !ok || len(v) != 1 {
			return nil, fmt.Errorf("missing or invalid attribute %q", a.name)
		}
		*a.v = v[0]
	}
	for _, a := range []struct {
		name string
		v    *int
	}{
		{"rows", &g.Rows}, {"cols", &g.Cols},
	} {
		v, ok := h.GetAttribute("", a.name).([]int32)
		if !ok || len(v) != 1 || v[0] <= 0 {
			return nil, fmt.Errorf("missing or invalid attribute %q", a.name)
		}
		*a.v = int(v[0])
	}
	if !(g.CellSize > 0) {
		return nil, fmt.Errorf("invalid cell size %g", g.CellSize)
	}
	return g, nil
}

// Grid implements Raster.
func (r *NetCDFRaster) Grid() *Grid { return r.grid }

// ValueType returns the type of the values in r.
func (r *NetCDFRaster) ValueType() ValueType { return r.valueType }

// NoData returns the no-data value of r.
func (r *NetCDFRaster) NoData() float64 { return r.noData }

// Background returns the value that cells held when r was created.
func (r *NetCDFRaster) Background() float64 { return r.background }

// SetValue implements Raster.
func (r *NetCDFRaster) SetValue(row, col int, val float64) error {
	if !r.grid.Contains(row, col) {
		return fmt.Errorf("vecraster: cell (%d, %d) is outside of the %d×%d raster",
			row, col, r.grid.Rows, r.grid.Cols)
	}
	val = r.valueType.convert(val)
	if len(r.run) > 0 && row == r.runRow {
		switch last := r.runCol + len(r.run) - 1; {
		case col == last+1:
			r.run = append(r.run, val)
			return nil
		case col >= r.runCol && col <= last:
			r.run[col-r.runCol] = val
			return nil
		}
	}
	if err := r.flushRun(); err != nil {
		return err
	}
	r.runRow, r.runCol = row, col
	r.run = append(r.run, val)
	return nil
}

// Value returns the value of the cell at (row, col) as stored in the file.
func (r *NetCDFRaster) Value(row, col int) (float64, error) {
	if !r.grid.Contains(row, col) {
		return 0, fmt.Errorf("vecraster: cell (%d, %d) is outside of the %d×%d raster",
			row, col, r.grid.Rows, r.grid.Cols)
	}
	if err := r.flushRun(); err != nil {
		return 0, err
	}
	vals, err := r.Row(row)
	if err != nil {
		return 0, err
	}
	return vals[col], nil
}

// Row returns the values of one row of r.
func (r *NetCDFRaster) Row(row int) ([]float64, error) {
	if err := r.flushRun(); err != nil {
		return nil, err
	}
	rd := r.cf.Reader(valueVar, []int{row, 0}, []int{row, r.grid.Cols})
	o := make([]float64, r.grid.Cols)
	switch r.valueType {
	case Int32:
		buf := make([]int32, r.grid.Cols)
		if _, err := rd.Read(buf); err != nil {
			return nil, fmt.Errorf("vecraster: reading row %d: %v", row, err)
		}
		for i, v := range buf {
			o[i] = float64(v)
		}
	default:
		if _, err := rd.Read(o); err != nil {
			return nil, fmt.Errorf("vecraster: reading row %d: %v", row, err)
		}
	}
	return o, nil
}

// flushRun writes the pending run of cells.
func (r *NetCDFRaster) flushRun() error {
	if len(r.run) == 0 {
		return nil
	}
	err := r.writeRun(r.runRow, r.runCol, r.run)
	r.run = r.run[:0]
	return err
}

// writeRun writes vals to consecutive cells of row, starting at col.
func (r *NetCDFRaster) writeRun(row, col int, vals []float64) error {
	w := r.cf.Writer(valueVar, []int{row, col}, []int{row, col + len(vals)})
	var err error
	switch r.valueType {
	case Int32:
		buf := make([]int32, len(vals))
		for i, v := range vals {
			buf[i] = int32(v)
		}
		_, err = w.Write(buf)
	default:
		_, err = w.Write(vals)
	}
	if err != nil {
		return fmt.Errorf("vecraster: writing row %d: %v", row, err)
	}
	return nil
}

// AddMetadataEntry implements Raster. Entries longer than 256 bytes are
// truncated, and at most 32 entries can be stored.
func (r *NetCDFRaster) AddMetadataEntry(entry string) error {
	if r.nMeta >= maxMetadataEntries {
		return fmt.Errorf("vecraster: NetCDF raster already holds %d metadata entries", maxMetadataEntries)
	}
	b := make([]byte, metadataLength)
	copy(b, entry)
	w := r.cf.Writer(metadataVar, []int{r.nMeta, 0}, []int{r.nMeta, metadataLength})
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("vecraster: writing metadata: %v", err)
	}
	r.nMeta++
	return nil
}

// Metadata returns the metadata entries stored in r.
func (r *NetCDFRaster) Metadata() ([]string, error) {
	var o []string
	for i := 0; i < maxMetadataEntries; i++ {
		rd := r.cf.Reader(metadataVar, []int{i, 0}, []int{i, metadataLength})
		b := make([]byte, metadataLength)
		if _, err := rd.Read(b); err != nil {
			return nil, fmt.Errorf("vecraster: reading metadata: %v", err)
		}
		s := strings.TrimRight(string(b), "\x00")
		if s == "" {
			break
		}
		o = append(o, s)
	}
	return o, nil
}

// Flush implements Raster.
func (r *NetCDFRaster) Flush() error {
	if err := r.flushRun(); err != nil {
		return err
	}
	return r.f.Sync()
}

// Close implements Raster.
func (r *NetCDFRaster) Close() error {
	err := r.Flush()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
