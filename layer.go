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
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/jonas-p/go-shp"
)

// Field describes an attribute column.
type Field struct {
	Name string
	// Type is the dBASE field type: 'N' and 'F' are numeric, 'C' is text,
	// 'D' is a date, and 'L' is logical.
	Type byte
}

// Numeric returns whether values of f can be rasterized.
func (f Field) Numeric() bool { return f.Type == 'N' || f.Type == 'F' }

// Record is one feature: its shape and the text of its attributes, in the
// order of the layer fields.
type Record struct {
	// ID is the 1-based record number of the feature.
	ID         int
	Shape      shp.Shape
	Attributes []string
}

// Layer is a collection of features that share a shape type and an
// attribute schema.
type Layer struct {
	ShapeType shp.ShapeType
	Fields    []Field
	Records   []Record

	// Bounds is the extent of all records.
	Bounds *geom.Bounds
}

// NewLayer creates a layer from the given records and calculates its
// extent.
func NewLayer(t shp.ShapeType, fields []Field, records []Record) *Layer {
	l := &Layer{
		ShapeType: t,
		Fields:    fields,
		Records:   records,
		Bounds:    geom.NewBounds(),
	}
	for _, r := range records {
		if b, ok := shapeBounds(r.Shape); ok {
			l.Bounds.Extend(b)
		}
	}
	return l
}

// ReadShapefile reads every record of the shapefile at path, along with
// its attributes from the accompanying .dbf file.
func ReadShapefile(path string) (*Layer, error) {
	path = strings.TrimSuffix(path, ".shp") + ".shp"
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vecraster: opening shapefile %s: %v", path, err)
	}
	defer r.Close()

	shpFields := r.Fields()
	fields := make([]Field, len(shpFields))
	for i, f := range shpFields {
		fields[i] = Field{Name: fieldName(f.Name), Type: f.Fieldtype}
	}

	var records []Record
	for r.Next() {
		n, s := r.Shape()
		rec := Record{
			ID:         n + 1,
			Shape:      s,
			Attributes: make([]string, len(fields)),
		}
		for j := range fields {
			rec.Attributes[j] = strings.Trim(r.ReadAttribute(n, j), " \x00")
		}
		records = append(records, rec)
	}
	return NewLayer(r.GeometryType, fields, records), nil
}

// FieldIndex returns the index of the field with exactly the given name,
// or -1 if there is none.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// fieldName converts a dBASE field name to a string.
func fieldName(name [11]byte) string {
	return string(bytes.Trim(name[:], "\x00 "))
}

// parseValue converts the text of a numeric attribute to a number.
// Blank values are returned as noData.
func parseValue(s string, noData float64) (float64, error) {
	s = strings.Trim(s, " \x00")
	if s == "" || strings.Trim(s, "*") == "" {
		return noData, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), fmt.Errorf("vecraster: invalid numeric attribute %q", s)
	}
	return v, nil
}

// shapeBounds returns the extent recorded in the header of s. ok is false
// for null shapes.
func shapeBounds(s shp.Shape) (b *geom.Bounds, ok bool) {
	if s == nil {
		return nil, false
	}
	if _, null := s.(*shp.Null); null {
		return nil, false
	}
	box := s.BBox()
	return &geom.Bounds{
		Min: geom.Point{X: box.MinX, Y: box.MinY},
		Max: geom.Point{X: box.MaxX, Y: box.MaxY},
	}, true
}
