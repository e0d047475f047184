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

// Package vecraster converts vector line and polygon geometry into raster
// grids by scan-converting each feature into the grid cells it covers.
// Cells are queued in a bounded, row-ordered write buffer so that large
// rasters are written to their storage in close to sequential order.
package vecraster

import (
	"errors"
	"fmt"

	"github.com/ctessum/geom"
	"github.com/jonas-p/go-shp"
)

// Version gives the version number of vecraster.
const Version = "0.1.0"

// ErrUnsupportedGeometry is returned when a shape is not one of the
// polyline or polygon variants.
var ErrUnsupportedGeometry = errors.New("vecraster: unsupported geometry")

// unsupportedGeometryError annotates ErrUnsupportedGeometry with the
// offending shape type.
type unsupportedGeometryError struct {
	t shp.ShapeType
}

func (e unsupportedGeometryError) Error() string {
	return fmt.Sprintf("%v: shape type %s", ErrUnsupportedGeometry, shapeTypeName(e.t))
}

// IsUnsupportedGeometry returns whether err was caused by a shape type that
// cannot be rasterized.
func IsUnsupportedGeometry(err error) bool {
	if err == ErrUnsupportedGeometry {
		return true
	}
	_, ok := err.(unsupportedGeometryError)
	return ok
}

// Geometry holds the flattened points of a feature and the index of the
// first point of each part.
type Geometry struct {
	Points []geom.Point
	Parts  []int
}

// ExtractGeometry returns the points and part offsets of s, which must be
// a polyline or polygon, with or without elevation or measure values.
// Elevations and measures are dropped.
func ExtractGeometry(s shp.Shape) (*Geometry, error) {
	var (
		parts  []int32
		points []shp.Point
	)
	switch t := s.(type) {
	case *shp.PolyLine:
		parts, points = t.Parts, t.Points
	case *shp.PolyLineZ:
		parts, points = t.Parts, t.Points
	case *shp.PolyLineM:
		parts, points = t.Parts, t.Points
	case *shp.Polygon:
		parts, points = t.Parts, t.Points
	case *shp.PolygonZ:
		parts, points = t.Parts, t.Points
	case *shp.PolygonM:
		parts, points = t.Parts, t.Points
	default:
		return nil, unsupportedGeometryError{t: shapeType(s)}
	}
	g := &Geometry{
		Points: make([]geom.Point, len(points)),
		Parts:  make([]int, len(parts)),
	}
	for i, p := range points {
		g.Points[i] = geom.Point(p)
	}
	for i, p := range parts {
		if p < 0 || int(p) > len(points) || (i > 0 && int(p) < g.Parts[i-1]) {
			return nil, fmt.Errorf("vecraster: malformed geometry: part %d starts at point %d of %d",
				i, p, len(points))
		}
		g.Parts[i] = int(p)
	}
	return g, nil
}

// NumParts returns the number of parts in g.
func (g *Geometry) NumParts() int { return len(g.Parts) }

// PartRange returns the index of the first point of part i and one past
// its last point.
func (g *Geometry) PartRange(i int) (start, end int) {
	start = g.Parts[i]
	if i == len(g.Parts)-1 {
		end = len(g.Points)
	} else {
		end = g.Parts[i+1]
	}
	return
}

// Part returns the points of part i.
func (g *Geometry) Part(i int) []geom.Point {
	start, end := g.PartRange(i)
	return g.Points[start:end]
}

// PartBounds returns the extent of part i.
func (g *Geometry) PartBounds(i int) *geom.Bounds {
	start, end := g.PartRange(i)
	return PartBounds(g.Points, start, end)
}

// PartBounds returns the box bounding points[start:end]. The box is empty
// when the range holds no points.
func PartBounds(points []geom.Point, start, end int) *geom.Bounds {
	if start >= end {
		return geom.NewBounds()
	}
	return geom.LineString(points[start:end]).Bounds()
}

// rasterizable returns whether shapes of type t can be scan-converted.
func rasterizable(t shp.ShapeType) bool {
	switch t {
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM,
		shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return true
	}
	return false
}

func shapeType(s shp.Shape) shp.ShapeType {
	switch s.(type) {
	case *shp.Null:
		return shp.NULL
	case *shp.Point:
		return shp.POINT
	case *shp.PointZ:
		return shp.POINTZ
	case *shp.PointM:
		return shp.POINTM
	case *shp.MultiPoint:
		return shp.MULTIPOINT
	case *shp.MultiPointZ:
		return shp.MULTIPOINTZ
	case *shp.MultiPointM:
		return shp.MULTIPOINTM
	case *shp.MultiPatch:
		return shp.MULTIPATCH
	case *shp.PolyLine:
		return shp.POLYLINE
	case *shp.PolyLineZ:
		return shp.POLYLINEZ
	case *shp.PolyLineM:
		return shp.POLYLINEM
	case *shp.Polygon:
		return shp.POLYGON
	case *shp.PolygonZ:
		return shp.POLYGONZ
	case *shp.PolygonM:
		return shp.POLYGONM
	}
	return -1
}

var shapeTypeNames = map[shp.ShapeType]string{
	shp.NULL:        "Null",
	shp.POINT:       "Point",
	shp.POLYLINE:    "PolyLine",
	shp.POLYGON:     "Polygon",
	shp.MULTIPOINT:  "MultiPoint",
	shp.POINTZ:      "PointZ",
	shp.POLYLINEZ:   "PolyLineZ",
	shp.POLYGONZ:    "PolygonZ",
	shp.MULTIPOINTZ: "MultiPointZ",
	shp.POINTM:      "PointM",
	shp.POLYLINEM:   "PolyLineM",
	shp.POLYGONM:    "PolygonM",
	shp.MULTIPOINTM: "MultiPointM",
	shp.MULTIPATCH:  "MultiPatch",
}

func shapeTypeName(t shp.ShapeType) string {
	if n, ok := shapeTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}
