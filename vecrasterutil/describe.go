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

package vecrasterutil

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/vecraster"
	"github.com/spatialmodel/vecraster/cloud"
	"gonum.org/v1/gonum/floats"
)

// Describe writes a summary of the raster at path to w.
func Describe(ctx context.Context, w io.Writer, path string, log logrus.FieldLogger) error {
	stager := cloud.NewStager(log)
	defer stager.Close()
	local, err := stager.Input(ctx, path)
	if err != nil {
		return err
	}
	r, err := vecraster.OpenNetCDF(local)
	if err != nil {
		return err
	}
	defer r.Close()

	g := r.Grid()
	var covered []float64
	var noData int
	for row := 0; row < g.Rows; row++ {
		vals, err := r.Row(row)
		if err != nil {
			return err
		}
		for _, v := range vals {
			switch v {
			case r.Background():
			case r.NoData():
				noData++
			default:
				covered = append(covered, v)
			}
		}
	}
	meta, err := r.Metadata()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
	fmt.Fprintf(tw, "file\t%s\n", path)
	fmt.Fprintf(tw, "rows\t%d\n", g.Rows)
	fmt.Fprintf(tw, "columns\t%d\n", g.Cols)
	fmt.Fprintf(tw, "cell size\t%g\n", g.CellSize)
	fmt.Fprintf(tw, "north\t%g\n", g.North)
	fmt.Fprintf(tw, "south\t%g\n", g.South)
	fmt.Fprintf(tw, "east\t%g\n", g.East)
	fmt.Fprintf(tw, "west\t%g\n", g.West)
	fmt.Fprintf(tw, "value type\t%v\n", r.ValueType())
	fmt.Fprintf(tw, "background\t%g\n", r.Background())
	fmt.Fprintf(tw, "no data\t%g\n", r.NoData())
	fmt.Fprintf(tw, "covered cells\t%d\n", len(covered))
	if len(covered) > 0 {
		fmt.Fprintf(tw, "value range\t%g to %g\n", floats.Min(covered), floats.Max(covered))
	}
	fmt.Fprintf(tw, "no-data cells\t%d\n", noData)
	for _, m := range meta {
		fmt.Fprintf(tw, "metadata\t%s\n", m)
	}
	return tw.Flush()
}
