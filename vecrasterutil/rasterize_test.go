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
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/vecraster"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = ioutil.Discard
	return log
}

// writeRoads writes a shapefile with two roads and a WIDTH attribute to
// dir and returns its path.
func writeRoads(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "roads.shp")
	w, err := shp.Create(path, shp.POLYLINE)
	if err != nil {
		t.Fatal(err)
	}
	w.SetFields([]shp.Field{shp.FloatField("WIDTH", 10, 2)})
	w.Write(shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 10}, {X: 20, Y: 10}}}))
	w.WriteAttribute(0, 0, 7.5)
	w.Write(shp.NewPolyLine([][]shp.Point{{{X: 10, Y: 0}, {X: 10, Y: 20}}}))
	w.WriteAttribute(1, 0, 3.0)
	w.Close()
	return path
}

func TestRasterize(t *testing.T) {
	dir := t.TempDir()
	roads := writeRoads(t, dir)
	out := filepath.Join(dir, "roads.ncf")

	cfg := defaultConfig()
	cfg.Set("input", roads)
	cfg.Set("output", out)
	cfg.Set("field", "WIDTH")
	cfg.Set("cellsize", "1")
	cfg.Set("background", "nodata")
	o, err := ParseOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Rasterize(context.Background(), o, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != vecraster.Completed {
		t.Fatalf("have status %v, want %v", res.Status, vecraster.Completed)
	}
	if !res.UsedField {
		t.Error("WIDTH field was not used")
	}

	r, err := vecraster.OpenNetCDF(out)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	g := r.Grid()
	want := &vecraster.Grid{North: 20.5, South: -0.5, East: 20.5, West: -0.5, CellSize: 1, Rows: 21, Cols: 21}
	if !cmp.Equal(want, g) {
		t.Errorf("have grid %v, want %v", g, want)
	}
	for _, test := range []struct {
		x, y, want float64
	}{
		{x: 2, y: 10, want: 7.5},
		{x: 10, y: 2, want: 3},
		{x: 2, y: 2, want: vecraster.DefaultNoData},
	} {
		v, err := r.Value(g.RowOf(test.y), g.ColOf(test.x))
		if err != nil {
			t.Fatal(err)
		}
		if v != test.want {
			t.Errorf("value at (%g, %g): have %g, want %g", test.x, test.y, v, test.want)
		}
	}
	meta, err := r.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if len(meta) != 2 || meta[0] != vecraster.CreatedByEntry {
		t.Errorf("unexpected metadata %q", meta)
	}

	t.Run("template", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Set("input", roads)
		cfg.Set("output", filepath.Join(dir, "from_template.ncf"))
		cfg.Set("template", out)
		o, err := ParseOptions(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Rasterize(context.Background(), o, testLogger()); err != nil {
			t.Fatal(err)
		}
		g2, err := vecraster.ReadTemplate(filepath.Join(dir, "from_template.ncf"))
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal(g, g2) {
			t.Errorf("have grid %v, want %v", g2, g)
		}
	})

	t.Run("describe", func(t *testing.T) {
		var b bytes.Buffer
		if err := Describe(context.Background(), &b, out, testLogger()); err != nil {
			t.Fatal(err)
		}
		for _, s := range []string{"rows", "21", "float64", "covered cells", "3 to 7.5", vecraster.CreatedByEntry} {
			if !strings.Contains(b.String(), s) {
				t.Errorf("description does not contain %q:\n%s", s, b.String())
			}
		}
	})
}

func TestRasterizeUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.shp")
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		t.Fatal(err)
	}
	w.SetFields([]shp.Field{shp.NumberField("ID", 5)})
	w.Write(&shp.Point{X: 1, Y: 1})
	w.Close()

	cfg := defaultConfig()
	cfg.Set("input", path)
	cfg.Set("output", filepath.Join(dir, "points.ncf"))
	o, err := ParseOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Rasterize(context.Background(), o, testLogger())
	if !vecraster.IsUnsupportedGeometry(err) {
		t.Errorf("have error %v, want unsupported geometry", err)
	}
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs([]string{"version"})
	defer Root.SetOutput(nil)
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "vecraster v" + vecraster.Version; !strings.Contains(b.String(), want) {
		t.Errorf("have %q, want %q", b.String(), want)
	}
}

func TestProgressLogger(t *testing.T) {
	log := testLogger()
	var n int
	log.Hooks.Add(countHook{&n})
	p := progressLogger(log)
	for i := 0; i <= 100; i++ {
		p("Rasterizing features", i)
	}
	p("Writing to output (1000 of 3000)", 33)
	p("Writing to output (2000 of 3000)", 66)
	p("", 0)
	if n != 13 {
		t.Errorf("have %d progress messages, want 13", n)
	}
}

// countHook counts log entries.
type countHook struct{ n *int }

func (h countHook) Levels() []logrus.Level { return logrus.AllLevels }
func (h countHook) Fire(*logrus.Entry) error {
	*h.n++
	return nil
}
