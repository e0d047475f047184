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
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/vecraster"
	"github.com/spatialmodel/vecraster/cloud"
	"github.com/spf13/cast"
)

// notSpecified is the cellsize value that requests an automatic cell
// size.
const notSpecified = "not specified"

// Options holds the settings of a rasterize command.
type Options struct {
	// Input, Output, and Template are file locations, which may be
	// remote.
	Input, Output, Template string

	// Config holds the rasterization settings. Its Template, Create, Log,
	// and Progress fields are set by Rasterize.
	Config vecraster.Config
}

// ParseOptions reads and checks the rasterize options in cfg.
func ParseOptions(cfg *viper.Viper) (*Options, error) {
	o := &Options{
		Input:    os.ExpandEnv(cfg.GetString("input")),
		Template: os.ExpandEnv(cfg.GetString("template")),
		Config:   vecraster.DefaultConfig(),
	}
	if o.Input == "" {
		return nil, fmt.Errorf(`vecraster: you need to specify an input shapefile (for example: --input="roads.shp")`)
	}
	var err error
	if o.Output, err = checkOutputFile(cfg.GetString("output")); err != nil {
		return nil, err
	}

	c := &o.Config
	c.FieldName = cfg.GetString("field")
	if c.NoData, err = cast.ToFloat64E(cfg.Get("nodata")); err != nil {
		return nil, fmt.Errorf("vecraster: invalid nodata value: %v", err)
	}
	if c.Background, c.BackgroundNoData, err = parseBackground(cfg.GetString("background")); err != nil {
		return nil, err
	}
	if c.CellSize, err = parseCellSize(cfg.GetString("cellsize")); err != nil {
		return nil, err
	}
	if o.Template != "" && c.CellSize != 0 {
		return nil, fmt.Errorf("vecraster: a template raster and a cell size cannot both be specified")
	}
	if c.FlushThreshold, err = cast.ToIntE(cfg.Get("flushcells")); err != nil || c.FlushThreshold < 0 {
		return nil, fmt.Errorf("vecraster: invalid flushcells value %v", cfg.Get("flushcells"))
	}
	if c.Workers, err = cast.ToIntE(cfg.Get("workers")); err != nil || c.Workers < 1 {
		return nil, fmt.Errorf("vecraster: invalid workers value %v", cfg.Get("workers"))
	}
	return o, nil
}

// parseBackground interprets a background setting. Any value that
// contains "nodata", in any case, selects the no-data value.
func parseBackground(s string) (value float64, noData bool, err error) {
	s = strings.TrimSpace(s)
	if strings.Contains(strings.ToLower(s), "nodata") {
		return 0, true, nil
	}
	if s == "" {
		return 0, false, nil
	}
	value, err = cast.ToFloat64E(s)
	if err != nil {
		return 0, false, fmt.Errorf("vecraster: invalid background value %q: must be a number or \"nodata\"", s)
	}
	return value, false, nil
}

// parseCellSize interprets a cellsize setting. It returns zero if the
// cell size is not specified.
func parseCellSize(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, notSpecified) {
		return 0, nil
	}
	v, err := cast.ToFloat64E(s)
	if err != nil || !(v > 0) {
		return 0, fmt.Errorf("vecraster: invalid cell size %q: must be a positive number or %q", s, notSpecified)
	}
	return v, nil
}

// checkOutputFile checks that the output file f can be created.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`vecraster: you need to specify an output file (for example: --output="raster.ncf")`)
	}
	f = os.ExpandEnv(f)
	if cloud.IsBlob(f) {
		url, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		_, err = cloud.OpenBucket(context.TODO(), url.Scheme+"://"+url.Host)
		if err != nil {
			return f, fmt.Errorf("vecraster: error when checking output location: %v", err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("vecraster: the output directory doesn't exist: %v", err)
	}
	if info, err := os.Stat(f); err == nil && info.IsDir() {
		return f, fmt.Errorf("vecraster: the output file %s is a directory", f)
	}
	return f, nil
}

// newLogger returns a logger that writes messages of at least the given
// level to w.
func newLogger(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("vecraster: %v", err)
	}
	log := logrus.New()
	log.Out = w
	log.Level = lvl
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	}
	return log, nil
}
