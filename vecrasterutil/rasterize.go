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
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/vecraster"
	"github.com/spatialmodel/vecraster/cloud"
)

// Rasterize reads the input shapefile in o, rasterizes it, and saves the
// result to the output location. Remote inputs are downloaded first, and
// a remote output is uploaded once the raster is complete.
func Rasterize(ctx context.Context, o *Options, log logrus.FieldLogger) (*vecraster.Result, error) {
	stager := cloud.NewStager(log)
	defer stager.Close()

	input, err := stager.Input(ctx, o.Input)
	if err != nil {
		return nil, err
	}
	layer, err := vecraster.ReadShapefile(input)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"input":   o.Input,
		"records": len(layer.Records),
	}).Info("vecraster: read input")

	cfg := o.Config
	if o.Template != "" {
		path, err := stager.Input(ctx, o.Template)
		if err != nil {
			return nil, err
		}
		if cfg.Template, err = vecraster.ReadTemplate(path); err != nil {
			return nil, err
		}
	}
	output, err := stager.Output(o.Output)
	if err != nil {
		return nil, err
	}
	cfg.Create = vecraster.NetCDFFactory(output)
	cfg.Log = log
	cfg.Progress = progressLogger(log)

	res, err := vecraster.Rasterize(ctx, layer, cfg)
	switch {
	case vecraster.IsResourceExhausted(err):
		log.Error("vecraster: there is not enough memory for this raster; " +
			"try a larger cell size or a smaller input")
		return res, err
	case vecraster.IsUnsupportedGeometry(err):
		log.Error("vecraster: only polyline and polygon shapefiles can be rasterized")
		return res, err
	case err != nil:
		return res, err
	}
	if res.Status != vecraster.Completed {
		return res, nil
	}
	if err := stager.Upload(ctx); err != nil {
		return res, err
	}
	log.WithField("output", o.Output).Info("vecraster: wrote raster")
	return res, nil
}

// progressLogger returns a Progress that logs each new task and every
// tenth percent of progress within it.
func progressLogger(log logrus.FieldLogger) vecraster.Progress {
	var lastTask string
	lastStep := -1
	return func(label string, percent int) {
		task := label
		if i := strings.Index(label, " ("); i >= 0 {
			task = label[:i]
		}
		if task != lastTask {
			lastTask, lastStep = task, -1
		}
		if label == "" {
			return
		}
		if step := percent / 10; step != lastStep {
			lastStep = step
			log.Infof("%s: %d%%", label, percent)
		}
	}
}
