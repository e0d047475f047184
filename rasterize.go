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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Metadata entries added to every raster.
const (
	CreatedByEntry  = "Created by the Vector Lines To Raster tool."
	createdOnPrefix = "Created on "
)

// Config holds the settings of one rasterization run.
type Config struct {
	// FieldName is the numeric attribute that supplies cell values. If the
	// layer has no such field, or the field is not numeric, cells take the
	// record number of their feature instead.
	FieldName string

	// Background is the value that cells hold before any feature is
	// written to them. If BackgroundNoData is true, NoData is used instead.
	Background       float64
	BackgroundNoData bool

	// NoData is the no-data value of the raster. Blank attribute values
	// are written as NoData.
	NoData float64

	// CellSize is the width and height of a raster cell. If it is zero and
	// there is no Template, it is derived from the layer extent with
	// AutoCellSize.
	CellSize float64

	// Template, if not nil, gives the geometry of the output raster. It
	// cannot be combined with CellSize.
	Template *Grid

	// FlushThreshold is the number of buffered cells that triggers a write
	// to the raster. If zero, DefaultFlushThreshold is used.
	FlushThreshold int

	// Workers is the number of features that are scanned concurrently.
	// Values less than 2 scan features one at a time.
	Workers int

	// ProgressInterval is the number of cells written between progress
	// reports and cancellation checks.
	ProgressInterval int

	// Create creates the output raster. If nil, DenseRasterFactory is
	// used.
	Create RasterFactory

	// Progress, if not nil, receives progress updates.
	Progress Progress

	// Log receives warnings and status messages. If nil, the standard
	// logrus logger is used.
	Log logrus.FieldLogger

	// Now returns the time written to the raster metadata. If nil,
	// time.Now is used.
	Now func() time.Time
}

// DefaultConfig returns a configuration that writes record numbers into an
// in-memory raster with an automatically chosen cell size.
func DefaultConfig() Config {
	return Config{
		NoData:           DefaultNoData,
		Workers:          1,
		ProgressInterval: DefaultProgressInterval,
		Create:           DenseRasterFactory,
		Log:              logrus.StandardLogger(),
		Now:              time.Now,
	}
}

// Status is the outcome of a rasterization run.
type Status int

const (
	// Completed means that every feature was written and the raster was
	// closed.
	Completed Status = iota
	// Cancelled means that the context was cancelled. The cells written
	// before cancellation remain in the raster.
	Cancelled
	// Failed means that the run stopped because of an error.
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result describes a rasterization run.
type Result struct {
	Status Status

	// Raster is the output raster. It has been closed. It is nil if the
	// run failed before the raster was created.
	Raster Raster

	// Features is the number of features that were rasterized, and Skipped
	// is the number of null records that were ignored.
	Features, Skipped int

	// CellsEmitted is the number of cells queued for writing, and
	// CellsDropped the number of cells that fell outside of the raster.
	CellsEmitted, CellsDropped int

	// Drains holds the number of cells in the write buffer at each drain,
	// in order. The last entry is the final drain.
	Drains []int

	// UsedField is true if cell values came from the configured field
	// rather than from record numbers.
	UsedField bool
}

// feature is a record together with its sort key.
type feature struct {
	rec  *Record
	maxY float64
}

// featureLess orders features from north to south by the top of their
// bounding boxes. Features with the same top are kept in record order.
func featureLess(a, b feature) bool {
	if a.maxY != b.maxY {
		return a.maxY > b.maxY
	}
	return a.rec.ID < b.rec.ID
}

// Rasterize writes every feature of layer into a new raster.
//
// Features are scanned in the order given by their northern extent, and
// the cells they cover are queued in a WriteBuffer that is drained to the
// raster whenever it is full and once more at the end. Where features
// overlap, the feature scanned last wins.
//
// If ctx is cancelled, Rasterize closes the raster and returns a Result
// with Status Cancelled and a nil error. Any other problem results in
// Status Failed and a non-nil error; errors caused by a lack of memory
// satisfy IsResourceExhausted, and those caused by unsupported shapes
// satisfy IsUnsupportedGeometry.
func Rasterize(ctx context.Context, layer *Layer, cfg Config) (*Result, error) {
	cfg.setDefaults()
	res := &Result{Status: Failed}
	if layer == nil {
		return res, fmt.Errorf("vecraster: no input layer")
	}
	if !rasterizable(layer.ShapeType) {
		return res, unsupportedGeometryError{t: layer.ShapeType}
	}
	if cfg.Template != nil && cfg.CellSize != 0 {
		return res, fmt.Errorf("vecraster: a template raster and a cell size cannot both be specified")
	}

	fieldIndex := resolveField(layer, cfg.FieldName, cfg.Log)
	res.UsedField = fieldIndex >= 0
	vt := Int32
	if res.UsedField {
		vt = Float64
	}

	features := make([]feature, 0, len(layer.Records))
	for i := range layer.Records {
		rec := &layer.Records[i]
		b, ok := shapeBounds(rec.Shape)
		if !ok {
			cfg.Log.WithField("record", rec.ID).Warn("vecraster: skipping null record")
			res.Skipped++
			continue
		}
		features = append(features, feature{rec: rec, maxY: b.Max.Y})
	}
	if len(features) == 0 {
		return res, fmt.Errorf("vecraster: layer has no features to rasterize")
	}
	sort.Slice(features, func(i, j int) bool {
		return featureLess(features[i], features[j])
	})

	g, err := cfg.grid(layer)
	if err != nil {
		return res, err
	}
	background := cfg.Background
	if cfg.BackgroundNoData {
		background = cfg.NoData
	}

	threshold := cfg.FlushThreshold
	if threshold == 0 {
		threshold = DefaultFlushThreshold()
	}
	buf, err := NewWriteBuffer(threshold)
	if err != nil {
		return res, err
	}
	buf.Interval = cfg.ProgressInterval

	cfg.Log.WithFields(logrus.Fields{
		"features":   len(features),
		"grid":       g.String(),
		"value_type": vt.String(),
		"threshold":  threshold,
	}).Info("vecraster: rasterizing")

	raster, err := cfg.Create(g, vt, background, cfg.NoData)
	if err != nil {
		return res, err
	}
	res.Raster = raster

	r := &run{
		ctx:        ctx,
		cfg:        &cfg,
		grid:       g,
		buf:        buf,
		raster:     raster,
		res:        res,
		fieldIndex: fieldIndex,
		features:   features,
	}
	if cfg.Workers > 1 {
		err = r.scanParallel()
	} else {
		err = r.scanSerial()
	}
	if err == nil {
		err = r.drain()
	}
	if err == nil {
		err = r.stamp()
	}
	defer cfg.Progress.report("", 0)

	switch {
	case err == ErrCancelled:
		cfg.Log.Warn("vecraster: rasterization cancelled")
		res.Status = Cancelled
		if cerr := raster.Close(); cerr != nil {
			res.Status = Failed
			return res, fmt.Errorf("vecraster: closing cancelled raster: %v", cerr)
		}
		return res, nil
	case err != nil:
		if cerr := raster.Close(); cerr != nil {
			cfg.Log.WithError(cerr).Warn("vecraster: closing raster after failure")
		}
		return res, err
	}
	if err := raster.Close(); err != nil {
		return res, fmt.Errorf("vecraster: closing raster: %v", err)
	}
	res.Status = Completed
	cfg.Log.WithFields(logrus.Fields{
		"features":      res.Features,
		"cells":         res.CellsEmitted,
		"dropped_cells": res.CellsDropped,
		"drains":        len(res.Drains),
	}).Info("vecraster: rasterization complete")
	return res, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Create == nil {
		cfg.Create = DenseRasterFactory
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
}

// grid returns the geometry of the output raster.
func (cfg *Config) grid(layer *Layer) (*Grid, error) {
	if cfg.Template != nil {
		return cfg.Template, nil
	}
	cellSize := cfg.CellSize
	if cellSize == 0 {
		var err error
		if cellSize, err = AutoCellSize(layer.Bounds); err != nil {
			return nil, err
		}
		cfg.Log.WithField("cellsize", cellSize).Info("vecraster: derived cell size from layer extent")
	}
	return GridFromBounds(layer.Bounds, cellSize)
}

// resolveField returns the index of the numeric field with the given name,
// or -1 if record numbers should be used instead.
func resolveField(layer *Layer, name string, log logrus.FieldLogger) int {
	if name == "" {
		return -1
	}
	i := layer.FieldIndex(name)
	if i < 0 {
		log.WithField("field", name).Warn("vecraster: field not found; using record numbers as cell values")
		return -1
	}
	if !layer.Fields[i].Numeric() {
		log.WithFields(logrus.Fields{
			"field": name,
			"type":  string(layer.Fields[i].Type),
		}).Warn("vecraster: field is not numeric; using record numbers as cell values")
		return -1
	}
	return i
}

// run holds the state of one call to Rasterize.
type run struct {
	ctx        context.Context
	cfg        *Config
	grid       *Grid
	buf        *WriteBuffer
	raster     Raster
	res        *Result
	fieldIndex int
	features   []feature
}

// value returns the cell value of rec.
func (r *run) value(rec *Record) (float64, error) {
	if r.fieldIndex < 0 {
		return float64(rec.ID), nil
	}
	if r.fieldIndex >= len(rec.Attributes) {
		return r.cfg.NoData, nil
	}
	v, err := parseValue(rec.Attributes[r.fieldIndex], r.cfg.NoData)
	if err != nil {
		return 0, fmt.Errorf("%v in record %d", err, rec.ID)
	}
	return v, nil
}

// scan passes every cell covered by f to emit.
func (r *run) scan(f feature, emit func(Cell) error) error {
	geo, err := ExtractGeometry(f.rec.Shape)
	if err != nil {
		return err
	}
	v, err := r.value(f.rec)
	if err != nil {
		return err
	}
	for i := 0; i < geo.NumParts(); i++ {
		if err := r.grid.ScanPart(geo.Part(i), v, emit); err != nil {
			return err
		}
	}
	return nil
}

// push queues c, draining the buffer if it becomes full. Cells outside of
// the grid are counted and discarded.
func (r *run) push(c Cell) error {
	if !r.grid.Contains(c.Row, c.Col) {
		r.res.CellsDropped++
		return nil
	}
	r.buf.Push(c)
	r.res.CellsEmitted++
	if r.buf.Full() {
		return r.drain()
	}
	return nil
}

// drain writes the buffered cells to the raster.
func (r *run) drain() error {
	n := r.buf.Len()
	if _, err := r.buf.Drain(r.ctx, r.raster, r.cfg.Progress); err != nil {
		return err
	}
	r.res.Drains = append(r.res.Drains, n)
	return r.raster.Flush()
}

// featureDone records the completion of the i'th feature.
func (r *run) featureDone(i int) {
	r.res.Features++
	r.cfg.Progress.report("Rasterizing features", (i+1)*100/len(r.features))
}

func (r *run) scanSerial() error {
	for i, f := range r.features {
		if r.ctx.Err() != nil {
			return ErrCancelled
		}
		if err := r.scan(f, r.push); err != nil {
			return err
		}
		r.featureDone(i)
	}
	return nil
}

// scanParallel scans batches of features concurrently and then queues
// their cells in feature order, so that the result is the same as that of
// scanSerial.
func (r *run) scanParallel() error {
	workers := r.cfg.Workers
	batch := workers * 4
	for start := 0; start < len(r.features); start += batch {
		end := start + batch
		if end > len(r.features) {
			end = len(r.features)
		}
		cells := make([][]Cell, end-start)
		errs := make([]error, end-start)
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				j := i - start
				errs[j] = r.scan(r.features[i], func(c Cell) error {
					cells[j] = append(cells[j], c)
					return nil
				})
			}(i)
		}
		wg.Wait()

		for j := range cells {
			if r.ctx.Err() != nil {
				return ErrCancelled
			}
			if errs[j] != nil {
				return errs[j]
			}
			for _, c := range cells[j] {
				if err := r.push(c); err != nil {
					return err
				}
			}
			cells[j] = nil
			r.featureDone(start + j)
		}
	}
	return nil
}

// stamp adds the creation metadata to the raster.
func (r *run) stamp() error {
	for _, e := range []string{
		CreatedByEntry,
		createdOnPrefix + r.cfg.Now().Format(time.RFC3339),
	} {
		if err := r.raster.AddMetadataEntry(e); err != nil {
			return fmt.Errorf("vecraster: adding metadata: %v", err)
		}
	}
	return nil
}
