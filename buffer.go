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
	"container/heap"
	"context"
	"errors"
	"fmt"
	"unsafe"
)

// ErrCancelled is returned by WriteBuffer.Drain when its context is
// cancelled before the buffer is empty.
var ErrCancelled = errors.New("vecraster: cancelled")

const (
	// cellBytes is the memory used by one buffered cell.
	cellBytes = int64(unsafe.Sizeof(queuedCell{}))

	// minFlushThreshold is the smallest threshold that FlushThreshold returns.
	minFlushThreshold = 1024

	// maxPrealloc limits how many cells are allocated up front.
	maxPrealloc = 1 << 16

	// DefaultProgressInterval is the number of writes between progress
	// reports and cancellation checks while draining.
	DefaultProgressInterval = 1000
)

// Progress receives progress updates. percent is between 0 and 100.
type Progress func(label string, percent int)

func (p Progress) report(label string, percent int) {
	if p != nil {
		p(label, percent)
	}
}

// FlushThreshold returns the number of cells that can be buffered in a
// quarter of memoryBytes.
func FlushThreshold(memoryBytes int64) int {
	n := memoryBytes / 4 / cellBytes
	if n < minFlushThreshold {
		return minFlushThreshold
	}
	if n > int64(maxInt32) {
		return maxInt32
	}
	return int(n)
}

const maxInt32 = 1<<31 - 1

// DefaultFlushThreshold returns FlushThreshold of the memory available to
// the process.
func DefaultFlushThreshold() int {
	return FlushThreshold(memoryLimit())
}

// queuedCell is a cell and the order in which it was pushed.
type queuedCell struct {
	Cell
	seq uint64
}

// cellHeap is a min-heap of cells in row-major order. Cells at the same
// position come out in the order they went in.
type cellHeap []queuedCell

func (h cellHeap) Len() int { return len(h) }
func (h cellHeap) Less(i, j int) bool {
	if h[i].Row != h[j].Row || h[i].Col != h[j].Col {
		return h[i].Cell.Less(h[j].Cell)
	}
	return h[i].seq < h[j].seq
}
func (h cellHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cellHeap) Push(x interface{}) { *h = append(*h, x.(queuedCell)) }
func (h *cellHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// WriteBuffer accumulates cells and writes them to a raster in
// row-major order. Cells at the same position are written in the order
// they were pushed, so the last one pushed wins. Writing rows in order keeps access to the raster
// storage close to sequential when features are added roughly from north
// to south.
//
// A WriteBuffer is not safe for concurrent use.
type WriteBuffer struct {
	cells     cellHeap
	threshold int
	seq       uint64

	// Interval is the number of writes between progress reports and
	// cancellation checks while draining.
	Interval int
}

// NewWriteBuffer returns a buffer that reports itself full once it holds
// threshold cells. It returns an error satisfying IsResourceExhausted if
// that many cells would not fit in memory.
func NewWriteBuffer(threshold int) (*WriteBuffer, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("vecraster: invalid write buffer threshold %d", threshold)
	}
	if err := checkMemory("write buffer", float64(threshold)*float64(cellBytes)); err != nil {
		return nil, err
	}
	prealloc := threshold
	if prealloc > maxPrealloc {
		prealloc = maxPrealloc
	}
	return &WriteBuffer{
		cells:     make(cellHeap, 0, prealloc),
		threshold: threshold,
		Interval:  DefaultProgressInterval,
	}, nil
}

// Push adds c to the buffer.
func (b *WriteBuffer) Push(c Cell) {
	heap.Push(&b.cells, queuedCell{Cell: c, seq: b.seq})
	b.seq++
}

// Len returns the number of buffered cells.
func (b *WriteBuffer) Len() int { return len(b.cells) }

// Threshold returns the number of cells at which the buffer is full.
func (b *WriteBuffer) Threshold() int { return b.threshold }

// Full returns whether the buffer should be drained.
func (b *WriteBuffer) Full() bool { return len(b.cells) >= b.threshold }

// Drain writes all buffered cells to r, smallest (row, col) first, and
// returns the number of cells written. Every Interval writes, progress is
// reported and ctx is checked; if ctx is done, Drain stops and returns
// ErrCancelled, leaving the unwritten cells in the buffer.
func (b *WriteBuffer) Drain(ctx context.Context, r Raster, progress Progress) (int, error) {
	interval := b.Interval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	total := len(b.cells)
	var written int
	for len(b.cells) > 0 {
		c := heap.Pop(&b.cells).(queuedCell).Cell
		if err := r.SetValue(c.Row, c.Col, c.Value); err != nil {
			return written, fmt.Errorf("vecraster: writing cell %v: %v", c, err)
		}
		written++
		if written%interval == 0 {
			if ctx.Err() != nil {
				return written, ErrCancelled
			}
			progress.report(fmt.Sprintf("Writing to output (%d of %d)", written, total),
				int(float64(written)*100/float64(total)))
		}
	}
	return written, nil
}
