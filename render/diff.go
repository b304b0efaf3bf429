package render

import (
	"fmt"
)

// DefaultMergeGap is the unchanged run length below which two changed runs on a row are merged
// Re-emitting two cells costs less than a cursor move sequence
const DefaultMergeGap = 3

// Span is a contiguous run of cells to write on one row
type Span struct {
	Row   int
	Col   int
	Cells []Cell
}

// End returns the column one past the last cell
func (s Span) End() int { return s.Col + len(s.Cells) }

// BufferDiff is the ordered set of row spans turning one buffer into another
// Spans are sorted by row then column and never overlap
type BufferDiff struct {
	Width  int
	Height int
	Spans  []Span
}

// IsEmpty reports whether the diff carries no changes
func (d *BufferDiff) IsEmpty() bool {
	return d == nil || len(d.Spans) == 0
}

// CellCount returns the total number of cells carried by all spans
func (d *BufferDiff) CellCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for i := range d.Spans {
		n += len(d.Spans[i].Cells)
	}
	return n
}

// Diff computes the minimal span set from prev to next using DefaultMergeGap
func Diff(prev, next *Buffer) (*BufferDiff, error) {
	return DiffWithGap(prev, next, DefaultMergeGap)
}

// DiffWithGap computes spans from prev to next, merging runs separated by fewer than gap unchanged cells
func DiffWithGap(prev, next *Buffer, gap int) (*BufferDiff, error) {
	if prev == nil || next == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrDimensionMismatch)
	}
	if !prev.SameShape(next) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d",
			ErrDimensionMismatch, prev.width, prev.height, next.width, next.height)
	}
	if gap < 1 {
		gap = 1
	}

	d := &BufferDiff{Width: next.width, Height: next.height}
	if next.width == 0 {
		return d, nil
	}

	// Row mask reused across rows
	mask := make([]bool, next.width)

	for y := 0; y < next.height; y++ {
		oldRow := prev.Row(y)
		newRow := next.Row(y)

		dirty := false
		for x := range newRow {
			m := oldRow[x] != newRow[x]
			mask[x] = m
			dirty = dirty || m
		}
		if !dirty {
			continue
		}

		expandWidePairs(mask, oldRow, newRow)
		d.Spans = appendRowSpans(d.Spans, mask, newRow, y, gap)
	}

	return d, nil
}

// expandWidePairs marks the partner of every marked wide pair half in either row until stable
// A new pair may straddle an old pair, so one marked column can pull in a chain of neighbors
func expandWidePairs(mask []bool, oldRow, newRow []Cell) {
	width := len(mask)
	for {
		grew := false
		for x := 0; x < width; x++ {
			if !mask[x] {
				continue
			}
			if x+1 < width && !mask[x+1] && (oldRow[x].Width == WidthWideLead || newRow[x].Width == WidthWideLead) {
				mask[x+1] = true
				grew = true
			}
			if x > 0 && !mask[x-1] && (oldRow[x].Width == WidthWideCont || newRow[x].Width == WidthWideCont) {
				mask[x-1] = true
				grew = true
			}
		}
		if !grew {
			return
		}
	}
}

// appendRowSpans converts a marked row mask into spans, absorbing short unchanged gaps
func appendRowSpans(spans []Span, mask []bool, row []Cell, y, gap int) []Span {
	width := len(mask)
	x := 0
	for x < width {
		if !mask[x] {
			x++
			continue
		}

		start := x
		end := x + 1 // exclusive
		for end < width {
			if mask[end] {
				end++
				continue
			}
			// Look ahead across the unchanged gap
			next := end
			for next < width && !mask[next] {
				next++
			}
			if next < width && next-end < gap {
				end = next
				continue
			}
			break
		}

		cells := make([]Cell, end-start)
		copy(cells, row[start:end])
		spans = append(spans, Span{Row: y, Col: start, Cells: cells})
		x = end
	}
	return spans
}

// FullDiff returns one span per row covering the entire buffer, used for full redraws
func FullDiff(buf *Buffer) *BufferDiff {
	d := &BufferDiff{Width: buf.width, Height: buf.height}
	if buf.width == 0 {
		return d
	}
	d.Spans = make([]Span, 0, buf.height)
	for y := 0; y < buf.height; y++ {
		cells := make([]Cell, buf.width)
		copy(cells, buf.Row(y))
		d.Spans = append(d.Spans, Span{Row: y, Col: 0, Cells: cells})
	}
	return d
}

// Apply writes every span into buf, which must have the diff's dimensions
func (d *BufferDiff) Apply(buf *Buffer) error {
	if d == nil {
		return nil
	}
	if buf.width != d.Width || buf.height != d.Height {
		return fmt.Errorf("%w: diff %dx%d, buffer %dx%d",
			ErrDimensionMismatch, d.Width, d.Height, buf.width, buf.height)
	}
	for i := range d.Spans {
		s := &d.Spans[i]
		if s.Row < 0 || s.Row >= buf.height || s.Col < 0 || s.End() > buf.width {
			return fmt.Errorf("%w: span %d at row %d cols [%d,%d)", ErrSpanBounds, i, s.Row, s.Col, s.End())
		}
	}
	for i := range d.Spans {
		s := &d.Spans[i]
		copy(buf.Row(s.Row)[s.Col:], s.Cells)
	}
	return nil
}
