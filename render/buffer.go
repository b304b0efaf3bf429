package render

import (
	"fmt"
)

// Buffer is a fixed-size frame grid with a generation stamp
// Cells are row-major: cells[y*width + x]
// A committed buffer is never mutated again; the next frame gets a new buffer
type Buffer struct {
	cells      []Cell
	width      int
	height     int
	generation uint64
}

// NewBuffer creates a blank buffer with the specified dimensions
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{
		cells:  make([]Cell, width*height),
		width:  width,
		height: height,
	}
}

// Width returns the column count
func (b *Buffer) Width() int { return b.width }

// Height returns the row count
func (b *Buffer) Height() int { return b.height }

// Generation returns the frame generation stamped at commit, 0 if never committed
func (b *Buffer) Generation() uint64 { return b.generation }

// SetGeneration stamps the frame generation, must be called once per committed frame
func (b *Buffer) SetGeneration(gen uint64) { b.generation = gen }

// SameShape reports whether both buffers have identical dimensions
func (b *Buffer) SameShape(o *Buffer) bool {
	return b.width == o.width && b.height == o.height
}

// inBounds returns true if in buffer bounds
func (b *Buffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// Cell returns the cell at (x, y), blank when out of bounds
func (b *Buffer) Cell(x, y int) Cell {
	if !b.inBounds(x, y) {
		return Cell{}
	}
	return b.cells[y*b.width+x]
}

// Row returns the cells of row y, shared with the buffer
func (b *Buffer) Row(y int) []Cell {
	if y < 0 || y >= b.height {
		return nil
	}
	start := y * b.width
	return b.cells[start : start+b.width : start+b.width]
}

// SetRaw writes a cell without maintaining wide pair invariants
// Used by diff application and tests that construct invalid states on purpose
func (b *Buffer) SetRaw(x, y int, c Cell) {
	if !b.inBounds(x, y) {
		return
	}
	b.cells[y*b.width+x] = c
}

// Set writes a narrow cell at (x, y), blanking the orphaned half of any wide pair it overlaps
// A wide lead passed to Set is written with its continuation via SetWide
func (b *Buffer) Set(x, y int, c Cell) bool {
	if !b.inBounds(x, y) {
		return false
	}
	switch c.Width {
	case WidthWideLead:
		return b.SetWide(x, y, c)
	case WidthWideCont:
		// Continuations exist only as part of a pair
		return false
	}
	b.breakPair(x, y)
	b.cells[y*b.width+x] = c
	return true
}

// SetWide writes a double-width cell at (x, y) and its continuation at (x+1, y)
// Returns false when the pair does not fit on the row
func (b *Buffer) SetWide(x, y int, lead Cell) bool {
	if !b.inBounds(x, y) || x+1 >= b.width {
		return false
	}
	lead.Width = WidthWideLead
	b.breakPair(x, y)
	b.breakPair(x+1, y)
	idx := y*b.width + x
	b.cells[idx] = lead
	b.cells[idx+1] = continuationOf(lead)
	return true
}

// breakPair blanks the partner of a wide pair half at (x, y) so no orphan survives an overwrite
func (b *Buffer) breakPair(x, y int) {
	idx := y*b.width + x
	switch b.cells[idx].Width {
	case WidthWideLead:
		if x+1 < b.width && b.cells[idx+1].Width == WidthWideCont {
			b.cells[idx+1] = blankWithStyle(b.cells[idx+1])
		}
	case WidthWideCont:
		if x > 0 && b.cells[idx-1].Width == WidthWideLead {
			b.cells[idx-1] = blankWithStyle(b.cells[idx-1])
		}
	}
}

// Fill sets every cell to c using exponential copy
func (b *Buffer) Fill(c Cell) {
	if len(b.cells) == 0 {
		return
	}
	c.Width = WidthNormal
	b.cells[0] = c
	for filled := 1; filled < len(b.cells); filled *= 2 {
		copy(b.cells[filled:], b.cells[:filled])
	}
}

// Clone returns a deep copy including the generation
func (b *Buffer) Clone() *Buffer {
	cells := make([]Cell, len(b.cells))
	copy(cells, b.cells)
	return &Buffer{
		cells:      cells,
		width:      b.width,
		height:     b.height,
		generation: b.generation,
	}
}

// Equal reports whether both buffers hold identical cells, generation is ignored
func (b *Buffer) Equal(o *Buffer) bool {
	if !b.SameShape(o) {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Validate checks the wide pair invariant over the whole grid
func (b *Buffer) Validate() error {
	for y := 0; y < b.height; y++ {
		row := b.Row(y)
		for x := 0; x < b.width; x++ {
			switch row[x].Width {
			case WidthWideLead:
				if x+1 >= b.width || row[x+1].Width != WidthWideCont {
					return fmt.Errorf("%w: wide lead at (%d,%d) without continuation", ErrWidePair, x, y)
				}
				x++
			case WidthWideCont:
				return fmt.Errorf("%w: orphan continuation at (%d,%d)", ErrWidePair, x, y)
			}
		}
	}
	return nil
}
