package render

import (
	"github.com/gdamore/tcell/v2"
)

// Attr represents text attributes (bitmask)
type Attr uint8

const (
	AttrNone      Attr = 0
	AttrBold      Attr = 1 << 0
	AttrDim       Attr = 1 << 1
	AttrItalic    Attr = 1 << 2
	AttrUnderline Attr = 1 << 3
	AttrBlink     Attr = 1 << 4
	AttrReverse   Attr = 1 << 5
	AttrStrike    Attr = 1 << 6
)

// WidthClass tells how many columns a cell's content occupies and which half of a wide pair it is
type WidthClass uint8

const (
	WidthNormal   WidthClass = iota // single column
	WidthWideLead                   // first column of a double-width cluster, carries content
	WidthWideCont                   // second column of a double-width cluster, carries no content
)

// GraphemeID references a multi-codepoint cluster interned in a GraphemePool, 0 means none
type GraphemeID uint32

// Cell is a single grid position
// Content is either Rune (single code point, 0 is blank) or Grapheme (pooled cluster)
// Colors are packed tcell colors; tcell.ColorDefault leaves the terminal default in place
type Cell struct {
	Rune     rune
	Grapheme GraphemeID
	Fg       tcell.Color
	Bg       tcell.Color
	Attrs    Attr
	Width    WidthClass
}

// Blank is the empty cell with default colors
var Blank = Cell{Fg: tcell.ColorDefault, Bg: tcell.ColorDefault}

// Style groups the color and attribute part of a cell
type Style struct {
	Fg    tcell.Color
	Bg    tcell.Color
	Attrs Attr
}

// DefaultStyle uses terminal default colors and no attributes
var DefaultStyle = Style{Fg: tcell.ColorDefault, Bg: tcell.ColorDefault}

// Style returns the color and attribute part of the cell
func (c Cell) Style() Style {
	return Style{Fg: c.Fg, Bg: c.Bg, Attrs: c.Attrs}
}

// IsBlank reports whether the cell carries no content
func (c Cell) IsBlank() bool {
	return c.Rune == 0 && c.Grapheme == 0 && c.Width == WidthNormal
}

// IsContinuation reports whether the cell is the trailing half of a wide pair
func (c Cell) IsContinuation() bool {
	return c.Width == WidthWideCont
}

// IsWide reports whether the cell is the leading half of a wide pair
func (c Cell) IsWide() bool {
	return c.Width == WidthWideLead
}

// Columns returns the terminal column count occupied when the cell is emitted
func (c Cell) Columns() int {
	switch c.Width {
	case WidthWideLead:
		return 2
	case WidthWideCont:
		return 0
	default:
		return 1
	}
}

// continuationOf returns the trailing half matching a wide lead cell
func continuationOf(lead Cell) Cell {
	return Cell{Fg: lead.Fg, Bg: lead.Bg, Attrs: lead.Attrs, Width: WidthWideCont}
}

// blankWithStyle returns an empty cell keeping the colors of c
func blankWithStyle(c Cell) Cell {
	return Cell{Fg: c.Fg, Bg: c.Bg}
}
