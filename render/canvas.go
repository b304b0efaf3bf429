package render

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Canvas is a clipped rectangular view over a Buffer
// All coordinates are relative to the canvas origin; writes outside the canvas are dropped
type Canvas struct {
	buf  *Buffer
	pool *GraphemePool
	X, Y int // Absolute position in buffer
	W, H int // Canvas dimensions
}

// NewCanvas returns a canvas covering the whole buffer
// pool may be nil, in which case multi-codepoint clusters degrade to their first rune
func NewCanvas(buf *Buffer, pool *GraphemePool) Canvas {
	return Canvas{buf: buf, pool: pool, W: buf.width, H: buf.height}
}

// Sub returns a nested canvas with coordinates relative to parent, clipped to parent bounds
func (c Canvas) Sub(x, y, w, h int) Canvas {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > c.W {
		w = c.W - x
	}
	if y+h > c.H {
		h = c.H - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return Canvas{buf: c.buf, pool: c.pool, X: c.X + x, Y: c.Y + y, W: w, H: h}
}

// Inset returns a canvas shrunk by n cells on all sides
func (c Canvas) Inset(n int) Canvas {
	return c.Sub(n, n, c.W-2*n, c.H-2*n)
}

// Bounds returns absolute position and dimensions
func (c Canvas) Bounds() (x, y, w, h int) {
	return c.X, c.Y, c.W, c.H
}

func (c Canvas) contains(x, y int) bool {
	return x >= 0 && x < c.W && y >= 0 && y < c.H
}

// Put writes a single rune with style, wide runes occupy two columns when both fit
func (c Canvas) Put(x, y int, r rune, st Style) {
	if !c.contains(x, y) {
		return
	}
	cell := Cell{Rune: r, Fg: st.Fg, Bg: st.Bg, Attrs: st.Attrs}
	if runewidth.RuneWidth(r) == 2 {
		if x+1 >= c.W {
			c.buf.Set(c.X+x, c.Y+y, Cell{Fg: st.Fg, Bg: st.Bg})
			return
		}
		c.buf.SetWide(c.X+x, c.Y+y, cell)
		return
	}
	c.buf.Set(c.X+x, c.Y+y, cell)
}

// Fill sets every cell of the canvas to a styled blank
func (c Canvas) Fill(st Style) {
	blank := Cell{Fg: st.Fg, Bg: st.Bg, Attrs: st.Attrs}
	for y := 0; y < c.H; y++ {
		for x := 0; x < c.W; x++ {
			c.buf.Set(c.X+x, c.Y+y, blank)
		}
	}
}

// Text writes s starting at (x, y) on one line, segmenting by grapheme cluster
// Returns the column after the last written cluster
// A wide cluster that does not fit the remaining width is replaced by a blank
func (c Canvas) Text(x, y int, s string, st Style) int {
	if y < 0 || y >= c.H {
		return x
	}
	state := -1
	for len(s) > 0 && x < c.W {
		var cluster string
		var width int
		cluster, s, width, state = uniseg.FirstGraphemeClusterInString(s, state)
		if width <= 0 {
			// Zero-width clusters such as lone combining marks carry nothing to draw
			continue
		}
		if width > 2 {
			width = 2
		}
		if x < 0 {
			x += width
			continue
		}

		cell := Cell{Fg: st.Fg, Bg: st.Bg, Attrs: st.Attrs}
		runes := []rune(cluster)
		if len(runes) == 1 || c.pool == nil {
			cell.Rune = runes[0]
		} else {
			cell.Grapheme = c.pool.Intern(cluster, width)
		}

		if width == 2 {
			if x+1 >= c.W {
				c.buf.Set(c.X+x, c.Y+y, Cell{Fg: st.Fg, Bg: st.Bg})
				return x + 1
			}
			c.buf.SetWide(c.X+x, c.Y+y, cell)
		} else {
			c.buf.Set(c.X+x, c.Y+y, cell)
		}
		x += width
	}
	return x
}

// TextWidth returns the display width of s in columns
func TextWidth(s string) int {
	return uniseg.StringWidth(s)
}
