package layout

import (
	"strings"

	"github.com/lixenwraith/framekit/render"
)

// FillPainter paints the node rectangle with a styled blank
func FillPainter(st render.Style) Painter {
	return func(c render.Canvas, _ Inputs) {
		c.Fill(st)
	}
}

// TextPainter paints the content lines top-down, clipping at the rectangle edges
func TextPainter(st render.Style) Painter {
	return func(c render.Canvas, in Inputs) {
		for y, line := range strings.Split(in.Content, "\n") {
			if y >= c.H {
				return
			}
			c.Text(0, y, line, st)
		}
	}
}

// Box drawing runes
const (
	boxH  = '─'
	boxV  = '│'
	boxTL = '┌'
	boxTR = '┐'
	boxBL = '└'
	boxBR = '┘'
)

// BoxPainter draws a single-line border with the content as title
func BoxPainter(border, title render.Style) Painter {
	return func(c render.Canvas, in Inputs) {
		if c.W < 2 || c.H < 2 {
			return
		}
		for x := 1; x < c.W-1; x++ {
			c.Put(x, 0, boxH, border)
			c.Put(x, c.H-1, boxH, border)
		}
		for y := 1; y < c.H-1; y++ {
			c.Put(0, y, boxV, border)
			c.Put(c.W-1, y, boxV, border)
		}
		c.Put(0, 0, boxTL, border)
		c.Put(c.W-1, 0, boxTR, border)
		c.Put(0, c.H-1, boxBL, border)
		c.Put(c.W-1, c.H-1, boxBR, border)

		if in.Content != "" && c.W > 4 {
			c.Sub(2, 0, c.W-4, 1).Text(0, 0, in.Content, title)
		}
	}
}

// Chain runs painters in order on the same canvas
func Chain(painters ...Painter) Painter {
	return func(c render.Canvas, in Inputs) {
		for _, p := range painters {
			if p != nil {
				p(c, in)
			}
		}
	}
}
