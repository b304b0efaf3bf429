package layout

import "fmt"

// Rect is a placed rectangle in absolute cell coordinates
type Rect struct {
	X, Y int
	W, H int
}

// Empty reports whether the rectangle covers no cells
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Area returns the cell count
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// Right returns the column one past the right edge
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns the row one past the bottom edge
func (r Rect) Bottom() int { return r.Y + r.H }

// Sub returns a nested rectangle relative to r, clipped to r
func (r Rect) Sub(x, y, w, h int) Rect {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > r.W {
		w = r.W - x
	}
	if y+h > r.H {
		h = r.H - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return Rect{X: r.X + x, Y: r.Y + y, W: w, H: h}
}

// Inset returns r shrunk by n cells on all sides
func (r Rect) Inset(n int) Rect {
	return r.Sub(n, n, r.W-2*n, r.H-2*n)
}

// Intersect returns the overlap of r and o, zero sized when disjoint
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.Right(), o.Right()), min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}
