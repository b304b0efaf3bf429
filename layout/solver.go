package layout

// InputKind names the input domain a change touched
type InputKind uint8

const (
	InputConstraint InputKind = iota // size constraints
	InputContent                     // content fingerprint
	InputTheme                       // theme/style key
)

func (k InputKind) String() string {
	switch k {
	case InputConstraint:
		return "constraint"
	case InputContent:
		return "content"
	case InputTheme:
		return "theme"
	default:
		return "unknown"
	}
}

// Constraint carries the sizing inputs of a node
// Zero fields mean unconstrained
type Constraint struct {
	Width  int // preferred width
	Height int // preferred height
	MinW   int
	MinH   int
	MaxW   int
	MaxH   int
	Margin int // cells removed on every side before placement
}

// Inputs is the full declared input set of a node
// Must stay comparable: recompute skipping relies on ==
type Inputs struct {
	Constraint Constraint
	Content    string // content fingerprint, also painted by text painters
	Theme      uint64 // opaque style key
}

// Solver computes a node's rectangle from its inputs and its dependencies' rectangles
// deps are in declaration order; solvers must be pure functions of their arguments
type Solver interface {
	Solve(in Inputs, deps []Rect) Rect
}

// SolverFunc adapts a function to Solver
type SolverFunc func(in Inputs, deps []Rect) Rect

// Solve calls f
func (f SolverFunc) Solve(in Inputs, deps []Rect) Rect { return f(in, deps) }

// Axis selects the split direction
type Axis uint8

const (
	Horizontal Axis = iota // children side by side
	Vertical               // children stacked top to bottom
)

// Viewport places a node at the origin with the preferred size of its constraint
// Used for the root node; SetViewport writes its constraint
type Viewport struct{}

func (Viewport) Solve(in Inputs, _ []Rect) Rect {
	return clampSize(Rect{W: in.Constraint.Width, H: in.Constraint.Height}, in.Constraint)
}

// Fill takes the whole first dependency minus the margin
type Fill struct{}

func (Fill) Solve(in Inputs, deps []Rect) Rect {
	if len(deps) == 0 {
		return Rect{}
	}
	return deps[0].Inset(in.Constraint.Margin)
}

// Inset takes the first dependency shrunk by N cells on all sides
type Inset struct {
	N int
}

func (s Inset) Solve(in Inputs, deps []Rect) Rect {
	if len(deps) == 0 {
		return Rect{}
	}
	return deps[0].Inset(s.N + in.Constraint.Margin)
}

// Center places the preferred size centered within the first dependency
type Center struct{}

func (Center) Solve(in Inputs, deps []Rect) Rect {
	if len(deps) == 0 {
		return Rect{}
	}
	outer := deps[0].Inset(in.Constraint.Margin)
	size := clampSize(Rect{W: in.Constraint.Width, H: in.Constraint.Height}, in.Constraint)
	x := (outer.W - size.W) / 2
	y := (outer.H - size.H) / 2
	return outer.Sub(x, y, size.W, size.H)
}

// Split takes slot Index of the first dependency split along Axis by Ratios
// Ratios are normalized if they don't sum to 1.0; the last slot gets the remainder
type Split struct {
	Axis   Axis
	Ratios []float64
	Index  int
}

func (s Split) Solve(in Inputs, deps []Rect) Rect {
	if len(deps) == 0 || s.Index < 0 || s.Index >= len(s.Ratios) {
		return Rect{}
	}
	outer := deps[0].Inset(in.Constraint.Margin)

	total := outer.W
	if s.Axis == Vertical {
		total = outer.H
	}

	var sum float64
	for _, ratio := range s.Ratios {
		sum += ratio
	}
	if sum <= 0 {
		sum = 1
	}

	offset := 0
	remaining := total
	for i, ratio := range s.Ratios {
		var size int
		if i == len(s.Ratios)-1 {
			size = remaining
		} else {
			size = int((float64(total) * ratio / sum) + 0.5)
			if size > remaining {
				size = remaining
			}
		}
		if i == s.Index {
			if s.Axis == Vertical {
				return outer.Sub(0, offset, outer.W, size)
			}
			return outer.Sub(offset, 0, size, outer.H)
		}
		offset += size
		remaining -= size
	}
	return Rect{}
}

// Stack places a node of its preferred extent along Axis directly after its previous sibling
// deps[0] is the container, optional deps[1] is the previous sibling
// The last item of a stack may set Fill to take the space left in the container
type Stack struct {
	Axis Axis
	Gap  int
	Fill bool
}

func (s Stack) Solve(in Inputs, deps []Rect) Rect {
	if len(deps) == 0 {
		return Rect{}
	}
	outer := deps[0].Inset(in.Constraint.Margin)

	offset := 0
	if len(deps) > 1 {
		prev := deps[1]
		if s.Axis == Vertical {
			offset = prev.Bottom() - outer.Y + s.Gap
		} else {
			offset = prev.Right() - outer.X + s.Gap
		}
	}

	if s.Axis == Vertical {
		h := in.Constraint.Height
		if s.Fill {
			h = outer.H - offset
		}
		return clampSize(outer.Sub(0, offset, outer.W, h), in.Constraint)
	}
	w := in.Constraint.Width
	if s.Fill {
		w = outer.W - offset
	}
	return clampSize(outer.Sub(offset, 0, w, outer.H), in.Constraint)
}

// clampSize applies min/max bounds of c to the size of r, keeping its origin
func clampSize(r Rect, c Constraint) Rect {
	if c.MaxW > 0 && r.W > c.MaxW {
		r.W = c.MaxW
	}
	if c.MaxH > 0 && r.H > c.MaxH {
		r.H = c.MaxH
	}
	if r.W < c.MinW {
		r.W = c.MinW
	}
	if r.H < c.MinH {
		r.H = c.MinH
	}
	if r.W < 0 {
		r.W = 0
	}
	if r.H < 0 {
		r.H = 0
	}
	return r
}
