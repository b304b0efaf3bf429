package layout

import (
	"fmt"
	"os"
	"slices"

	"github.com/lixenwraith/framekit/render"
)

// FullLayoutEnv forces every recompute through the full path when set to 1 or true
const FullLayoutEnv = "FRAMEKIT_FULL_LAYOUT"

// Painter draws a node's content into the canvas clipped to its rectangle
type Painter func(c render.Canvas, in Inputs)

// Snapshot maps every live node to its output rectangle
type Snapshot map[NodeID]Rect

// Stats describes one Recompute pass
type Stats struct {
	Generation uint64
	Visited    int  // dirty nodes examined
	Recomputed int  // nodes whose solver ran
	Reused     int  // dirty nodes whose input snapshot matched and kept their output
	Full       bool // cache bypassed
}

type node struct {
	solver  Solver
	painter Painter
	label   string
	in      Inputs
	rect    Rect
	dirty   bool
	gen     uint64 // generation of the last solver run

	// Input snapshot of the last solver run
	cached   bool
	lastIn   Inputs
	lastDeps []Rect
}

// Engine owns the layout nodes of a session and recomputes dirty ones in dependency order
// Not safe for concurrent use; the session goroutine is the only caller
type Engine struct {
	graph     *Graph
	nodes     []node
	root      NodeID
	gen       uint64
	forceFull bool
	scratch   []Rect
}

// NewEngine creates an engine whose root node is a viewport of the given size
func NewEngine(width, height int) *Engine {
	e := &Engine{graph: NewGraph()}
	e.root, _ = e.AddNode(Viewport{}, Inputs{Constraint: Constraint{Width: width, Height: height}})
	e.SetLabel(e.root, "root")
	switch os.Getenv(FullLayoutEnv) {
	case "1", "true", "TRUE", "yes":
		e.forceFull = true
	}
	return e
}

// Root returns the viewport node
func (e *Engine) Root() NodeID { return e.root }

// Len returns the live node count
func (e *Engine) Len() int { return e.graph.Len() }

// Generation returns the number of Recompute passes run
func (e *Engine) Generation() uint64 { return e.gen }

// SetForceFull makes every Recompute bypass the input snapshot cache
func (e *Engine) SetForceFull(on bool) { e.forceFull = on }

// ForceFull reports whether the cache is bypassed
func (e *Engine) ForceFull() bool { return e.forceFull }

// AddNode creates a dirty node depending on deps, in order
// On a rejected dependency the node is removed again and the error returned
func (e *Engine) AddNode(s Solver, in Inputs, deps ...NodeID) (NodeID, error) {
	if s == nil {
		s = Fill{}
	}
	id := e.graph.AddNode()
	n := node{solver: s, in: in, dirty: true}
	if int(id) < len(e.nodes) {
		e.nodes[id] = n
	} else {
		e.nodes = append(e.nodes, n)
	}
	for _, d := range deps {
		if err := e.graph.AddEdge(id, d); err != nil {
			e.graph.RemoveNode(id)
			e.nodes[id] = node{}
			return 0, err
		}
	}
	return id, nil
}

// MustAddNode is AddNode for static trees built at startup, panicking on error
func (e *Engine) MustAddNode(s Solver, in Inputs, deps ...NodeID) NodeID {
	id, err := e.AddNode(s, in, deps...)
	if err != nil {
		panic(err)
	}
	return id
}

// RemoveNode retires id; its dependents lose the edge and are invalidated
func (e *Engine) RemoveNode(id NodeID) error {
	if !e.graph.Has(id) {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if id == e.root {
		return fmt.Errorf("%w: root node cannot be removed", ErrUnknownNode)
	}
	dependents := e.graph.RemoveNode(id)
	e.nodes[id] = node{}
	e.markDirty(dependents...)
	return nil
}

// AddDependency records that a depends on b and invalidates a
func (e *Engine) AddDependency(a, b NodeID) error {
	if err := e.graph.AddEdge(a, b); err != nil {
		return err
	}
	e.markDirty(a)
	return nil
}

// RemoveDependency drops the a -> b edge and invalidates a
func (e *Engine) RemoveDependency(a, b NodeID) {
	e.graph.RemoveEdge(a, b)
	e.markDirty(a)
}

// SetInputs replaces the inputs of id, invalidating only when they differ
// Returns true if the node was invalidated
func (e *Engine) SetInputs(id NodeID, in Inputs) bool {
	if !e.graph.Has(id) {
		return false
	}
	n := &e.nodes[id]
	if n.in == in {
		return false
	}
	n.in = in
	e.markDirty(id)
	return true
}

// Inputs returns the current inputs of id
func (e *Engine) Inputs(id NodeID) (Inputs, bool) {
	if !e.graph.Has(id) {
		return Inputs{}, false
	}
	return e.nodes[id].in, true
}

// SetConstraint updates the constraint input of id
func (e *Engine) SetConstraint(id NodeID, c Constraint) bool {
	in, ok := e.Inputs(id)
	if !ok {
		return false
	}
	in.Constraint = c
	return e.SetInputs(id, in)
}

// SetContent updates the content fingerprint of id
func (e *Engine) SetContent(id NodeID, content string) bool {
	in, ok := e.Inputs(id)
	if !ok {
		return false
	}
	in.Content = content
	return e.SetInputs(id, in)
}

// SetTheme updates the theme key of id
func (e *Engine) SetTheme(id NodeID, theme uint64) bool {
	in, ok := e.Inputs(id)
	if !ok {
		return false
	}
	in.Theme = theme
	return e.SetInputs(id, in)
}

// SetViewport updates the root size, the entry point for committed resizes
func (e *Engine) SetViewport(width, height int) bool {
	c := e.nodes[e.root].in.Constraint
	c.Width, c.Height = width, height
	return e.SetConstraint(e.root, c)
}

// SetSolver swaps the solver of id and invalidates it
func (e *Engine) SetSolver(id NodeID, s Solver) {
	if !e.graph.Has(id) || s == nil {
		return
	}
	e.nodes[id].solver = s
	e.nodes[id].cached = false
	e.markDirty(id)
}

// SetPainter attaches a painter used by Render
func (e *Engine) SetPainter(id NodeID, p Painter) {
	if e.graph.Has(id) {
		e.nodes[id].painter = p
	}
}

// SetLabel names a node for debug output
func (e *Engine) SetLabel(id NodeID, label string) {
	if e.graph.Has(id) {
		e.nodes[id].label = label
	}
}

// Label returns the debug name of id, or its number
func (e *Engine) Label(id NodeID) string {
	if e.graph.Has(id) && e.nodes[id].label != "" {
		return e.nodes[id].label
	}
	return fmt.Sprintf("n%d", id)
}

// Invalidate marks id and all its transitive dependents dirty
func (e *Engine) Invalidate(id NodeID) {
	e.markDirty(id)
}

// InvalidateAll marks every node dirty without dropping cached snapshots
func (e *Engine) InvalidateAll() {
	for _, id := range e.graph.TopoOrder() {
		e.nodes[id].dirty = true
	}
}

func (e *Engine) markDirty(ids ...NodeID) {
	for _, id := range e.graph.Closure(ids...) {
		e.nodes[id].dirty = true
	}
}

// IsDirty reports whether id awaits recompute
func (e *Engine) IsDirty(id NodeID) bool {
	return e.graph.Has(id) && e.nodes[id].dirty
}

// Dirty reports whether any node awaits recompute
func (e *Engine) Dirty() bool {
	for i := range e.nodes {
		if e.nodes[i].dirty && e.graph.Has(NodeID(i)) {
			return true
		}
	}
	return false
}

// Rect returns the last computed rectangle of id
func (e *Engine) Rect(id NodeID) (Rect, bool) {
	if !e.graph.Has(id) {
		return Rect{}, false
	}
	return e.nodes[id].rect, true
}

// RootRect returns the committed viewport rectangle
func (e *Engine) RootRect() Rect {
	return e.nodes[e.root].rect
}

// Dependencies returns the nodes id depends on
func (e *Engine) Dependencies(id NodeID) []NodeID { return e.graph.Dependencies(id) }

// Dependents returns the nodes depending on id
func (e *Engine) Dependents(id NodeID) []NodeID { return e.graph.Dependents(id) }

// TopoOrder returns live nodes with dependencies first
func (e *Engine) TopoOrder() []NodeID { return e.graph.TopoOrder() }

// depRects collects the current rectangles of id's dependencies into dst
func (e *Engine) depRects(id NodeID, rects []Rect, dst []Rect) []Rect {
	for _, d := range e.graph.Dependencies(id) {
		dst = append(dst, rects[d])
	}
	return dst
}

// Recompute solves dirty nodes in dependency order
// A dirty node whose inputs and dependency rectangles equal its last snapshot keeps its output
func (e *Engine) Recompute() Stats {
	e.gen++
	st := Stats{Generation: e.gen, Full: e.forceFull}

	// Current rectangles indexed by node, read by depRects as nodes settle in order
	rects := e.currentRects()

	for _, id := range e.graph.TopoOrder() {
		n := &e.nodes[id]
		if !n.dirty && !e.forceFull {
			continue
		}
		st.Visited++

		e.scratch = e.depRects(id, rects, e.scratch[:0])
		if !e.forceFull && n.cached && n.lastIn == n.in && slices.Equal(n.lastDeps, e.scratch) {
			n.dirty = false
			st.Reused++
			continue
		}

		n.rect = n.solver.Solve(n.in, e.scratch)
		rects[id] = n.rect
		n.lastIn = n.in
		n.lastDeps = append(n.lastDeps[:0], e.scratch...)
		n.cached = true
		n.gen = e.gen
		n.dirty = false
		st.Recomputed++
	}
	return st
}

func (e *Engine) currentRects() []Rect {
	rects := make([]Rect, len(e.nodes))
	for i := range e.nodes {
		rects[i] = e.nodes[i].rect
	}
	return rects
}

// FullRecompute solves every node from scratch ignoring caches and dirty flags
// Engine state is not modified; the result is the reference for incremental recompute
func (e *Engine) FullRecompute() Snapshot {
	rects := make([]Rect, len(e.nodes))
	var deps []Rect
	snap := make(Snapshot, e.graph.Len())
	for _, id := range e.graph.TopoOrder() {
		n := &e.nodes[id]
		deps = e.depRects(id, rects, deps[:0])
		rects[id] = n.solver.Solve(n.in, deps)
		snap[id] = rects[id]
	}
	return snap
}

// Snapshot returns the current rectangle of every live node
func (e *Engine) Snapshot() Snapshot {
	snap := make(Snapshot, e.graph.Len())
	for _, id := range e.graph.TopoOrder() {
		snap[id] = e.nodes[id].rect
	}
	return snap
}

// LastComputed returns the generation of the last solver run for id
func (e *Engine) LastComputed(id NodeID) uint64 {
	if !e.graph.Has(id) {
		return 0
	}
	return e.nodes[id].gen
}

// Render paints every node with a painter, in dependency order, into a fresh buffer sized to the root
func (e *Engine) Render(pool *render.GraphemePool) *render.Buffer {
	root := e.RootRect()
	buf := render.NewBuffer(root.W, root.H)
	canvas := render.NewCanvas(buf, pool)
	for _, id := range e.graph.TopoOrder() {
		n := &e.nodes[id]
		if n.painter == nil || n.rect.Empty() {
			continue
		}
		n.painter(canvas.Sub(n.rect.X, n.rect.Y, n.rect.W, n.rect.H), n.in)
	}
	return buf
}
