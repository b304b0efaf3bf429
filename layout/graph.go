package layout

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
)

// NodeID is a dense arena index; slots of removed nodes are recycled
type NodeID uint32

// ErrCycle is matched by every CycleError
var ErrCycle = errors.New("layout cycle")

// ErrUnknownNode is returned for operations on removed or never-created nodes
var ErrUnknownNode = errors.New("unknown layout node")

// CycleError reports an edge insertion rejected because it would close a cycle
type CycleError struct {
	From NodeID
	To   NodeID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("layout cycle: %d -> %d would create a cycle", e.From, e.To)
}

// Is lets errors.Is match ErrCycle
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Graph is an acyclic dependency graph over arena-allocated nodes
// deps[a] holds the nodes a depends on; rdeps[b] holds the nodes depending on b
type Graph struct {
	live  []bool
	deps  [][]NodeID
	rdeps [][]NodeID
	free  []NodeID
	count int
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{}
}

// AddNode allocates a node, reusing a freed slot when available
func (g *Graph) AddNode() NodeID {
	g.count++
	if n := len(g.free); n > 0 {
		// Lowest free slot keeps IDs dense and allocation order deterministic
		slices.Sort(g.free)
		id := g.free[0]
		g.free = g.free[1:]
		g.live[id] = true
		g.deps[id] = g.deps[id][:0]
		g.rdeps[id] = g.rdeps[id][:0]
		return id
	}
	id := NodeID(len(g.live))
	g.live = append(g.live, true)
	g.deps = append(g.deps, nil)
	g.rdeps = append(g.rdeps, nil)
	return id
}

// Has reports whether id is a live node
func (g *Graph) Has(id NodeID) bool {
	return int(id) < len(g.live) && g.live[id]
}

// Len returns the number of live nodes
func (g *Graph) Len() int { return g.count }

// Cap returns the arena size including free slots
func (g *Graph) Cap() int { return len(g.live) }

// EdgeCount returns the number of dependency edges
func (g *Graph) EdgeCount() int {
	n := 0
	for i := range g.deps {
		n += len(g.deps[i])
	}
	return n
}

// RemoveNode detaches every edge of id and frees its slot
// Returns the former dependents so callers can invalidate them
func (g *Graph) RemoveNode(id NodeID) []NodeID {
	if !g.Has(id) {
		return nil
	}
	for _, dep := range g.deps[id] {
		g.rdeps[dep] = removeID(g.rdeps[dep], id)
	}
	dependents := slices.Clone(g.rdeps[id])
	for _, d := range dependents {
		g.deps[d] = removeID(g.deps[d], id)
	}
	g.deps[id] = g.deps[id][:0]
	g.rdeps[id] = g.rdeps[id][:0]
	g.live[id] = false
	g.free = append(g.free, id)
	g.count--
	return dependents
}

// AddEdge records that a depends on b
// The insertion is rejected with the graph unchanged if b already reaches a
func (g *Graph) AddEdge(a, b NodeID) error {
	if !g.Has(a) || !g.Has(b) {
		return fmt.Errorf("%w: edge %d -> %d", ErrUnknownNode, a, b)
	}
	if a == b || g.reaches(b, a) {
		return &CycleError{From: a, To: b}
	}
	if slices.Contains(g.deps[a], b) {
		return nil
	}
	g.deps[a] = append(g.deps[a], b)
	g.rdeps[b] = append(g.rdeps[b], a)
	return nil
}

// RemoveEdge drops the a -> b dependency if present
func (g *Graph) RemoveEdge(a, b NodeID) {
	if !g.Has(a) || !g.Has(b) {
		return
	}
	g.deps[a] = removeID(g.deps[a], b)
	g.rdeps[b] = removeID(g.rdeps[b], a)
}

// reaches reports whether from reaches to along depends-on edges
func (g *Graph) reaches(from, to NodeID) bool {
	visited := make([]bool, len(g.live))
	stack := []NodeID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, d := range g.deps[cur] {
			if !visited[d] {
				stack = append(stack, d)
			}
		}
	}
	return false
}

// Dependencies returns the nodes id depends on, in insertion order
func (g *Graph) Dependencies(id NodeID) []NodeID {
	if !g.Has(id) {
		return nil
	}
	return g.deps[id]
}

// Dependents returns the nodes depending on id, in insertion order
func (g *Graph) Dependents(id NodeID) []NodeID {
	if !g.Has(id) {
		return nil
	}
	return g.rdeps[id]
}

// Closure returns ids and every node transitively depending on them, by walking reverse edges
func (g *Graph) Closure(ids ...NodeID) []NodeID {
	visited := make([]bool, len(g.live))
	var out []NodeID
	queue := make([]NodeID, 0, len(ids))
	for _, id := range ids {
		if g.Has(id) && !visited[id] {
			visited[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		for _, d := range g.rdeps[cur] {
			if !visited[d] {
				visited[d] = true
				queue = append(queue, d)
			}
		}
	}
	return out
}

// TopoOrder returns every live node with dependencies before dependents
// Ties are broken by ascending ID so the order is a pure function of the graph
func (g *Graph) TopoOrder() []NodeID {
	indeg := make([]int, len(g.live))
	ready := &idHeap{}
	for i, ok := range g.live {
		if !ok {
			continue
		}
		indeg[i] = len(g.deps[i])
		if indeg[i] == 0 {
			*ready = append(*ready, NodeID(i))
		}
	}
	heap.Init(ready)

	order := make([]NodeID, 0, g.count)
	for ready.Len() > 0 {
		cur := heap.Pop(ready).(NodeID)
		order = append(order, cur)
		for _, d := range g.rdeps[cur] {
			indeg[d]--
			if indeg[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return order
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}

// idHeap is a min-heap of node IDs
type idHeap []NodeID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(NodeID)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
