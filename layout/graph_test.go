package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphRejectsCycleUnchanged(t *testing.T) {
	g := NewGraph()
	a, b, c := g.AddNode(), g.AddNode(), g.AddNode()
	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(b, c))

	err := g.AddEdge(c, a)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, c, ce.From)
	assert.Equal(t, a, ce.To)

	assert.Empty(t, g.Dependencies(c))
	assert.Empty(t, g.Dependents(a))
	assert.Equal(t, 2, g.EdgeCount())

	assert.ErrorIs(t, g.AddEdge(a, a), ErrCycle, "self loop")
}

func TestGraphTopoOrderTieBreak(t *testing.T) {
	g := NewGraph()
	ids := make([]NodeID, 6)
	for i := range ids {
		ids[i] = g.AddNode()
	}
	// 5 and 3 depend on 0; 1 depends on 5; 2 and 4 are free
	require.NoError(t, g.AddEdge(ids[5], ids[0]))
	require.NoError(t, g.AddEdge(ids[3], ids[0]))
	require.NoError(t, g.AddEdge(ids[1], ids[5]))

	assert.Equal(t, []NodeID{0, 2, 3, 4, 5, 1}, g.TopoOrder())
}

func TestGraphClosureFollowsDependents(t *testing.T) {
	g := NewGraph()
	root, mid, leaf, other := g.AddNode(), g.AddNode(), g.AddNode(), g.AddNode()
	require.NoError(t, g.AddEdge(mid, root))
	require.NoError(t, g.AddEdge(leaf, mid))

	assert.ElementsMatch(t, []NodeID{root, mid, leaf}, g.Closure(root))
	assert.ElementsMatch(t, []NodeID{other}, g.Closure(other))
}

func TestGraphRemoveNodeRecyclesSlot(t *testing.T) {
	g := NewGraph()
	a, b, c := g.AddNode(), g.AddNode(), g.AddNode()
	require.NoError(t, g.AddEdge(b, a))
	require.NoError(t, g.AddEdge(c, b))

	dependents := g.RemoveNode(b)
	assert.Equal(t, []NodeID{c}, dependents)
	assert.False(t, g.Has(b))
	assert.Empty(t, g.Dependencies(c))
	assert.Empty(t, g.Dependents(a))
	assert.Equal(t, 2, g.Len())

	d := g.AddNode()
	assert.Equal(t, b, d, "freed slot reused")
	assert.Empty(t, g.Dependencies(d))

	assert.ErrorIs(t, g.AddEdge(NodeID(99), a), ErrUnknownNode)
}

func TestGraphDuplicateEdgeIgnored(t *testing.T) {
	g := NewGraph()
	a, b := g.AddNode(), g.AddNode()
	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(a, b))
	assert.Equal(t, 1, g.EdgeCount())
}
