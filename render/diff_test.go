package render

import (
	"math/rand/v2"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffHelloOnBlank(t *testing.T) {
	prev := NewBuffer(80, 24)
	next := NewBuffer(80, 24)
	NewCanvas(next, nil).Text(0, 0, "hello", DefaultStyle)

	d, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, d.Spans, 1)

	s := d.Spans[0]
	assert.Equal(t, 0, s.Row)
	assert.Equal(t, 0, s.Col)
	assert.Len(t, s.Cells, 5)
	assert.Equal(t, 'h', s.Cells[0].Rune)
	assert.Equal(t, 'o', s.Cells[4].Rune)

	out := prev.Clone()
	require.NoError(t, d.Apply(out))
	assert.True(t, out.Equal(next))
}

func TestDiffIdenticalIsEmpty(t *testing.T) {
	a := NewBuffer(10, 3)
	NewCanvas(a, nil).Text(2, 1, "same", DefaultStyle)

	d, err := Diff(a, a.Clone())
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())
	assert.Zero(t, d.CellCount())
}

func TestDiffDimensionMismatch(t *testing.T) {
	_, err := Diff(NewBuffer(10, 3), NewBuffer(10, 4))
	require.ErrorIs(t, err, ErrDimensionMismatch)

	d := FullDiff(NewBuffer(4, 4))
	require.ErrorIs(t, d.Apply(NewBuffer(5, 4)), ErrDimensionMismatch)
}

func TestDiffWideReplacesNarrow(t *testing.T) {
	prev := NewBuffer(10, 1)
	NewCanvas(prev, nil).Text(0, 0, "abcdefghij", DefaultStyle)
	next := prev.Clone()
	next.SetWide(4, 0, Cell{Rune: '世'})

	d, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, d.Spans, 1)

	s := d.Spans[0]
	assert.Equal(t, 4, s.Col)
	require.Len(t, s.Cells, 2)
	assert.Equal(t, WidthWideLead, s.Cells[0].Width)
	assert.Equal(t, WidthWideCont, s.Cells[1].Width)

	out := prev.Clone()
	require.NoError(t, d.Apply(out))
	assert.True(t, out.Equal(next))
	assert.NoError(t, out.Validate())
}

func TestDiffWidePairAtomicInOldBuffer(t *testing.T) {
	prev := NewBuffer(10, 1)
	prev.SetWide(2, 0, Cell{Rune: '世'})
	next := prev.Clone()
	// Overwriting the continuation blanks the lead in next
	next.Set(3, 0, Cell{Rune: 'x'})

	d, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, d.Spans, 1)
	assert.Equal(t, 2, d.Spans[0].Col)
	assert.Len(t, d.Spans[0].Cells, 2)
}

func TestDiffStraddlingPairsExpandChain(t *testing.T) {
	prev := NewBuffer(8, 1)
	prev.SetWide(1, 0, Cell{Rune: '世'})
	prev.SetWide(3, 0, Cell{Rune: '界'})

	next := NewBuffer(8, 1)
	next.SetWide(2, 0, Cell{Rune: '中'})

	d, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, d.Spans, 1)
	assert.Equal(t, 1, d.Spans[0].Col)
	assert.Equal(t, 5, d.Spans[0].End())
}

func TestDiffGapMerging(t *testing.T) {
	prev := NewBuffer(20, 1)

	tests := []struct {
		name  string
		cols  []int
		gap   int
		spans int
	}{
		{"gap of two merges", []int{0, 3}, 3, 1},
		{"gap of three splits", []int{0, 4}, 3, 2},
		{"adjacent always one", []int{5, 6}, 1, 1},
		{"gap one forces split", []int{5, 7}, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := prev.Clone()
			for _, x := range tt.cols {
				next.Set(x, 0, Cell{Rune: '#'})
			}
			d, err := DiffWithGap(prev, next, tt.gap)
			require.NoError(t, err)
			assert.Len(t, d.Spans, tt.spans)

			out := prev.Clone()
			require.NoError(t, d.Apply(out))
			assert.True(t, out.Equal(next))
		})
	}
}

func TestDiffSpansOrderedAndDisjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	prev := randomBuffer(rng, 40, 12, nil)
	next := randomBuffer(rng, 40, 12, nil)

	d, err := Diff(prev, next)
	require.NoError(t, err)
	for i := 1; i < len(d.Spans); i++ {
		a, b := d.Spans[i-1], d.Spans[i]
		if a.Row == b.Row {
			assert.LessOrEqual(t, a.End(), b.Col, "span %d overlaps %d", i-1, i)
		} else {
			assert.Less(t, a.Row, b.Row)
		}
	}
}

func TestDiffRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	pool := NewGraphemePool()

	for trial := 0; trial < 300; trial++ {
		w := 1 + rng.IntN(60)
		h := 1 + rng.IntN(20)
		prev := randomBuffer(rng, w, h, pool)

		var next *Buffer
		if rng.IntN(2) == 0 {
			next = randomBuffer(rng, w, h, pool)
		} else {
			next = mutateBuffer(rng, prev, pool)
		}
		require.NoError(t, prev.Validate())
		require.NoError(t, next.Validate())

		gap := 1 + rng.IntN(5)
		d, err := DiffWithGap(prev, next, gap)
		require.NoError(t, err)

		out := prev.Clone()
		require.NoError(t, d.Apply(out), "trial %d", trial)
		require.True(t, out.Equal(next), "trial %d: round trip mismatch", trial)
		require.NoError(t, out.Validate(), "trial %d", trial)
	}
}

func TestFullDiffCoversBuffer(t *testing.T) {
	buf := NewBuffer(7, 3)
	NewCanvas(buf, nil).Text(0, 1, "abc", DefaultStyle)

	d := FullDiff(buf)
	assert.Len(t, d.Spans, 3)
	assert.Equal(t, 21, d.CellCount())

	out := NewBuffer(7, 3)
	require.NoError(t, d.Apply(out))
	assert.True(t, out.Equal(buf))
}

func TestApplyRejectsOutOfBoundsSpan(t *testing.T) {
	d := &BufferDiff{Width: 4, Height: 1, Spans: []Span{{Row: 0, Col: 3, Cells: make([]Cell, 2)}}}
	buf := NewBuffer(4, 1)
	require.ErrorIs(t, d.Apply(buf), ErrSpanBounds)
	assert.True(t, buf.Equal(NewBuffer(4, 1)), "buffer must be untouched on rejection")
}

var testPalette = []tcell.Color{
	tcell.ColorDefault,
	tcell.ColorRed,
	tcell.ColorGreen,
	tcell.NewRGBColor(10, 20, 30),
	tcell.NewRGBColor(200, 100, 0),
}

var testClusters = []string{"é", "👍🏽", "🇯🇵"}

func randomCell(rng *rand.Rand, pool *GraphemePool) Cell {
	c := Cell{
		Fg:    testPalette[rng.IntN(len(testPalette))],
		Bg:    testPalette[rng.IntN(len(testPalette))],
		Attrs: Attr(rng.IntN(4)),
	}
	switch rng.IntN(6) {
	case 0:
		// blank
	case 1:
		if pool != nil {
			c.Grapheme = pool.Intern(testClusters[rng.IntN(len(testClusters))], 1)
			break
		}
		fallthrough
	default:
		c.Rune = rune('a' + rng.IntN(4))
	}
	return c
}

func writeRandomCell(rng *rand.Rand, buf *Buffer, x, y int, pool *GraphemePool) {
	if rng.IntN(5) == 0 {
		wide := randomCell(rng, nil)
		wide.Rune = []rune("世界中文")[rng.IntN(4)]
		buf.SetWide(x, y, wide)
		return
	}
	buf.Set(x, y, randomCell(rng, pool))
}

func randomBuffer(rng *rand.Rand, w, h int, pool *GraphemePool) *Buffer {
	buf := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rng.IntN(3) == 0 {
				writeRandomCell(rng, buf, x, y, pool)
			}
		}
	}
	return buf
}

func mutateBuffer(rng *rand.Rand, prev *Buffer, pool *GraphemePool) *Buffer {
	next := prev.Clone()
	n := 1 + rng.IntN(prev.Width()*prev.Height()/4+1)
	for i := 0; i < n; i++ {
		writeRandomCell(rng, next, rng.IntN(prev.Width()), rng.IntN(prev.Height()), pool)
	}
	return next
}
