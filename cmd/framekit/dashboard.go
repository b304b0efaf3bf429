package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/framekit/engine"
	"github.com/lixenwraith/framekit/layout"
	"github.com/lixenwraith/framekit/render"
	"github.com/lixenwraith/framekit/resize"
)

// Dashboard palette
var (
	headerStyle = render.Style{Fg: tcell.PaletteColor(15), Bg: tcell.NewRGBColor(40, 60, 120), Attrs: render.AttrBold}
	statusStyle = render.Style{Fg: tcell.PaletteColor(0), Bg: tcell.NewRGBColor(170, 170, 170)}
	borderStyle = render.Style{Fg: tcell.NewRGBColor(90, 110, 160)}
	titleStyle  = render.Style{Fg: tcell.NewRGBColor(230, 200, 90), Attrs: render.AttrBold}
	textStyle   = render.Style{}
	accentStyle = render.Style{Fg: tcell.NewRGBColor(120, 200, 140)}
	popupStyle  = render.Style{Fg: tcell.PaletteColor(15), Bg: tcell.NewRGBColor(120, 40, 60)}
)

// sparkRunes draw the frame-rate history
var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// dashboard is the demo layout: header, sidebar box with a list, main panel, status bar and a
// popup centered on the main panel while a resize is being coalesced
type dashboard struct {
	eng *layout.Engine

	header  layout.NodeID
	status  layout.NodeID
	body    layout.NodeID
	sidebar layout.NodeID
	list    layout.NodeID
	panel   layout.NodeID
	text    layout.NodeID
	popup   layout.NodeID

	started time.Time
	history []int
	last    engine.Stats
}

// bottomRow pins a node to the last row of its container
var bottomRow = layout.SolverFunc(func(_ layout.Inputs, deps []layout.Rect) layout.Rect {
	if len(deps) == 0 || deps[0].H == 0 {
		return layout.Rect{}
	}
	r := deps[0]
	return r.Sub(0, r.H-1, r.W, 1)
})

// between spans the rows from below deps[1] to above deps[2] inside deps[0]
var between = layout.SolverFunc(func(_ layout.Inputs, deps []layout.Rect) layout.Rect {
	if len(deps) < 3 {
		return layout.Rect{}
	}
	outer, top, bottom := deps[0], deps[1], deps[2]
	y := top.Bottom()
	end := outer.Bottom()
	if !bottom.Empty() {
		end = bottom.Y
	}
	return layout.Rect{X: outer.X, Y: y, W: outer.W, H: max(end-y, 0)}
})

func newDashboard(width, height int, now time.Time) *dashboard {
	e := layout.NewEngine(width, height)
	d := &dashboard{eng: e, started: now}
	root := e.Root()

	d.header = e.MustAddNode(layout.Stack{Axis: layout.Vertical},
		layout.Inputs{Constraint: layout.Constraint{Height: 1}, Content: " framekit"}, root)
	d.status = e.MustAddNode(bottomRow, layout.Inputs{Content: " q quit  r redraw"}, root)
	d.body = e.MustAddNode(between, layout.Inputs{}, root, d.header, d.status)

	split := []float64{1, 3}
	d.sidebar = e.MustAddNode(layout.Split{Axis: layout.Horizontal, Ratios: split, Index: 0},
		layout.Inputs{Constraint: layout.Constraint{MinW: 12}, Content: "layout"}, d.body)
	d.list = e.MustAddNode(layout.Inset{N: 1}, layout.Inputs{}, d.sidebar)
	d.panel = e.MustAddNode(layout.Split{Axis: layout.Horizontal, Ratios: split, Index: 1},
		layout.Inputs{Content: "frames"}, d.body)
	d.text = e.MustAddNode(layout.Inset{N: 1}, layout.Inputs{Constraint: layout.Constraint{Margin: 1}}, d.panel)
	d.popup = e.MustAddNode(layout.Center{}, layout.Inputs{}, d.panel)

	e.SetPainter(d.header, layout.Chain(layout.FillPainter(headerStyle), layout.TextPainter(headerStyle)))
	e.SetPainter(d.status, layout.Chain(layout.FillPainter(statusStyle), layout.TextPainter(statusStyle)))
	e.SetPainter(d.sidebar, layout.BoxPainter(borderStyle, titleStyle))
	e.SetPainter(d.list, layout.TextPainter(textStyle))
	e.SetPainter(d.panel, layout.BoxPainter(borderStyle, titleStyle))
	e.SetPainter(d.text, sparkPainter)
	e.SetPainter(d.popup, layout.Chain(layout.FillPainter(popupStyle), popupText))

	for id, label := range map[layout.NodeID]string{
		d.header: "header", d.status: "status", d.body: "body", d.sidebar: "sidebar",
		d.list: "list", d.panel: "panel", d.text: "text", d.popup: "popup",
	} {
		e.SetLabel(id, label)
	}
	return d
}

// sparkPainter draws the text lines, rendering a line starting with \x00 as a green sparkline
func sparkPainter(c render.Canvas, in layout.Inputs) {
	for y, line := range strings.Split(in.Content, "\n") {
		if y >= c.H {
			return
		}
		st := textStyle
		if rest, ok := strings.CutPrefix(line, "\x00"); ok {
			line, st = rest, accentStyle
		}
		c.Text(0, y, line, st)
	}
}

// popupText centers the first content line in the popup
func popupText(c render.Canvas, in layout.Inputs) {
	line, _, _ := strings.Cut(in.Content, "\n")
	x := max((c.W-len([]rune(line)))/2, 0)
	c.Text(x, c.H/2, line, popupStyle)
}

// refresh updates every content input from the current session state
// Runs on the session goroutine through Session.Update
func (d *dashboard) refresh(now time.Time, s *engine.Session) {
	e := d.eng
	st := s.Stats()
	root := e.RootRect()

	e.SetContent(d.header, fmt.Sprintf(" framekit  %s  up %s", now.Format("15:04:05"),
		now.Sub(d.started).Truncate(time.Second)))

	// Frames per refresh tick feed the sparkline
	d.history = append(d.history, int(st.Frames-d.last.Frames))
	if keep := max(root.W-6, 8); len(d.history) > keep {
		d.history = d.history[len(d.history)-keep:]
	}
	d.last = st

	var b strings.Builder
	fmt.Fprintf(&b, "generation %d\n", st.Generation)
	fmt.Fprintf(&b, "frames %d  skipped %d  aborted %d\n", st.Frames, st.Skipped, st.Aborted)
	fmt.Fprintf(&b, "resize events %d  commits %d\n", st.ResizeEvents, st.ResizeCommits)
	b.WriteString("\n\x00")
	b.WriteString(sparkline(d.history))
	b.WriteString("\n\n宽字符 ✓ café é 👍🏽")
	e.SetContent(d.text, b.String())

	var list strings.Builder
	for _, id := range e.TopoOrder() {
		r, _ := e.Rect(id)
		fmt.Fprintf(&list, "%-8s %s\n", e.Label(id), r)
	}
	e.SetContent(d.list, strings.TrimRight(list.String(), "\n"))

	d.showPending(s.Coalescer())
}

// showPending opens the popup while a resize is buffered and hides it once committed
func (d *dashboard) showPending(c *resize.Coalescer) {
	e := d.eng
	if sz, ok := c.Pending(); ok {
		e.SetInputs(d.popup, layout.Inputs{
			Constraint: layout.Constraint{Width: 28, Height: 3},
			Content:    fmt.Sprintf("resizing to %s (%s)", sz, c.Regime()),
		})
		return
	}
	e.SetInputs(d.popup, layout.Inputs{})
}

func sparkline(values []int) string {
	peak := 1
	for _, v := range values {
		peak = max(peak, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		out[i] = sparkRunes[v*(len(sparkRunes)-1)/peak]
	}
	return string(out)
}
