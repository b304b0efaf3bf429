package terminal

import (
	"bufio"

	"github.com/lixenwraith/framekit/render"
)

// attrCodes maps style bits to SGR parameters, emitted in this order
var attrCodes = [...]struct {
	attr render.Attr
	code int
}{
	{render.AttrBold, 1},
	{render.AttrDim, 2},
	{render.AttrItalic, 3},
	{render.AttrUnderline, 4},
	{render.AttrBlink, 5},
	{render.AttrReverse, 7},
	{render.AttrStrike, 9},
}

// styleState tracks the SGR state last sent so unchanged styles emit nothing
type styleState struct {
	fg    sgrColor
	bg    sgrColor
	attrs render.Attr
	valid bool
}

func (s *styleState) invalidate() { s.valid = false }

// write emits a single combined SGR sequence when style changes
func (s *styleState) write(w *bufio.Writer, st render.Style, tier ColorTier) {
	fg := resolveColor(st.Fg, tier)
	bg := resolveColor(st.Bg, tier)

	fgChanged := !s.valid || fg != s.fg
	bgChanged := !s.valid || bg != s.bg
	attrChanged := !s.valid || st.Attrs != s.attrs

	if !fgChanged && !bgChanged && !attrChanged {
		return
	}

	w.Write(csi)
	if attrChanged {
		// Attributes can only be cleared by a reset, which also drops colors
		w.WriteByte('0')
		for _, a := range attrCodes {
			if st.Attrs&a.attr != 0 {
				w.WriteByte(';')
				writeInt(w, a.code)
			}
		}
		if fg.kind != colorDefault {
			w.WriteByte(';')
			writeColorParams(w, fg, tier, false)
		}
		if bg.kind != colorDefault {
			w.WriteByte(';')
			writeColorParams(w, bg, tier, true)
		}
	} else {
		// Only colors changed, emit minimal sequence
		if fgChanged {
			writeColorParams(w, fg, tier, false)
		}
		if bgChanged {
			if fgChanged {
				w.WriteByte(';')
			}
			writeColorParams(w, bg, tier, true)
		}
	}
	w.WriteByte('m')

	s.fg = fg
	s.bg = bg
	s.attrs = st.Attrs
	s.valid = true
}

// writeColorParams writes color parameters (no CSI prefix, no 'm' suffix)
func writeColorParams(w *bufio.Writer, c sgrColor, tier ColorTier, background bool) {
	switch c.kind {
	case colorDefault:
		if background {
			w.WriteString("49")
		} else {
			w.WriteString("39")
		}

	case colorRGB:
		if background {
			w.Write(sgrBgRGB)
		} else {
			w.Write(sgrFgRGB)
		}
		writeInt(w, int(c.r))
		w.WriteByte(';')
		writeInt(w, int(c.g))
		w.WriteByte(';')
		writeInt(w, int(c.b))

	case colorPalette:
		if tier == Tier16 {
			base := 30
			if c.index >= 8 {
				base = 90 - 8
			}
			if background {
				base += 10
			}
			writeInt(w, base+int(c.index))
			return
		}
		if background {
			w.Write(sgrBg256)
		} else {
			w.Write(sgrFg256)
		}
		writeInt(w, int(c.index))
	}
}
