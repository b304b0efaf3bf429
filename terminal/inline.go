package terminal

import (
	"bufio"
	"errors"
	"unicode"

	"github.com/rivo/uniseg"
)

// ErrNotInline is returned by inline-only operations on a fullscreen presenter
var ErrNotInline = errors.New("presenter is not in inline mode")

// InlineStrategy selects how log lines reach the rows above an inline region
type InlineStrategy uint8

const (
	InlineAuto         InlineStrategy = iota // scroll region unless inside a multiplexer
	InlineScrollRegion                       // DECSTBM limits scrolling to the log rows
	InlineOverlay                            // overwrite the row just above the region
)

func (s InlineStrategy) String() string {
	switch s {
	case InlineScrollRegion:
		return "scroll_region"
	case InlineOverlay:
		return "overlay"
	default:
		return "auto"
	}
}

// SelectInlineStrategy picks the log strategy for caps
// Multiplexers do not reliably honor scroll margins
func SelectInlineStrategy(caps Capabilities) InlineStrategy {
	if caps.InMux() {
		return InlineOverlay
	}
	return InlineScrollRegion
}

// WithInlineStrategy fixes the log strategy instead of deriving it from capabilities
func WithInlineStrategy(s InlineStrategy) Option {
	return func(p *Presenter) { p.logStrategy = s }
}

// SetInline moves or resizes the inline region between frames and schedules a full redraw
// Callers derive top from the current terminal height so the shell rows above stay untouched
func (p *Presenter) SetInline(top, height int) error {
	if !p.inline {
		return ErrNotInline
	}
	if !p.busy.CompareAndSwap(false, true) {
		return ErrOutputBusy
	}
	defer p.busy.Store(false)

	p.inlineTop = max(top, 0)
	p.inlineHeight = max(height, 1)
	p.cursorValid = false
	p.needFull.Store(true)
	return nil
}

// InlineStrategy returns the log strategy in effect
func (p *Presenter) InlineStrategy() InlineStrategy {
	if p.logStrategy != InlineAuto {
		return p.logStrategy
	}
	return SelectInlineStrategy(p.caps)
}

// WriteLog writes one line into the terminal rows above the inline region
// Control sequences are stripped and the line is cut at the frame width; with no room above
// the region the line is dropped
func (p *Presenter) WriteLog(tok *OutputToken, line string) error {
	if !p.inline {
		return ErrNotInline
	}
	if err := p.acquire(tok); err != nil {
		return err
	}
	defer p.busy.Store(false)

	if p.inlineTop == 0 {
		return nil
	}
	width := 0
	if p.front != nil {
		width = p.front.Width()
	}
	text := sanitizeLogLine(line, width)

	w := p.w
	w.Write(escCursorSave)
	w.Write(csiSGR0)
	strategy := p.InlineStrategy()
	if p.inlineTop < 2 {
		// DECSTBM needs at least two rows
		strategy = InlineOverlay
	}
	switch strategy {
	case InlineScrollRegion:
		writeScrollRegion(w, 0, p.inlineTop-1)
		writeCursorPos(w, 0, p.inlineTop-1)
		// At the bottom margin a line feed scrolls only the log rows
		w.WriteByte('\n')
		w.WriteByte('\r')
		w.WriteString(text)
		w.Write(csiScrollRegionReset)
	default:
		writeCursorPos(w, 0, p.inlineTop-1)
		w.Write(csiEL)
		w.WriteString(text)
	}
	w.Write(csiSGR0)
	w.Write(escCursorRestore)

	p.style.invalidate()
	p.cursorValid = false
	return p.flushControl()
}

// writeScrollRegion sets DECSTBM margins for rows top..bottom (0-indexed, inclusive)
func writeScrollRegion(w *bufio.Writer, top, bottom int) {
	w.Write(csi)
	writeInt(w, top+1)
	w.WriteByte(';')
	writeInt(w, bottom+1)
	w.WriteByte('r')
}

// sanitizeLogLine keeps the first line of s without escape sequences or control characters,
// cut to maxCols columns when maxCols is positive
func sanitizeLogLine(s string, maxCols int) string {
	out := make([]byte, 0, len(s))
	cols := 0
	state := -1
	for len(s) > 0 {
		switch s[0] {
		case '\n', '\r':
			return string(out)
		case 0x1b:
			s = s[skipEscape(s):]
			continue
		}

		var cluster string
		var width int
		cluster, s, width, state = uniseg.FirstGraphemeClusterInString(s, state)
		r := []rune(cluster)[0]
		if unicode.IsControl(r) {
			continue
		}
		if maxCols > 0 && cols+width > maxCols {
			break
		}
		out = append(out, cluster...)
		cols += width
	}
	return string(out)
}

// skipEscape returns the length of the escape sequence at the start of s
func skipEscape(s string) int {
	if len(s) < 2 {
		return len(s)
	}
	switch s[1] {
	case '[':
		// CSI: parameters and intermediates up to a final byte in 0x40..0x7e
		for i := 2; i < len(s); i++ {
			if s[i] >= 0x40 && s[i] <= 0x7e {
				return i + 1
			}
		}
		return len(s)
	case ']', 'P', '^', '_':
		// String sequences end at BEL or ST
		for i := 2; i < len(s); i++ {
			if s[i] == 0x07 {
				return i + 1
			}
			if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '\\' {
				return i + 2
			}
		}
		return len(s)
	default:
		return 2
	}
}
