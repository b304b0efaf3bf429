package terminal

import (
	"bufio"
	"strconv"
)

// Escape sequences written by the presenter
var (
	// CSI sequences
	csi      = []byte("\x1b[")
	csiSGR0  = []byte("\x1b[0m")
	csiClear = []byte("\x1b[2J")
	csiHome  = []byte("\x1b[H")
	csiEL    = []byte("\x1b[2K") // erase entire line, cursor unchanged

	// DECSTBM without parameters restores full-screen scroll margins
	csiScrollRegionReset = []byte("\x1b[r")

	// Synchronized output (DEC private mode 2026)
	// Terminal buffers everything between begin and end and paints it as one frame
	csiSyncBegin = []byte("\x1b[?2026h")
	csiSyncEnd   = []byte("\x1b[?2026l")

	// Cursor control
	csiCursorHide    = []byte("\x1b[?25l")
	csiCursorShow    = []byte("\x1b[?25h")
	csiCursorPos     = []byte("\x1b[") // followed by row;colH
	csiCursorForward = []byte("\x1b[C")
	escCursorSave    = []byte("\x1b7") // DECSC
	escCursorRestore = []byte("\x1b8") // DECRC

	// Screen modes
	csiAltScreenEnter = []byte("\x1b[?1049h")
	csiAltScreenExit  = []byte("\x1b[?1049l")
	// DECAWM: Auto-Wrap Mode
	// ?7l disables wrapping (cursor sticks at right edge), preventing scroll when writing to bottom-right corner
	csiAutoWrapOn  = []byte("\x1b[?7h")
	csiAutoWrapOff = []byte("\x1b[?7l")

	// Color prefixes
	sgrFg256 = []byte("38;5;")
	sgrBg256 = []byte("48;5;")
	sgrFgRGB = []byte("38;2;")
	sgrBgRGB = []byte("48;2;")
)

// writeInt writes a non-negative decimal without allocating
func writeInt(w *bufio.Writer, n int) {
	if n < 0 {
		n = 0
	}
	var buf [20]byte
	w.Write(strconv.AppendInt(buf[:0], int64(n), 10))
}

// writeCursorPos writes cursor positioning sequence (0-indexed input)
func writeCursorPos(w *bufio.Writer, x, y int) {
	w.Write(csiCursorPos)
	writeInt(w, y+1)
	w.WriteByte(';')
	writeInt(w, x+1)
	w.WriteByte('H')
}

// writeCursorForward writes cursor forward N positions
func writeCursorForward(w *bufio.Writer, n int) {
	if n <= 0 {
		return
	}
	if n == 1 {
		w.Write(csiCursorForward)
		return
	}
	w.Write(csi)
	writeInt(w, n)
	w.WriteByte('C')
}

// cursorPosLen returns the byte length of the CUP sequence for (x, y)
func cursorPosLen(x, y int) int {
	return 4 + digits(y+1) + digits(x+1)
}

// cursorForwardLen returns the byte length of the CUF sequence for n columns
func cursorForwardLen(n int) int {
	if n == 1 {
		return 3
	}
	return 3 + digits(n)
}

func digits(n int) int {
	d := 1
	for n >= 10 {
		n /= 10
		d++
	}
	return d
}
