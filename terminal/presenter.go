package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lixenwraith/framekit/render"
)

// PresenterState is the frame protocol position of a presenter
type PresenterState uint32

const (
	StateIdle       PresenterState = iota // between frames
	StateFrameOpen                        // bracket open written
	StateWriting                          // emitting spans
	StateFrameClose                       // bracket close written, flushing
	StateFailed                           // output failed; no further frames
)

func (s PresenterState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFrameOpen:
		return "frame_open"
	case StateWriting:
		return "writing"
	case StateFrameClose:
		return "frame_close"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PresentStats describes one presented frame
type PresentStats struct {
	Bytes       int // bytes that reached the output writer
	Spans       int
	Cells       int
	Opens       int // frame brackets opened
	Closes      int // frame brackets closed
	Full        bool
	Fallback    bool // cursor hide/show used instead of mode 2026
	Interrupted bool // cancellation stopped span emission
	Skipped     bool // nothing changed, no bytes written
	Duration    time.Duration
}

// Observer receives presenter events, typically a metrics sink
type Observer interface {
	FramePresented(PresentStats)
	FrameAborted()
	SyncFallback()
}

type nopObserver struct{}

func (nopObserver) FramePresented(PresentStats) {}
func (nopObserver) FrameAborted()               {}
func (nopObserver) SyncFallback()               {}

// Option configures a Presenter
type Option func(*Presenter)

// WithLogger sets the logger for capability notices
func WithLogger(l *log.Logger) Option {
	return func(p *Presenter) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers an event sink
func WithObserver(o Observer) Option {
	return func(p *Presenter) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithInline confines output to height rows starting at row top; the screen is never cleared
// SetInline moves the region after a terminal resize
func WithInline(top, height int) Option {
	return func(p *Presenter) {
		p.inline = true
		p.inlineTop = max(top, 0)
		p.inlineHeight = max(height, 1)
	}
}

// WithPool sets the grapheme pool used to resolve cluster cells
func WithPool(pool *render.GraphemePool) Option {
	return func(p *Presenter) { p.pool = pool }
}

// WithMergeGap sets the diff gap merge threshold used by Present
func WithMergeGap(gap int) Option {
	return func(p *Presenter) { p.mergeGap = gap }
}

// Presenter serializes frames to the output channel inside an atomic-update bracket
// It is the only writer of terminal bytes while its channel token is held
type Presenter struct {
	ch       *Channel
	caps     Capabilities
	pool     *render.GraphemePool
	logger   *log.Logger
	observer Observer
	mergeGap int

	inline       bool
	inlineTop    int
	inlineHeight int
	logStrategy  InlineStrategy

	out countingWriter
	w   *bufio.Writer

	busy     atomic.Bool
	state    atomic.Uint32
	needFull atomic.Bool
	failErr  error

	front         *render.Buffer
	fallbackNoted bool

	cursorX      int
	cursorY      int
	cursorValid  bool
	cursorHidden bool // hidden by Enter for the whole session
	style        styleState
}

// NewPresenter creates a presenter writing through ch
func NewPresenter(ch *Channel, caps Capabilities, opts ...Option) *Presenter {
	p := &Presenter{
		ch:       ch,
		caps:     caps,
		logger:   log.New(io.Discard),
		observer: nopObserver{},
		mergeGap: render.DefaultMergeGap,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pool == nil {
		p.pool = render.NewGraphemePool()
	}
	p.out = countingWriter{w: ch.writer()}
	p.w = bufio.NewWriterSize(&p.out, 131072) // 128KB buffer
	p.needFull.Store(true)
	return p
}

// State returns the current protocol state
func (p *Presenter) State() PresenterState { return PresenterState(p.state.Load()) }

func (p *Presenter) setState(s PresenterState) { p.state.Store(uint32(s)) }

// Capabilities returns the capabilities frames are written for
func (p *Presenter) Capabilities() Capabilities { return p.caps }

// Inline reports the inline region, ok false in fullscreen mode
func (p *Presenter) Inline() (top, height int, ok bool) {
	return p.inlineTop, p.inlineHeight, p.inline
}

// Front returns the buffer the terminal is known to show, nil when unknown
func (p *Presenter) Front() *render.Buffer { return p.front }

// Err returns the failure that stopped the presenter, nil while healthy
func (p *Presenter) Err() error {
	if p.State() != StateFailed {
		return nil
	}
	return p.failErr
}

// Invalidate forces a full redraw on the next frame
func (p *Presenter) Invalidate() { p.needFull.Store(true) }

// SetCapabilities replaces the capabilities between frames and schedules a full redraw
func (p *Presenter) SetCapabilities(caps Capabilities) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrOutputBusy
	}
	defer p.busy.Store(false)

	p.caps = caps
	p.style.invalidate()
	p.needFull.Store(true)
	return nil
}

// acquire claims the presenter for one operation; the caller releases busy
func (p *Presenter) acquire(tok *OutputToken) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrOutputBusy
	}
	if p.State() == StateFailed {
		p.busy.Store(false)
		return fmt.Errorf("%w: %w", ErrPresenterFailed, p.failErr)
	}
	if !p.ch.owns(tok) {
		p.busy.Store(false)
		return ErrTokenMismatch
	}
	return nil
}

// Present diffs buf against the retained front buffer and writes the update
// buf is retained as the new front buffer and must not be modified afterwards
func (p *Presenter) Present(ctx context.Context, tok *OutputToken, buf *render.Buffer) (PresentStats, error) {
	if err := p.acquire(tok); err != nil {
		return PresentStats{}, err
	}
	defer p.busy.Store(false)

	full := p.front == nil || !p.front.SameShape(buf) || p.needFull.Load()
	var diff *render.BufferDiff
	if full {
		diff = render.FullDiff(buf)
	} else {
		var err error
		if diff, err = render.DiffWithGap(p.front, buf, p.mergeGap); err != nil {
			return PresentStats{}, err
		}
	}
	return p.present(ctx, diff, buf, full)
}

// PresentDiff writes a precomputed diff that turns the front buffer into buf
// A full redraw replaces the diff when the front buffer is unknown or mismatched
func (p *Presenter) PresentDiff(ctx context.Context, tok *OutputToken, diff *render.BufferDiff, buf *render.Buffer) (PresentStats, error) {
	if err := p.acquire(tok); err != nil {
		return PresentStats{}, err
	}
	defer p.busy.Store(false)

	if diff == nil || buf == nil || diff.Width != buf.Width() || diff.Height != buf.Height() {
		return PresentStats{}, render.ErrDimensionMismatch
	}

	full := p.front == nil || !p.front.SameShape(buf) || p.needFull.Load()
	if full {
		diff = render.FullDiff(buf)
	}
	return p.present(ctx, diff, buf, full)
}

func (p *Presenter) present(ctx context.Context, diff *render.BufferDiff, buf *render.Buffer, full bool) (PresentStats, error) {
	if err := ctx.Err(); err != nil {
		p.observer.FrameAborted()
		return PresentStats{}, fmt.Errorf("%w: %w", ErrFrameAborted, err)
	}

	if !full && diff.IsEmpty() {
		p.front = buf
		stats := PresentStats{Skipped: true}
		p.observer.FramePresented(stats)
		return stats, nil
	}

	start := time.Now()
	stats, err := p.writeFrame(ctx, diff, full)
	stats.Duration = time.Since(start)

	switch {
	case err == nil:
		p.front = buf
		p.needFull.Store(false)
	case stats.Interrupted:
		p.needFull.Store(true)
	}

	if stats.Interrupted || err != nil {
		p.observer.FrameAborted()
	} else {
		p.observer.FramePresented(stats)
	}
	return stats, err
}

// writeFrame emits one bracketed frame; the bracket is closed on every return path including panics
func (p *Presenter) writeFrame(ctx context.Context, diff *render.BufferDiff, full bool) (stats PresentStats, err error) {
	p.out.n = 0
	stats.Full = full

	f := p.beginFrame(&stats)
	defer func() {
		if cerr := f.end(); cerr != nil {
			err = cerr
		}
		stats.Bytes = p.out.n
	}()

	p.setState(StateWriting)
	if full {
		p.writeClear(diff.Height)
	}

	for _, span := range diff.Spans {
		if cerr := ctx.Err(); cerr != nil {
			stats.Interrupted = true
			return stats, fmt.Errorf("%w: %w", ErrFrameInterrupted, cerr)
		}
		if p.writeSpan(span) {
			stats.Spans++
			stats.Cells += len(span.Cells)
		}
	}
	return stats, nil
}

// frame is an open bracket; end must run exactly once
type frame struct {
	p      *Presenter
	stats  *PresentStats
	sync   bool
	reveal bool // the fallback hid a visible cursor and shows it again on close
	closed bool
}

func (p *Presenter) beginFrame(stats *PresentStats) *frame {
	f := &frame{p: p, stats: stats, sync: p.caps.UseSync()}

	if f.sync {
		p.w.Write(csiSyncBegin)
	} else {
		p.noteFallback()
		stats.Fallback = true
		if !p.cursorHidden {
			p.w.Write(csiCursorHide)
			f.reveal = true
		}
	}
	stats.Opens++
	p.setState(StateFrameOpen)
	// Cleared only when the frame completes, so a panic or interruption forces a full redraw
	p.needFull.Store(true)

	if p.inline {
		p.w.Write(escCursorSave)
	}
	return f
}

// end writes the bracket close and flushes; a flush failure closes the bracket directly on the channel
func (f *frame) end() error {
	if f.closed {
		return nil
	}
	f.closed = true
	p := f.p

	w := p.w
	w.Write(csiSGR0)
	p.style.invalidate()
	if p.inline {
		w.Write(escCursorRestore)
		p.cursorValid = false
	}
	closeSeq := f.closeSeq()
	w.Write(closeSeq)
	f.stats.Closes++
	p.setState(StateFrameClose)

	if err := w.Flush(); err != nil {
		// Buffered bytes may be partially lost; the terminal must still leave the bracket
		p.w.Reset(&p.out)
		p.out.Write(closeSeq)
		p.fail(err)
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	p.setState(StateIdle)
	return nil
}

// closeSeq ends the bracket; a fallback frame inside a hidden-cursor session has nothing to close
func (f *frame) closeSeq() []byte {
	switch {
	case f.sync:
		return csiSyncEnd
	case f.reveal:
		return csiCursorShow
	default:
		return nil
	}
}

func (p *Presenter) fail(err error) {
	p.failErr = err
	p.front = nil
	p.cursorValid = false
	p.needFull.Store(true)
	p.setState(StateFailed)
	p.logger.Error("terminal output failed", "err", err)
}

// noteFallback logs the degraded bracket once per presenter
func (p *Presenter) noteFallback() {
	p.observer.SyncFallback()
	if p.fallbackNoted {
		return
	}
	p.fallbackNoted = true
	p.logger.Info("synchronized output unavailable, hiding cursor during frames",
		"term", p.caps.TermName, "mux", p.caps.Mux.String(), "sync", p.caps.SyncOutput)
}

// writeClear blanks the drawing area before a full redraw
func (p *Presenter) writeClear(height int) {
	w := p.w
	w.Write(csiSGR0)
	p.style.invalidate()

	if !p.inline {
		w.Write(csiHome)
		w.Write(csiClear)
		p.cursorX, p.cursorY, p.cursorValid = 0, 0, true
		return
	}

	// Inline region: erase line by line, the rest of the screen belongs to the shell
	for y := 0; y < min(height, p.inlineHeight); y++ {
		writeCursorPos(w, 0, p.inlineTop+y)
		w.Write(csiEL)
	}
	p.cursorValid = false
}

// writeSpan emits one run of cells, returns false when the span lies outside the drawing area
func (p *Presenter) writeSpan(span render.Span) bool {
	if p.inline && span.Row >= p.inlineHeight {
		return false
	}
	y := span.Row
	if p.inline {
		y += p.inlineTop
	}

	x := span.Col
	cells := span.Cells
	i := 0
	// A leading continuation belongs to a lead outside the span; its column is already drawn
	for i < len(cells) && cells[i].IsContinuation() {
		i++
		x++
		p.cursorValid = false
	}
	if i == len(cells) {
		return true
	}

	p.moveTo(x, y)
	w := p.w
	for ; i < len(cells); i++ {
		c := cells[i]
		if c.IsContinuation() {
			continue
		}
		p.style.write(w, c.Style(), p.caps.Tier)
		p.writeContent(c)
	}
	return true
}

// moveTo positions the cursor, using relative forward movement when shorter
func (p *Presenter) moveTo(x, y int) {
	if p.cursorValid && y == p.cursorY {
		if x == p.cursorX {
			return
		}
		if x > p.cursorX && cursorForwardLen(x-p.cursorX) < cursorPosLen(x, y) {
			writeCursorForward(p.w, x-p.cursorX)
			p.cursorX = x
			return
		}
	}
	writeCursorPos(p.w, x, y)
	p.cursorX, p.cursorY, p.cursorValid = x, y, true
}

// writeContent writes the glyph of a non-continuation cell and advances the tracked cursor
func (p *Presenter) writeContent(c render.Cell) {
	w := p.w
	cols := c.Columns()

	switch {
	case c.Grapheme != 0:
		if s, ok := p.pool.Lookup(c.Grapheme); ok {
			w.WriteString(s)
		} else {
			// Unknown cluster: keep the column count so later cells stay aligned
			for range cols {
				w.WriteByte(' ')
			}
		}
	case c.Rune == 0:
		for range cols {
			w.WriteByte(' ')
		}
	case c.Rune < 0x20 || c.Rune == 0x7f:
		// Control characters would move the cursor
		w.WriteByte(' ')
	case c.Rune < 0x80:
		w.WriteByte(byte(c.Rune))
	default:
		w.WriteRune(c.Rune)
	}
	p.cursorX += cols
}

// Enter prepares the terminal for frames: alternate screen in fullscreen mode, a cleared region inline
func (p *Presenter) Enter(tok *OutputToken) error {
	if err := p.acquire(tok); err != nil {
		return err
	}
	defer p.busy.Store(false)

	w := p.w
	w.Write(csiSGR0)
	if p.inline {
		w.Write(csiCursorHide)
		for y := 0; y < p.inlineHeight; y++ {
			writeCursorPos(w, 0, p.inlineTop+y)
			w.Write(csiEL)
		}
	} else {
		w.Write(csiAltScreenEnter)
		w.Write(csiCursorHide)
		// Prevents terminal scroll/wrap on bottom-right corner write
		w.Write(csiAutoWrapOff)
		w.Write(csiHome)
		w.Write(csiClear)
	}
	p.cursorValid = false
	p.cursorHidden = true
	p.style.invalidate()
	p.front = nil
	p.needFull.Store(true)
	return p.flushControl()
}

// Leave restores the terminal state changed by Enter
func (p *Presenter) Leave(tok *OutputToken) error {
	if err := p.acquire(tok); err != nil {
		return err
	}
	defer p.busy.Store(false)

	w := p.w
	w.Write(csiSGR0)
	if p.inline {
		// Park the cursor below the region so the shell continues after it
		writeCursorPos(w, 0, p.inlineTop+p.inlineHeight)
		w.Write(csiCursorShow)
	} else {
		w.Write(csiCursorShow)
		w.Write(csiAltScreenExit)
		// Re-enable Auto-Wrap AFTER exiting alt screen to ensure the main buffer has wrap enabled
		w.Write(csiAutoWrapOn)
	}
	p.cursorValid = false
	p.cursorHidden = false
	p.front = nil
	return p.flushControl()
}

func (p *Presenter) flushControl() error {
	if err := p.w.Flush(); err != nil {
		p.w.Reset(&p.out)
		p.fail(err)
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	return nil
}
