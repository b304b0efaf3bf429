package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lixenwraith/framekit/layout"
	"github.com/lixenwraith/framekit/render"
	"github.com/lixenwraith/framekit/resize"
	"github.com/lixenwraith/framekit/terminal"
)

// ErrSessionRunning is returned when Run is called on a session that is already running
var ErrSessionRunning = errors.New("session already running")

// Observer receives session events, typically a metrics sink
type Observer interface {
	ResizeObserved(regime resize.Regime)
	ResizeCommitted(d resize.Decision)
	LayoutRecomputed(st layout.Stats)
	FrameCompleted(generation uint64, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ResizeObserved(resize.Regime)         {}
func (nopObserver) ResizeCommitted(resize.Decision)      {}
func (nopObserver) LayoutRecomputed(layout.Stats)        {}
func (nopObserver) FrameCompleted(uint64, time.Duration) {}

// Stats counts session activity
type Stats struct {
	Frames        uint64 // frames that reached the presenter successfully
	Skipped       uint64 // frames with an empty diff
	Aborted       uint64 // frames dropped or interrupted by cancellation
	ResizeEvents  uint64 // raw resize notifications received
	ResizeCommits uint64 // sizes applied to the layout
	Generation    uint64
}

// Config tunes the frame loop
type Config struct {
	Resize   resize.Config
	MergeGap int
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		Resize:   resize.DefaultConfig(),
		MergeGap: render.DefaultMergeGap,
	}
}

// Option configures a Session
type Option func(*Session)

// WithClock replaces the wall clock, used by tests
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an event sink
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithPool shares a grapheme pool with the presenter
func WithPool(p *render.GraphemePool) Option {
	return func(s *Session) { s.pool = p }
}

// WithConfig sets coalescing and diff parameters
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithID sets the session identifier used in logs
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithInline treats resizes as terminal sizes and keeps an inline region of up to rows
// lines anchored to the bottom; the presenter must have been created with terminal.WithInline
func WithInline(rows int) Option {
	return func(s *Session) { s.inlineRows = max(rows, 1) }
}

type resizeEvent struct {
	at   time.Time
	size resize.Size
}

// Session funnels resize and content events onto one goroutine that produces frames
// Resize, CommitResize, Invalidate and Update are safe from any goroutine; everything else
// belongs to the goroutine running Run
type Session struct {
	id        string
	cfg       Config
	layout    *layout.Engine
	presenter *terminal.Presenter
	token     *terminal.OutputToken
	pool      *render.GraphemePool
	coalescer *resize.Coalescer
	clock     Clock
	logger    *log.Logger
	observer  Observer

	resizeCh     chan resizeEvent
	commitCh     chan resize.Size
	invalidateCh chan layout.NodeID
	updateCh     chan func(*layout.Engine)

	// Set when the invalidate queue overflowed; drain turns it into InvalidateAll
	invalidateAll atomic.Bool
	wake          chan struct{}

	inlineRows int

	front   *render.Buffer
	gen     uint64
	pending bool
	stats   Stats
	running atomic.Bool
}

// NewSession wires a layout engine to a presenter holding tok
// The coalescer starts from the layout root size
func NewSession(eng *layout.Engine, p *terminal.Presenter, tok *terminal.OutputToken, opts ...Option) *Session {
	s := &Session{
		cfg:          DefaultConfig(),
		layout:       eng,
		presenter:    p,
		token:        tok,
		clock:        SystemClock{},
		logger:       log.New(io.Discard),
		observer:     nopObserver{},
		resizeCh:     make(chan resizeEvent, 64),
		commitCh:     make(chan resize.Size, 1),
		invalidateCh: make(chan layout.NodeID, 256),
		updateCh:     make(chan func(*layout.Engine), 64),
		wake:         make(chan struct{}, 1),
		pending:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = render.NewGraphemePool()
	}
	if s.id != "" {
		s.logger = s.logger.With("session", s.id)
	}

	s.coalescer = resize.NewCoalescer(s.cfg.Resize)
	s.coalescer.SetInitial(s.screen())
	return s
}

// viewport returns the size the layout root is constrained to
func (s *Session) viewport() resize.Size {
	in, _ := s.layout.Inputs(s.layout.Root())
	return resize.Size{Width: in.Constraint.Width, Height: in.Constraint.Height}
}

// screen returns the size resize events are compared against
// Inline, that is the terminal: the region plus the rows above it
func (s *Session) screen() resize.Size {
	vp := s.viewport()
	if s.inlineRows > 0 {
		if top, _, ok := s.presenter.Inline(); ok {
			vp.Height += top
		}
	}
	return vp
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Layout returns the layout engine; only touch it from Update callbacks while Run is active
func (s *Session) Layout() *layout.Engine { return s.layout }

// Coalescer exposes resize tracking for diagnostics; same ownership rule as Layout
func (s *Session) Coalescer() *resize.Coalescer { return s.coalescer }

// Stats returns activity counters; same ownership rule as Layout
func (s *Session) Stats() Stats { return s.stats }

// Resize posts a raw dimension-change notification
// When the queue is full the oldest event is dropped; the newest size always arrives
func (s *Session) Resize(width, height int) {
	ev := resizeEvent{at: s.clock.Now(), size: resize.Size{Width: width, Height: height}}
	for {
		select {
		case s.resizeCh <- ev:
			return
		default:
		}
		select {
		case <-s.resizeCh:
		default:
		}
	}
}

// CommitResize applies a size immediately, bypassing coalescing
func (s *Session) CommitResize(width, height int) {
	sz := resize.Size{Width: width, Height: height}
	select {
	case s.commitCh <- sz:
	default:
		// Drain and replace to ensure latest size is pending
		select {
		case <-s.commitCh:
		default:
		}
		select {
		case s.commitCh <- sz:
		default:
		}
	}
}

// Invalidate marks a layout node and its dependents for recompute on the next frame
// Never blocks; when the queue is full the next frame invalidates every node
func (s *Session) Invalidate(id layout.NodeID) {
	select {
	case s.invalidateCh <- id:
	default:
		s.invalidateAll.Store(true)
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Update runs fn on the session goroutine before the next frame
// Blocks while the update queue is full
func (s *Session) Update(fn func(*layout.Engine)) {
	s.updateCh <- fn
}

// WriteLog prints a line into the rows above the inline region from the session goroutine
// Failures are logged; fullscreen sessions drop the line
func (s *Session) WriteLog(line string) {
	s.Update(func(*layout.Engine) {
		if err := s.presenter.WriteLog(s.token, line); err != nil && !errors.Is(err, terminal.ErrNotInline) {
			s.logger.Warn("log line dropped", "err", err)
		}
	})
}

// Redraw requests a frame with a full repaint of the terminal
func (s *Session) Redraw() {
	s.Update(func(*layout.Engine) { s.presenter.Invalidate() })
}

// Run produces frames until ctx is done or output fails
// Returns nil on cancellation and the presenter error when output becomes unusable
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer s.running.Store(false)

	s.logger.Info("session started", "size", s.viewport().String(), "screen", s.screen().String())

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		s.drain()
		s.tick(s.clock.Now())

		if s.pending {
			if err := s.frame(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		var timerC <-chan time.Time
		if at, ok := s.coalescer.Deadline(); ok {
			wait := max(at.Sub(s.clock.Now()), 0)
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", "frames", s.stats.Frames, "generation", s.gen)
			return nil
		case ev := <-s.resizeCh:
			s.observe(ev)
		case sz := <-s.commitCh:
			s.apply(resize.Decision{Action: resize.ActionCommit, Size: sz})
		case id := <-s.invalidateCh:
			s.layout.Invalidate(id)
			s.pending = true
		case fn := <-s.updateCh:
			fn(s.layout)
			s.pending = true
		case <-s.wake:
		case <-timerC:
		}
	}
}

// drain applies every queued event without blocking, so one frame covers them all
func (s *Session) drain() {
	defer func() {
		if s.invalidateAll.Swap(false) {
			s.layout.InvalidateAll()
			s.pending = true
		}
	}()
	for {
		select {
		case ev := <-s.resizeCh:
			s.observe(ev)
		case sz := <-s.commitCh:
			s.apply(resize.Decision{Action: resize.ActionCommit, Size: sz})
		case id := <-s.invalidateCh:
			s.layout.Invalidate(id)
			s.pending = true
		case fn := <-s.updateCh:
			fn(s.layout)
			s.pending = true
		default:
			return
		}
	}
}

// observe feeds a raw resize to the coalescer
func (s *Session) observe(ev resizeEvent) {
	s.stats.ResizeEvents++
	d := s.coalescer.Observe(ev.at, ev.size)
	s.observer.ResizeObserved(s.coalescer.Regime())
	if d.Commit() {
		s.apply(d)
	}
}

// tick commits a pending size whose quiescence window or deadline has passed
func (s *Session) tick(now time.Time) {
	if d := s.coalescer.Tick(now); d.Commit() {
		s.apply(d)
	}
}

// apply resizes the layout root to a committed size
func (s *Session) apply(d resize.Decision) {
	if d.Reason == resize.ReasonNone {
		// Explicit commit supersedes anything buffered
		s.coalescer.Supersede(d.Size)
	}
	s.stats.ResizeCommits++
	s.observer.ResizeCommitted(d)
	s.logger.Debug("resize committed", "size", d.Size.String(), "reason", d.Reason.String(),
		"regime", d.Regime.String(), "coalesced", d.Coalesced)

	w, h := d.Size.Width, d.Size.Height
	if s.inlineRows > 0 {
		h = s.anchorInline(d.Size)
	}
	if s.layout.SetViewport(w, h) {
		s.pending = true
	}
}

// anchorInline moves the inline region to the bottom of a terminal of the given size
// and returns the region height
func (s *Session) anchorInline(term resize.Size) int {
	rows := max(min(s.inlineRows, term.Height), 1)
	top := max(term.Height-rows, 0)
	if curTop, curRows, _ := s.presenter.Inline(); curTop == top && curRows == rows {
		return rows
	}
	if err := s.presenter.SetInline(top, rows); err != nil {
		s.logger.Warn("inline region not moved", "top", top, "rows", rows, "err", err)
		return rows
	}
	s.logger.Debug("inline region anchored", "top", top, "rows", rows)
	s.pending = true
	return rows
}

// frame runs layout, diff and present once
func (s *Session) frame(ctx context.Context) error {
	start := s.clock.Now()

	lst := s.layout.Recompute()
	s.observer.LayoutRecomputed(lst)

	buf := s.layout.Render(s.pool)
	s.gen++
	buf.SetGeneration(s.gen)
	s.stats.Generation = s.gen

	diff, err := s.diff(buf)
	if err != nil {
		return err
	}

	st, err := s.presenter.PresentDiff(ctx, s.token, diff, buf)
	switch {
	case err == nil:
		s.front = buf
		s.pending = false
		if st.Skipped {
			s.stats.Skipped++
		} else {
			s.stats.Frames++
		}
		elapsed := s.clock.Now().Sub(start)
		s.observer.FrameCompleted(s.gen, elapsed)
		return nil

	case errors.Is(err, terminal.ErrFrameAborted), errors.Is(err, terminal.ErrFrameInterrupted):
		s.stats.Aborted++
		s.logger.Debug("frame dropped", "generation", s.gen, "err", err)
		return err

	default:
		s.logger.Error("frame failed", "generation", s.gen, "err", err)
		return fmt.Errorf("present generation %d: %w", s.gen, err)
	}
}

// diff compares against the last presented frame; a shape change or unknown front is a full redraw
func (s *Session) diff(buf *render.Buffer) (*render.BufferDiff, error) {
	if s.front == nil || !s.front.SameShape(buf) {
		return render.FullDiff(buf), nil
	}
	return render.DiffWithGap(s.front, buf, s.cfg.MergeGap)
}

// Step drains queued events and produces a frame if anything changed, without blocking
// For callers that drive the session from their own loop instead of Run
func (s *Session) Step(ctx context.Context) (bool, error) {
	if s.running.Load() {
		return false, ErrSessionRunning
	}
	s.drain()
	s.tick(s.clock.Now())
	if !s.pending {
		return false, nil
	}
	return true, s.frame(ctx)
}
