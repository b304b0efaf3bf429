package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/framekit/layout"
	"github.com/lixenwraith/framekit/render"
	"github.com/lixenwraith/framekit/resize"
	"github.com/lixenwraith/framekit/terminal"
)

var testCaps = terminal.Capabilities{SyncOutput: true, Tier: terminal.TierTrueColor, TermName: "xterm-kitty"}

// lockedBuffer is a goroutine-safe output sink that can be told to fail
type lockedBuffer struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	fail bool
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return 0, errors.New("broken pipe")
	}
	return b.buf.Write(p)
}

func (b *lockedBuffer) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

func (b *lockedBuffer) setFail(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = on
}

type recordingObserver struct {
	mu      sync.Mutex
	commits []resize.Decision
	frames  []uint64
	layouts int
	layout  layout.Stats
	events  int
	frameCh chan uint64
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{frameCh: make(chan uint64, 64)}
}

func (o *recordingObserver) ResizeObserved(resize.Regime) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events++
}

func (o *recordingObserver) ResizeCommitted(d resize.Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commits = append(o.commits, d)
}

func (o *recordingObserver) LayoutRecomputed(st layout.Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.layouts++
	o.layout = st
}

func (o *recordingObserver) FrameCompleted(gen uint64, _ time.Duration) {
	o.mu.Lock()
	o.frames = append(o.frames, gen)
	o.mu.Unlock()
	select {
	case o.frameCh <- gen:
	default:
	}
}

type fixture struct {
	session *Session
	out     *lockedBuffer
	clock   *ManualClock
	obs     *recordingObserver
	text    layout.NodeID
}

// newFixture builds a 20x4 layout with one text node filling the root
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	eng := layout.NewEngine(20, 4)
	text := eng.MustAddNode(layout.Fill{}, layout.Inputs{Content: "hello"}, eng.Root())
	eng.SetPainter(text, layout.TextPainter(render.Style{}))

	out := &lockedBuffer{}
	ch := terminal.NewChannel(out)
	tok, err := ch.Acquire()
	require.NoError(t, err)

	pool := render.NewGraphemePool()
	p := terminal.NewPresenter(ch, testCaps, terminal.WithPool(pool))

	clock := NewManualClock(time.Unix(1_700_000_000, 0))
	obs := newRecordingObserver()
	opts = append([]Option{WithClock(clock), WithObserver(obs), WithPool(pool), WithID("test")}, opts...)
	return &fixture{
		session: NewSession(eng, p, tok, opts...),
		out:     out,
		clock:   clock,
		obs:     obs,
		text:    text,
	}
}

func TestStepInitialFrameThenIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	drew, err := f.session.Step(ctx)
	require.NoError(t, err)
	assert.True(t, drew)
	first := f.out.take()
	assert.Contains(t, first, "hello")
	assert.True(t, strings.HasPrefix(first, "\x1b[?2026h"))
	assert.True(t, strings.HasSuffix(first, "\x1b[?2026l"))

	drew, err = f.session.Step(ctx)
	require.NoError(t, err)
	assert.False(t, drew, "nothing changed")
	assert.Empty(t, f.out.take())

	st := f.session.Stats()
	assert.Equal(t, uint64(1), st.Frames)
	assert.Equal(t, uint64(1), st.Generation)
}

func TestUpdateProducesIncrementalFrame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Step(ctx)
	require.NoError(t, err)
	f.out.take()

	f.session.Update(func(e *layout.Engine) { e.SetContent(f.text, "help") })
	drew, err := f.session.Step(ctx)
	require.NoError(t, err)
	require.True(t, drew)

	// Only the changed suffix is rewritten
	assert.Equal(t, "\x1b[?2026h\x1b[1;4H\x1b[0mp \x1b[0m\x1b[?2026l", f.out.take())
	assert.Equal(t, []uint64{1, 2}, f.obs.frames)
}

func TestUnchangedContentSkipsFrame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Step(ctx)
	require.NoError(t, err)
	f.out.take()

	// Invalidation without a visible change renders an identical buffer
	f.session.Invalidate(f.text)
	drew, err := f.session.Step(ctx)
	require.NoError(t, err)
	assert.True(t, drew)
	assert.Empty(t, f.out.take())
	assert.Equal(t, uint64(1), f.session.Stats().Skipped)
	assert.Equal(t, uint64(2), f.session.Stats().Generation)
}

func TestResizeCoalescedUntilQuiet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Step(ctx)
	require.NoError(t, err)
	f.out.take()

	for i := 0; i < 5; i++ {
		f.session.Resize(21+i, 5)
		f.clock.Advance(5 * time.Millisecond)
	}

	drew, err := f.session.Step(ctx)
	require.NoError(t, err)
	assert.False(t, drew, "still within quiescence window")
	assert.Empty(t, f.obs.commits)

	f.clock.Advance(300 * time.Millisecond)
	drew, err = f.session.Step(ctx)
	require.NoError(t, err)
	require.True(t, drew)

	require.Len(t, f.obs.commits, 1)
	d := f.obs.commits[0]
	assert.Equal(t, resize.Size{Width: 25, Height: 5}, d.Size)
	assert.Equal(t, 5, d.Coalesced)
	assert.Equal(t, layout.Rect{W: 25, H: 5}, f.session.Layout().RootRect())

	// Shape change forces a cleared full redraw
	out := f.out.take()
	assert.Contains(t, out, "\x1b[2J")
	assert.Contains(t, out, "hello")

	st := f.session.Stats()
	assert.Equal(t, uint64(5), st.ResizeEvents)
	assert.Equal(t, uint64(1), st.ResizeCommits)
}

func TestResizeToSameSizeIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Step(ctx)
	require.NoError(t, err)

	f.session.Resize(20, 4)
	f.clock.Advance(time.Second)
	drew, err := f.session.Step(ctx)
	require.NoError(t, err)
	assert.False(t, drew)
	assert.Empty(t, f.obs.commits)
}

func TestCommitResizeBypassesCoalescing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Step(ctx)
	require.NoError(t, err)

	f.session.Resize(30, 10)
	drew, err := f.session.Step(ctx)
	require.NoError(t, err)
	assert.False(t, drew)

	f.session.CommitResize(40, 12)
	drew, err = f.session.Step(ctx)
	require.NoError(t, err)
	require.True(t, drew)
	assert.Equal(t, layout.Rect{W: 40, H: 12}, f.session.Layout().RootRect())

	// The buffered raw size was superseded
	f.clock.Advance(time.Second)
	drew, err = f.session.Step(ctx)
	require.NoError(t, err)
	assert.False(t, drew)
	assert.Equal(t, layout.Rect{W: 40, H: 12}, f.session.Layout().RootRect())
}

func TestCancelledFrameRetriesWithNewGeneration(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	drew, err := f.session.Step(ctx)
	assert.True(t, drew)
	require.ErrorIs(t, err, terminal.ErrFrameAborted)
	assert.Empty(t, f.out.take())
	assert.Equal(t, uint64(1), f.session.Stats().Aborted)

	drew, err = f.session.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, drew, "aborted frame stays pending")
	assert.Contains(t, f.out.take(), "hello")
	assert.Equal(t, []uint64{2}, f.obs.frames, "generations never repeat")
}

func TestRunDrawsAndStops(t *testing.T) {
	f := newFixture(t, WithClock(SystemClock{}))
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- f.session.Run(ctx) }()

	waitFrame := func() uint64 {
		t.Helper()
		select {
		case gen := <-f.obs.frameCh:
			return gen
		case <-time.After(2 * time.Second):
			t.Fatal("no frame")
			return 0
		}
	}

	assert.Equal(t, uint64(1), waitFrame())
	assert.ErrorIs(t, f.session.Run(ctx), ErrSessionRunning)

	f.session.Update(func(e *layout.Engine) { e.SetContent(f.text, "world") })
	assert.Equal(t, uint64(2), waitFrame())

	// Real clock: the coalescer timer commits without further events
	f.session.Resize(30, 6)
	assert.Equal(t, uint64(3), waitFrame())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Contains(t, f.out.take(), "world")
}

func TestRunStopsOnOutputFailure(t *testing.T) {
	f := newFixture(t)
	f.out.setFail(true)

	err := f.session.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, terminal.ErrOutputWrite)
	assert.Zero(t, f.session.Stats().Frames)
}

func TestResizeQueueKeepsNewest(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 200; i++ {
		f.session.Resize(30+i, 8)
	}
	f.clock.Advance(time.Second)
	_, err := f.session.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, layout.Rect{W: 229, H: 8}, f.session.Layout().RootRect())
	assert.LessOrEqual(t, f.session.Stats().ResizeEvents, uint64(64))
}

func TestInvalidateNeverBlocksWhenQueuesAreFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Step(ctx)
	require.NoError(t, err)

	// The callback overflows the invalidate queue while the update queue is full
	f.session.Update(func(*layout.Engine) {
		for i := 0; i < 300; i++ {
			f.session.Invalidate(f.text)
		}
	})
	for i := 0; i < 63; i++ {
		f.session.Update(func(*layout.Engine) {})
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Step(ctx)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("step blocked on a full queue")
	}

	// Overflow falls back to invalidating every node
	for len(f.session.invalidateCh) > 0 || len(f.session.updateCh) > 0 {
		_, err := f.session.Step(ctx)
		require.NoError(t, err)
	}
	assert.False(t, f.session.invalidateAll.Load())
	assert.Equal(t, f.session.Layout().Len(), f.obs.layout.Visited)
}

func TestCommitResizeKeepsDetectorHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Step(ctx)
	require.NoError(t, err)

	f.session.Resize(30, 10)
	f.clock.Advance(4 * time.Millisecond)
	f.session.Resize(31, 10)
	_, err = f.session.Step(ctx)
	require.NoError(t, err)

	c := f.session.Coalescer()
	require.Equal(t, resize.RegimeBurst, c.Regime())
	observed := c.Detector().Count()
	require.NotZero(t, observed)

	f.session.CommitResize(40, 12)
	_, err = f.session.Step(ctx)
	require.NoError(t, err)

	assert.Equal(t, observed, c.Detector().Count())
	assert.Equal(t, resize.RegimeBurst, c.Regime())
	_, pending := c.Pending()
	assert.False(t, pending)
	committed, _ := c.Committed()
	assert.Equal(t, resize.Size{Width: 40, Height: 12}, committed)
}

func TestInlineRegionFollowsTerminalHeight(t *testing.T) {
	eng := layout.NewEngine(20, 4)
	text := eng.MustAddNode(layout.Fill{}, layout.Inputs{Content: "inline"}, eng.Root())
	eng.SetPainter(text, layout.TextPainter(render.Style{}))

	out := &lockedBuffer{}
	ch := terminal.NewChannel(out)
	tok, err := ch.Acquire()
	require.NoError(t, err)

	// 20x10 terminal, region on the bottom four rows
	p := terminal.NewPresenter(ch, testCaps, terminal.WithInline(6, 4))
	clock := NewManualClock(time.Unix(1_700_000_000, 0))
	s := NewSession(eng, p, tok, WithClock(clock), WithInline(4))
	ctx := context.Background()

	_, err = s.Step(ctx)
	require.NoError(t, err)
	assert.Contains(t, out.take(), "\x1b[7;1H")

	// Same terminal size as at startup
	s.Resize(20, 10)
	clock.Advance(time.Second)
	drew, err := s.Step(ctx)
	require.NoError(t, err)
	assert.False(t, drew)

	// Shrink to six rows: the region moves to row 2 and keeps its height
	s.Resize(20, 6)
	clock.Advance(time.Second)
	drew, err = s.Step(ctx)
	require.NoError(t, err)
	require.True(t, drew)

	top, rows, _ := p.Inline()
	assert.Equal(t, 2, top)
	assert.Equal(t, 4, rows)
	assert.Equal(t, layout.Rect{W: 20, H: 4}, s.Layout().RootRect())
	frame := out.take()
	assert.Contains(t, frame, "\x1b[3;1H")
	assert.Contains(t, frame, "inline")
	assert.NotContains(t, frame, "\x1b[7;")
	assert.NotContains(t, frame, "\x1b[2J")

	// Shorter than the region: it fills the terminal
	s.Resize(20, 3)
	clock.Advance(time.Second)
	_, err = s.Step(ctx)
	require.NoError(t, err)
	top, rows, _ = p.Inline()
	assert.Equal(t, 0, top)
	assert.Equal(t, 3, rows)
	assert.Equal(t, layout.Rect{W: 20, H: 3}, s.Layout().RootRect())
	assert.Contains(t, out.take(), "\x1b[1;1H")
}
