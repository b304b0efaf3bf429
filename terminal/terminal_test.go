package terminal

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory terminal: writes are recorded, reads come from replies
type fakeBackend struct {
	mu      sync.Mutex
	out     bytes.Buffer
	replies chan []byte
	resize  func(width, height int)
	inits   int
	finis   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{replies: make(chan []byte, 8)}
}

func (f *fakeBackend) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return nil
}

func (f *fakeBackend) Fini() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finis++
}

func (f *fakeBackend) Size() (int, int) { return 80, 24 }

func (f *fakeBackend) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Write(p)
}

func (f *fakeBackend) Read(stopCh <-chan struct{}) ([]byte, error) {
	select {
	case d := <-f.replies:
		return d, nil
	case <-stopCh:
		return nil, nil
	}
}

func (f *fakeBackend) SetResizeHandler(handler func(width, height int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resize = handler
}

func (f *fakeBackend) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.String()
}

func TestResizeChanKeepsLatest(t *testing.T) {
	fb := newFakeBackend()
	term := NewWithBackend(fb)
	require.NoError(t, term.Init())
	require.NoError(t, term.Init(), "second init is a no-op")
	assert.Equal(t, 1, fb.inits)

	fb.resize(90, 30)
	fb.resize(100, 31)
	fb.resize(120, 40)

	select {
	case ev := <-term.ResizeChan():
		assert.Equal(t, ResizeEvent{Width: 120, Height: 40}, ev)
	default:
		t.Fatal("no resize pending")
	}
	select {
	case ev := <-term.ResizeChan():
		t.Fatalf("stale resize delivered: %+v", ev)
	default:
	}

	term.Fini()
	term.Fini()
	assert.Equal(t, 1, fb.finis)
}

func TestWatchResizeForwardsUntilCancelled(t *testing.T) {
	fb := newFakeBackend()
	term := NewWithBackend(fb)
	require.NoError(t, term.Init())

	got := make(chan ResizeEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		WatchResize(ctx, term, func(w, h int) { got <- ResizeEvent{w, h} })
	}()

	fb.resize(70, 20)
	select {
	case ev := <-got:
		assert.Equal(t, ResizeEvent{70, 20}, ev)
	case <-time.After(time.Second):
		t.Fatal("resize not forwarded")
	}

	cancel()
	<-done
}

func TestQueryModeParsesReply(t *testing.T) {
	fb := newFakeBackend()
	term := NewWithBackend(fb)

	// Reply split across reads with unrelated input in front
	fb.replies <- []byte("q\x1b[?20")
	fb.replies <- []byte("26;2$y")

	status, ok := QueryMode(term, SyncOutputMode, time.Second)
	require.True(t, ok)
	assert.Equal(t, ModeReset, status)
	assert.True(t, status.Recognized())
	assert.Equal(t, "\x1b[?2026$p", fb.written())
}

func TestQueryModeTimeout(t *testing.T) {
	fb := newFakeBackend()
	term := NewWithBackend(fb)

	start := time.Now()
	_, ok := QueryMode(term, SyncOutputMode, 20*time.Millisecond)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)

	probed := Capabilities{SyncOutput: true, TermName: "xterm"}
	assert.Equal(t, probed, ProbeSyncOutput(term, probed, 10*time.Millisecond), "silence keeps the env guess")

	fb.replies <- []byte("\x1b[?2026;0$y")
	assert.False(t, ProbeSyncOutput(term, probed, time.Second).SyncOutput)
}

func TestInputServiceDeliversChunks(t *testing.T) {
	fb := newFakeBackend()
	svc := NewInputService(NewWithBackend(fb))
	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())

	fb.replies <- []byte("q")
	select {
	case data := <-svc.Input():
		assert.Equal(t, []byte("q"), data)
	case <-time.After(time.Second):
		t.Fatal("input not delivered")
	}

	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
	_, open := <-svc.Input()
	assert.False(t, open, "input channel closed after stop")
	assert.Equal(t, 1, fb.finis)
}

func TestEmergencyResetClosesBracket(t *testing.T) {
	var out bytes.Buffer
	EmergencyReset(&out)
	s := out.String()
	assert.Contains(t, s, "\x1b[?2026l")
	assert.Contains(t, s, "\x1b[?25h")
	assert.Contains(t, s, "\x1b[?1049l")
	assert.Contains(t, s, "\x1b[?7h")
}
