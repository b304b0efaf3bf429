package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// Terminal provides low-level terminal access
// Screen content is owned by a Presenter writing to Output through a Channel
type Terminal interface {
	// Init enters raw mode and starts resize notification
	Init() error

	// Fini restores terminal state. Safe to call multiple times
	Fini()

	// Size returns current terminal dimensions
	Size() (width, height int)

	// ResizeChan returns channel that receives resize events; only the latest pending size is kept
	ResizeChan() <-chan ResizeEvent

	// Output returns the raw output writer
	Output() io.Writer

	// Read blocks until input bytes arrive or stopCh closes
	Read(stopCh <-chan struct{}) ([]byte, error)
}

// ResizeEvent represents a terminal resize
type ResizeEvent struct {
	Width  int
	Height int
}

// termImpl implements Terminal using the Backend interface
type termImpl struct {
	backend  Backend
	resizeCh chan ResizeEvent

	mu          sync.Mutex
	initialized bool
	finalized   bool
}

// New creates a Terminal on the process's controlling terminal
func New() Terminal {
	return NewWithBackend(newBackend())
}

// NewWithBackend creates a Terminal over an explicit backend
func NewWithBackend(b Backend) Terminal {
	return &termImpl{
		backend:  b,
		resizeCh: make(chan ResizeEvent, 1),
	}
}

// Init enters raw mode and sets up resize notification
func (t *termImpl) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return nil
	}

	if err := t.backend.Init(); err != nil {
		return fmt.Errorf("terminal init: %w", err)
	}

	t.backend.SetResizeHandler(t.postResize)
	t.initialized = true
	return nil
}

// postResize keeps only the newest size pending
func (t *termImpl) postResize(w, h int) {
	ev := ResizeEvent{Width: w, Height: h}
	// Non-blocking send to avoid backend blocking
	select {
	case t.resizeCh <- ev:
	default:
		// Drain and replace to ensure latest size is pending
		select {
		case <-t.resizeCh:
		default:
		}
		select {
		case t.resizeCh <- ev:
		default:
		}
	}
}

// Fini restores terminal state
func (t *termImpl) Fini() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized || t.finalized {
		return
	}
	t.backend.Fini()
	t.finalized = true
}

// Size returns current terminal dimensions
func (t *termImpl) Size() (int, int) {
	return t.backend.Size()
}

// ResizeChan returns the resize event channel
func (t *termImpl) ResizeChan() <-chan ResizeEvent {
	return t.resizeCh
}

// Output returns the backend as a writer
func (t *termImpl) Output() io.Writer {
	return t.backend
}

// Read reads raw input bytes
func (t *termImpl) Read(stopCh <-chan struct{}) ([]byte, error) {
	return t.backend.Read(stopCh)
}

// WatchResize forwards resize events to fn until ctx is done
func WatchResize(ctx context.Context, t Terminal, fn func(width, height int)) {
	ch := t.ResizeChan()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			fn(ev.Width, ev.Height)
		}
	}
}

// QueryMode asks the terminal for the state of a DEC private mode
// ok is false when no report arrived before the timeout; input read meanwhile is discarded
func QueryMode(t Terminal, mode int, timeout time.Duration) (ModeStatus, bool) {
	if _, err := t.Output().Write(ModeQuery(mode)); err != nil {
		return ModeNotRecognized, false
	}

	stopCh := make(chan struct{})
	timer := time.AfterFunc(timeout, func() { close(stopCh) })
	defer timer.Stop()

	var acc []byte
	for {
		data, err := t.Read(stopCh)
		if err != nil || data == nil {
			return ModeNotRecognized, false
		}
		acc = append(acc, data...)
		if m, status, ok := ParseModeReport(acc); ok && m == mode {
			return status, true
		}
		if len(acc) > 4096 {
			return ModeNotRecognized, false
		}
	}
}

// ProbeSyncOutput refines caps with a live mode 2026 query; caps are unchanged without a reply
func ProbeSyncOutput(t Terminal, caps Capabilities, timeout time.Duration) Capabilities {
	status, ok := QueryMode(t, SyncOutputMode, timeout)
	if !ok {
		return caps
	}
	caps.SyncOutput = status.Recognized()
	return caps
}

// EmergencyReset attempts to restore terminal to sane state
// Call this from panic recovery if Fini() cannot be called normally
func EmergencyReset(w io.Writer) {
	// Leave any open synchronized update first so the terminal repaints
	w.Write(csiSyncEnd)
	w.Write(csiSGR0)
	w.Write(csiCursorShow)
	w.Write(csiAltScreenExit)
	w.Write(csiAutoWrapOn)

	// Flush if it's a file
	if f, ok := w.(*os.File); ok {
		f.Sync()
	}

	// Escape sequences alone don't restore termios
	// This is best-effort; ignore errors in crash context
	resetTerminalMode()
}

// crashGuard restores the terminal and exits when a background goroutine panics
// Use as: defer crashGuard("name")
func crashGuard(name string) {
	if r := recover(); r != nil {
		EmergencyReset(os.Stdout)
		fmt.Fprintf(os.Stderr, "\r\n\x1b[31m%s CRASHED: %v\x1b[0m\r\n", name, r)
		fmt.Fprintf(os.Stderr, "Stack Trace:\r\n%s\r\n", debug.Stack())
		os.Stderr.Sync()
		os.Exit(1)
	}
}
