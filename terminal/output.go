package terminal

import (
	"errors"
	"io"
	"sync"
)

var (
	// ErrOutputHeld is returned when the output token is already held
	ErrOutputHeld = errors.New("terminal output already held")
	// ErrOutputBusy is returned when a frame is already being presented
	ErrOutputBusy = errors.New("terminal output busy")
	// ErrTokenMismatch is returned for a token not issued by the presenter's channel or already released
	ErrTokenMismatch = errors.New("output token does not own this channel")
	// ErrOutputWrite wraps the underlying write failure; fatal to the session
	ErrOutputWrite = errors.New("terminal output write failed")
	// ErrFrameAborted is returned when a frame is dropped before its bracket opened
	ErrFrameAborted = errors.New("frame aborted before open")
	// ErrFrameInterrupted is returned when cancellation stopped a frame after its bracket opened
	ErrFrameInterrupted = errors.New("frame interrupted")
	// ErrPresenterFailed is returned for presents after a fatal output failure
	ErrPresenterFailed = errors.New("presenter failed")
)

// Channel is the single path to terminal output bytes
// Exactly one OutputToken exists for a channel at a time
type Channel struct {
	w io.Writer

	mu    sync.Mutex
	held  *OutputToken
	epoch uint64
}

// OutputToken proves exclusive ownership of a Channel
type OutputToken struct {
	ch    *Channel
	epoch uint64
}

// NewChannel wraps the terminal output writer
func NewChannel(w io.Writer) *Channel {
	return &Channel{w: w}
}

// Acquire hands out the output token; fails while another token is held
func (c *Channel) Acquire() (*OutputToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held != nil {
		return nil, ErrOutputHeld
	}
	c.epoch++
	tok := &OutputToken{ch: c, epoch: c.epoch}
	c.held = tok
	return tok, nil
}

// Release returns the token; releasing a stale or foreign token fails
func (c *Channel) Release(tok *OutputToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok == nil || c.held != tok {
		return ErrTokenMismatch
	}
	c.held = nil
	return nil
}

// Held reports whether a token is outstanding
func (c *Channel) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held != nil
}

// owns reports whether tok is the channel's current token
func (c *Channel) owns(tok *OutputToken) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tok != nil && c.held == tok && tok.ch == c && tok.epoch == c.epoch
}

// writer returns the underlying writer, used by the presenter only
func (c *Channel) writer() io.Writer { return c.w }

// countingWriter tallies bytes that reached the underlying writer
type countingWriter struct {
	w io.Writer
	n int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += n
	return n, err
}
