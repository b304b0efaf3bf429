//go:build unix

package terminal

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Input polling
const (
	readBufSize   = 256
	pollTimeoutMs = 100 // stop channel latency
)

// ErrNotTerminal is returned by Init when stdin is not a tty
var ErrNotTerminal = errors.New("stdin is not a terminal")

// unixBackend drives the controlling tty: raw mode on stdin, frames to stdout
type unixBackend struct {
	out     *os.File
	inFd    int
	outFd   int
	saved   *term.State
	readBuf []byte

	resize *resizeHandler
}

func newBackend() Backend {
	return &unixBackend{
		out:     os.Stdout,
		inFd:    int(os.Stdin.Fd()),
		outFd:   int(os.Stdout.Fd()),
		readBuf: make([]byte, readBufSize),
	}
}

func (b *unixBackend) Init() error {
	if !term.IsTerminal(b.inFd) {
		return ErrNotTerminal
	}
	saved, err := term.MakeRaw(b.inFd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	b.saved = saved
	return nil
}

func (b *unixBackend) Fini() {
	if b.resize != nil {
		b.resize.stop()
		b.resize = nil
	}
	if b.saved != nil {
		term.Restore(b.inFd, b.saved)
		b.saved = nil
	}
}

func (b *unixBackend) Size() (int, int) {
	return getTerminalSize(b.outFd)
}

func (b *unixBackend) Write(p []byte) (int, error) {
	return b.out.Write(p)
}

// Read returns the next chunk of input, or nil on stop or end of input
// Only one goroutine may call Read; the chunk is a fresh copy
func (b *unixBackend) Read(stopCh <-chan struct{}) ([]byte, error) {
	for {
		ready, err := b.waitReadable(stopCh)
		if err != nil || !ready {
			return nil, err
		}

		n, err := unix.Read(b.inFd, b.readBuf)
		switch {
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			return nil, fmt.Errorf("read input: %w", err)
		case n == 0:
			return nil, nil
		}
		return append([]byte(nil), b.readBuf[:n]...), nil
	}
}

// waitReadable polls stdin in short slices so stopCh is honored; false means stopped
func (b *unixBackend) waitReadable(stopCh <-chan struct{}) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(b.inFd), Events: unix.POLLIN}}
	for {
		select {
		case <-stopCh:
			return false, nil
		default:
		}

		n, err := unix.Poll(fds, pollTimeoutMs)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll input: %w", err)
		}
		if n > 0 {
			// POLLHUP without POLLIN still reads as EOF
			return true, nil
		}
	}
}

func (b *unixBackend) SetResizeHandler(handler func(width, height int)) {
	if b.resize != nil {
		b.resize.stop()
	}
	b.resize = newResizeHandler(b.outFd, handler)
	b.resize.start()
}
