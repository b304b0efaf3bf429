//go:build unix

package terminal

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// Size reported when the ioctl fails or returns zeros
const (
	fallbackWidth  = 80
	fallbackHeight = 24
)

// resizeHandler reports the new size of fd on every SIGWINCH
type resizeHandler struct {
	fd     int
	notify func(width, height int)
	sig    chan os.Signal
	quit   chan struct{}
	exited chan struct{}
}

func newResizeHandler(fd int, notify func(width, height int)) *resizeHandler {
	return &resizeHandler{
		fd:     fd,
		notify: notify,
		sig:    make(chan os.Signal, 1),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (r *resizeHandler) start() {
	signal.Notify(r.sig, syscall.SIGWINCH)
	go r.run()
}

// stop blocks until the watcher goroutine has returned
func (r *resizeHandler) stop() {
	signal.Stop(r.sig)
	close(r.quit)
	<-r.exited
}

func (r *resizeHandler) run() {
	defer close(r.exited)
	defer crashGuard("resize watcher")

	for {
		select {
		case <-r.quit:
			return
		case <-r.sig:
			// Zero-sized reports happen mid-resize on some emulators
			if w, h, ok := winsize(r.fd); ok {
				r.notify(w, h)
			}
		}
	}
}

func winsize(fd int) (int, int, bool) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return 0, 0, false
	}
	return int(ws.Col), int(ws.Row), true
}

func getTerminalSize(fd int) (int, int) {
	if w, h, ok := winsize(fd); ok {
		return w, h
	}
	return fallbackWidth, fallbackHeight
}
