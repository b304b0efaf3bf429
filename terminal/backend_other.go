//go:build !unix

package terminal

import (
	"errors"
	"os"
)

// errUnsupported is returned by Init on platforms without a raw-mode backend
var errUnsupported = errors.New("terminal backend not supported on this platform")

type stubBackend struct{}

func newBackend() Backend { return stubBackend{} }

func (stubBackend) Init() error                              { return errUnsupported }
func (stubBackend) Fini()                                    {}
func (stubBackend) Size() (int, int)                         { return 80, 24 }
func (stubBackend) Write(p []byte) (int, error)              { return os.Stdout.Write(p) }
func (stubBackend) SetResizeHandler(func(width, height int)) {}

func (stubBackend) Read(stopCh <-chan struct{}) ([]byte, error) {
	<-stopCh
	return nil, nil
}
