package terminal

// Backend is the platform layer under Terminal
// Tests substitute an in-memory implementation
type Backend interface {
	// Init enters raw mode
	Init() error
	// Fini undoes Init and stops resize delivery
	Fini()

	Size() (width, height int)

	// Write sends bytes to the terminal unmodified
	Write(p []byte) (int, error)

	// Read blocks for input; nil data means stopCh closed or input ended
	Read(stopCh <-chan struct{}) ([]byte, error)

	// SetResizeHandler replaces the callback invoked with each new size
	SetResizeHandler(handler func(width, height int))
}
