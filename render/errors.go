package render

import "errors"

var (
	// ErrDimensionMismatch is returned when a diff or apply crosses differently sized buffers
	ErrDimensionMismatch = errors.New("buffer dimension mismatch")

	// ErrWidePair is returned by Validate when a wide lead/continuation pair is broken
	ErrWidePair = errors.New("broken wide cell pair")

	// ErrSpanBounds is returned by Apply when a span does not fit the target buffer
	ErrSpanBounds = errors.New("diff span out of bounds")
)
