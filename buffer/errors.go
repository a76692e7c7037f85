package buffer

import "errors"

var (
	// ErrOutOfRange is returned by Get/Set when the index falls outside
	// [0, Size()).
	ErrOutOfRange = errors.New("buffer: index out of range")

	// ErrAllocationError is returned when a host shadow array or device
	// handle cannot be allocated.
	ErrAllocationError = errors.New("buffer: allocation error")
)
