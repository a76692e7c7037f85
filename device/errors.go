package device

import (
	"errors"
	"fmt"
)

// Sentinel errors for the device package. Wrap with fmt.Errorf("%w: ...")
// to attach detail while keeping errors.Is matching intact.
var (
	// ErrCompile is returned when a Program fails to compile its source.
	ErrCompile = errors.New("device: compile error")

	// ErrReflectionUnavailable is returned when a Kernel's argument names
	// cannot be recovered from the compiled program.
	ErrReflectionUnavailable = errors.New("device: reflection unavailable")

	// ErrRecursiveContext is returned by Use when a context is made
	// current while another context is still current in the process.
	ErrRecursiveContext = errors.New("device: recursive context activation")

	// ErrNoCurrentContext is returned when an operation requires a current
	// context but none has been activated.
	ErrNoCurrentContext = errors.New("device: no current context")

	// ErrBackendError wraps failures surfaced by the underlying adapter
	// (instance/adapter/device/queue creation, submission failures).
	ErrBackendError = errors.New("device: backend error")

	// ErrAllocationError is returned when device memory cannot be obtained.
	ErrAllocationError = errors.New("device: allocation error")
)

func errBackendf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBackendError, fmt.Sprintf(format, args...))
}
