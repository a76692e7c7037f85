package promise

import "errors"

// ErrQueueMismatch is returned by Merge when its inputs are bound to
// different command queues.
var ErrQueueMismatch = errors.New("promise: queue mismatch")
