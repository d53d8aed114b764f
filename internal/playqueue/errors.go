package playqueue

import "errors"

var (
	// ErrOutOfRange is returned when an index does not address a queue entry.
	ErrOutOfRange = errors.New("index out of range")

	// ErrNotFound is returned when a path is not in the queue.
	ErrNotFound = errors.New("path not in queue")

	// ErrInvalidMode is returned for an unknown play mode.
	ErrInvalidMode = errors.New("invalid play mode")
)
