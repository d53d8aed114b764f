package download

import "errors"

// Sentinel errors for the download package.
var (
	// ErrRunning is returned by operations that need an idle queue.
	ErrRunning = errors.New("download queue is running")

	// ErrStopTimeout is returned when workers are still busy after the stop timeout.
	ErrStopTimeout = errors.New("timed out waiting for download workers")

	// ErrInvalidTransition is returned when a task status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when a task is not in the history.
	ErrNotFound = errors.New("task not found")

	// ErrNotFinished is returned when recording a task that has not reached a terminal status.
	ErrNotFinished = errors.New("task not finished")

	// ErrPanic wraps a panic recovered from a downloader.
	ErrPanic = errors.New("downloader panicked")

	// ErrEmptyCommand is returned when the download command template is empty.
	ErrEmptyCommand = errors.New("download command is empty")
)
