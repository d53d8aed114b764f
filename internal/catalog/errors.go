package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for the catalog package.
var (
	// ErrMalformed is returned when a catalog file cannot be decoded.
	// Callers treat it as a recoverable warning.
	ErrMalformed = errors.New("malformed catalog file")

	// ErrInvalidRecord is returned when a record lacks a title or bv.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidField is returned for a field selector outside {title, author}.
	ErrInvalidField = errors.New("invalid field")

	// ErrInvalidWords is returned when a word list contains non-string entries.
	ErrInvalidWords = errors.New("invalid word list")
)

// LoadError describes a catalog file that could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FieldError reports an unknown field selector.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: must be title or author", ErrInvalidField, e.Field)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

// WordTypeError reports a word list entry that is not a string.
// Index is -1 when the list itself has the wrong type.
type WordTypeError struct {
	Index int
	Value any
}

func (e *WordTypeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: want string or list of strings, got %T", ErrInvalidWords, e.Value)
	}
	return fmt.Sprintf("%s: entry %d is %T, want string", ErrInvalidWords, e.Index, e.Value)
}

func (e *WordTypeError) Unwrap() error { return ErrInvalidWords }
