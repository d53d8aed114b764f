package search

import "errors"

var (
	// ErrNoResults indicates local and network sources were exhausted without a match.
	// This is informational, not a failure.
	ErrNoResults = errors.New("no results")

	// ErrSearchFailed indicates the network collaborator failed. It wraps the cause.
	ErrSearchFailed = errors.New("search failed")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("empty query")
)
