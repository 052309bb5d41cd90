package store

import "errors"

var (
	// ErrNotRunning is returned by data operations on a stopped store.
	ErrNotRunning = errors.New("store is not running")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")

	// ErrNoSearcher is returned by Search when no searcher is configured.
	ErrNoSearcher = errors.New("store has no searcher")
)
