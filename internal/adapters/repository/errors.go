package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	// ErrCorruptRecord marks a stored payload that could not be decoded.
	// Read never returns it: corrupt records are replaced by defaults.
	ErrCorruptRecord = errors.New("corrupt progress record")
	// ErrPersist marks a write that did not reach durable storage. The
	// previously stored record is left intact.
	ErrPersist = errors.New("persist progress record")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)
