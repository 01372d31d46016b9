package engine

import "errors"

// Error taxonomy for the storage engine. Servers and clients translate these
// into wire-level text; see internal/protocol.
var (
	// ErrKeyNotFound is returned by Remove on an absent key.
	ErrKeyNotFound = errors.New("Key not found")

	// ErrCorrupt marks a violated on-disk invariant: a record the index
	// points at decoded as the wrong command, or a key mismatch.
	ErrCorrupt = errors.New("internal error: corrupt record")

	// ErrInvalidStorageEngineType is returned when a directory's engine
	// marker doesn't match the engine being opened.
	ErrInvalidStorageEngineType = errors.New("invalid storage engine type")

	// ErrMalformedRecord marks a decode failure on an interior record
	// (not a torn tail at end of the active segment).
	ErrMalformedRecord = errors.New("malformed record")
)
