// Package kvserr defines the error taxonomy shared by the engine, the
// line protocol, and the server. Engine operations return one of these
// sentinels (wrapped with context via %w) rather than ad hoc strings, so
// callers can branch with errors.Is.
package kvserr

import "errors"

var (
	// ErrInvalidKeySize is returned when a key exceeds the 256 byte limit.
	ErrInvalidKeySize = errors.New("key exceeds maximum size of 256 bytes")
	// ErrInvalidValueSize is returned when a value exceeds the 4096 byte limit.
	ErrInvalidValueSize = errors.New("value exceeds maximum size of 4096 bytes")
	// ErrKeyNotFound is returned by Remove when the key has no live entry.
	ErrKeyNotFound = errors.New("key not found")
	// ErrIo wraps underlying file or socket failures.
	ErrIo = errors.New("i/o error")
	// ErrCorruption marks a decode failure or an invariant violation
	// observed at read time, or a bad index snapshot (recoverable by
	// replay, so it must never surface past open()).
	ErrCorruption = errors.New("corruption detected")
	// ErrParseEngine is a configuration error: an unrecognized --engine
	// value, or one that does not match the directory's db.type marker.
	ErrParseEngine = errors.New("invalid or mismatched engine selector")
	// ErrUnknownCommand is a protocol error: the request's verb is not
	// one of SET/GET/RM/SCAN.
	ErrUnknownCommand = errors.New("unknown command")
)
