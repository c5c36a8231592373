// Package stream sentinel errors.
package stream

import "errors"

var (
	// Non-fatal receive outcomes; the source stays usable.
	ErrTimeout     = errors.New("ninox: receive timed out")
	ErrInterrupted = errors.New("ninox: read interrupted")

	// Frame decoding errors; wrapped with detail, the source stays usable.
	ErrMalformedFrame = errors.New("ninox: malformed frame")

	// Construction errors.
	ErrUnknownKind  = errors.New("ninox: unknown source kind")
	ErrBadChunkSize = errors.New("ninox: chunk size must be positive")
)
