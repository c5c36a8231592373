// Package stream provides a pull-based chunked byte-stream abstraction
// over interchangeable data sources: local files, bound UDP sockets and
// raw link-layer capture with user-space port demultiplexing.
package stream

// Source delivers a byte stream one chunk per call. Implementations are
// not safe for concurrent ReadInto calls.
type Source interface {
	// ReadInto blocks until one chunk is available and copies it into p.
	// It returns the number of bytes copied, between 0 and ChunkSize().
	// The caller must supply len(p) >= ChunkSize().
	//
	// Non-fatal outcomes are reported as ErrTimeout and ErrInterrupted;
	// the source remains usable after both, and after any error
	// wrapping ErrMalformedFrame. File sources report io.EOF once the
	// file is consumed. Any other error means the source is broken.
	ReadInto(p []byte) (int, error)

	// ChunkSize reports the fixed upper bound for a single read.
	ChunkSize() int

	// Label describes the source for diagnostics, e.g. "udp:0.0.0.0:5060".
	// Never parse it.
	Label() string

	// Close releases the underlying handle. Safe to call more than once.
	Close() error
}

// Interrupter is implemented by socket-backed sources. Interrupt wakes
// at most one blocked or subsequent ReadInto, which then reports
// ErrInterrupted instead of data.
type Interrupter interface {
	Interrupt()
}

// recvBufferBytes is the kernel receive budget requested for every
// socket-backed source.
const recvBufferBytes = 4 << 20
