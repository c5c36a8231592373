package stream

import (
	"errors"
	"fmt"
	"time"

	"firestige.xyz/ninox/internal/stream/capture"
)

// RawConfig holds construction parameters for a link-layer capture
// source.
type RawConfig struct {
	Interface string          `mapstructure:"interface"`
	Port      uint16          `mapstructure:"port"`
	Backend   capture.Backend `mapstructure:"backend"`
}

// RawSource reads UDP payloads for one destination port straight off a
// network interface. The kernel filter narrows traffic to IPv4+UDP;
// the port match happens here, frame by frame.
type RawSource struct {
	handle    capture.Handle
	frame     []byte
	port      uint16
	chunkSize int
	label     string
}

// NewRawSource opens a capture handle on the interface. Construction is
// all-or-nothing; on error nothing stays acquired.
func NewRawSource(cfg RawConfig, chunkSize int, timeout time.Duration) (*RawSource, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadChunkSize, chunkSize)
	}
	handle, err := capture.Open(capture.Options{
		Interface:   cfg.Interface,
		Timeout:     timeout,
		BufferBytes: recvBufferBytes,
		Backend:     cfg.Backend,
	})
	if err != nil {
		return nil, fmt.Errorf("open capture on %s: %w", cfg.Interface, err)
	}

	return &RawSource{
		handle:    handle,
		frame:     make([]byte, capture.MaxFrameLen),
		port:      cfg.Port,
		chunkSize: chunkSize,
		label:     fmt.Sprintf("rawcap:%s:%d", cfg.Interface, cfg.Port),
	}, nil
}

// ReadInto blocks until a frame for the configured port arrives and
// copies its UDP payload into p, truncated to the chunk size. Frames
// for other ports are consumed and skipped without returning; the skip
// loop is bounded only by the receive timeout.
func (s *RawSource) ReadInto(p []byte) (int, error) {
	for {
		n, err := s.handle.ReadFrame(s.frame)
		if err != nil {
			switch {
			case errors.Is(err, capture.ErrTimeout):
				return 0, ErrTimeout
			case errors.Is(err, capture.ErrInterrupted):
				return 0, ErrInterrupted
			default:
				return 0, fmt.Errorf("read %s: %w", s.label, err)
			}
		}

		port, payload, err := udpPayload(s.frame[:n])
		if err != nil {
			return 0, err
		}
		if port != s.port {
			// Not ours; keep draining.
			continue
		}
		return copy(p[:s.chunkSize], payload), nil
	}
}

// Interrupt wakes the in-flight or next ReadInto, which reports
// ErrInterrupted instead of data.
func (s *RawSource) Interrupt() {
	if h := s.handle; h != nil {
		h.Interrupt()
	}
}

func (s *RawSource) ChunkSize() int { return s.chunkSize }

func (s *RawSource) Label() string { return s.label }

// Close releases the capture handle. Safe to call more than once.
func (s *RawSource) Close() error {
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}
