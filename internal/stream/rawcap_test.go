package stream

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"firestige.xyz/ninox/internal/stream/capture"
)

// fakeHandle feeds scripted frames and errors to a RawSource. Once the
// script runs out it reports a poll timeout, like an idle interface.
type fakeHandle struct {
	reads      []fakeRead
	pos        int
	closes     int
	interrupts int
}

type fakeRead struct {
	frame []byte
	err   error
}

func (h *fakeHandle) ReadFrame(buf []byte) (int, error) {
	if h.pos >= len(h.reads) {
		return 0, capture.ErrTimeout
	}
	r := h.reads[h.pos]
	h.pos++
	if r.err != nil {
		return 0, r.err
	}
	return copy(buf, r.frame), nil
}

func (h *fakeHandle) Interrupt() { h.interrupts++ }

func (h *fakeHandle) Close() error {
	h.closes++
	return nil
}

func rawSourceOver(h capture.Handle, port uint16, chunkSize int) *RawSource {
	return &RawSource{
		handle:    h,
		frame:     make([]byte, capture.MaxFrameLen),
		port:      port,
		chunkSize: chunkSize,
		label:     fmt.Sprintf("rawcap:test0:%d", port),
	}
}

func TestRawSourceDeliversMatchingPayload(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	h := &fakeHandle{reads: []fakeRead{
		{frame: buildFrame(20, 5060, payload)},
	}}
	s := rawSourceOver(h, 5060, 9000)

	buf := make([]byte, s.ChunkSize())
	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}

	if n != len(payload) {
		t.Errorf("Expected %d bytes, got %d", len(payload), n)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("Expected payload %x, got %x", payload, buf[:n])
	}
}

func TestRawSourceSkipsOtherPorts(t *testing.T) {
	want := []byte{0xCA, 0xFE}
	h := &fakeHandle{reads: []fakeRead{
		{frame: buildFrame(20, 53, []byte{0x99})},
		{frame: buildFrame(20, 123, []byte{0x98})},
		{frame: buildFrame(20, 5060, want)},
	}}
	s := rawSourceOver(h, 5060, 9000)

	buf := make([]byte, s.ChunkSize())
	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}

	if !bytes.Equal(buf[:n], want) {
		t.Errorf("Expected payload %x, got %x", want, buf[:n])
	}
	if h.pos != 3 {
		t.Errorf("Expected 3 frames consumed, got %d", h.pos)
	}
}

func TestRawSourceTimeout(t *testing.T) {
	s := rawSourceOver(&fakeHandle{}, 5060, 9000)

	buf := make([]byte, s.ChunkSize())
	n, err := s.ReadInto(buf)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes on timeout, got %d", n)
	}
}

func TestRawSourceInterrupted(t *testing.T) {
	h := &fakeHandle{reads: []fakeRead{
		{err: capture.ErrInterrupted},
		{frame: buildFrame(20, 5060, []byte{0x01})},
	}}
	s := rawSourceOver(h, 5060, 9000)

	buf := make([]byte, s.ChunkSize())
	if _, err := s.ReadInto(buf); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}

	// The source stays usable after an interrupt.
	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto after interrupt failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 byte, got %d", n)
	}
}

func TestRawSourceMalformedFrameThenUsable(t *testing.T) {
	h := &fakeHandle{reads: []fakeRead{
		{frame: buildFrame(20, 5060, nil)[:minFrameLen-1]},
		{frame: buildFrame(20, 5060, []byte{0x0A, 0x0B})},
	}}
	s := rawSourceOver(h, 5060, 9000)

	buf := make([]byte, s.ChunkSize())
	if _, err := s.ReadInto(buf); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("Expected ErrMalformedFrame, got %v", err)
	}

	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto after malformed frame failed: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte{0x0A, 0x0B}) {
		t.Errorf("Expected payload 0a0b, got %x", buf[:n])
	}
}

func TestRawSourceTruncatesToChunkSize(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A}
	h := &fakeHandle{reads: []fakeRead{
		{frame: buildFrame(20, 5060, payload)},
	}}
	s := rawSourceOver(h, 5060, 4)

	buf := make([]byte, 16)
	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}

	if n != 4 {
		t.Errorf("Expected chunk size 4, got %d", n)
	}
	if !bytes.Equal(buf[:n], payload[:4]) {
		t.Errorf("Expected payload %x, got %x", payload[:4], buf[:n])
	}
}

func TestRawSourceEmptyDatagram(t *testing.T) {
	h := &fakeHandle{reads: []fakeRead{
		{frame: buildFrame(20, 5060, nil)},
	}}
	s := rawSourceOver(h, 5060, 9000)

	buf := make([]byte, s.ChunkSize())
	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected empty read, got %d bytes", n)
	}
}

func TestRawSourceFatalError(t *testing.T) {
	h := &fakeHandle{reads: []fakeRead{
		{err: errors.New("device vanished")},
	}}
	s := rawSourceOver(h, 5060, 9000)

	buf := make([]byte, s.ChunkSize())
	_, err := s.ReadInto(buf)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrInterrupted) || errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Expected a fatal error, got %v", err)
	}
}

func TestRawSourceInterruptForwards(t *testing.T) {
	h := &fakeHandle{}
	s := rawSourceOver(h, 5060, 9000)

	s.Interrupt()
	if h.interrupts != 1 {
		t.Errorf("Expected 1 interrupt forwarded, got %d", h.interrupts)
	}
}

func TestRawSourceCloseIdempotent(t *testing.T) {
	h := &fakeHandle{}
	s := rawSourceOver(h, 5060, 9000)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if h.closes != 1 {
		t.Errorf("Expected handle closed once, got %d", h.closes)
	}

	// Interrupt after Close must not panic.
	s.Interrupt()
}
