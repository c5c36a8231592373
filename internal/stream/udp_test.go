package stream

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func newLoopbackSource(t *testing.T, chunkSize int, timeout time.Duration) *UDPSource {
	t.Helper()
	s, err := NewUDPSource(UDPConfig{IP: "127.0.0.1", Port: 0}, chunkSize, timeout)
	if err != nil {
		t.Fatalf("NewUDPSource failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// dialSource opens a client socket pointed at the source's bound port.
func dialSource(t *testing.T, s *UDPSource) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, s.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial source: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUDPSourceReceivesDatagram(t *testing.T) {
	s := newLoopbackSource(t, 1024, 2*time.Second)
	client := dialSource(t, s)

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	buf := make([]byte, s.ChunkSize())
	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("hello")) {
		t.Errorf("Expected %q, got %q", "hello", buf[:n])
	}
}

func TestUDPSourceDatagramBoundaries(t *testing.T) {
	s := newLoopbackSource(t, 1024, 2*time.Second)
	client := dialSource(t, s)

	for _, msg := range []string{"a", "bb", "ccc"} {
		if _, err := client.Write([]byte(msg)); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	buf := make([]byte, s.ChunkSize())
	for _, want := range []string{"a", "bb", "ccc"} {
		n, err := s.ReadInto(buf)
		if err != nil {
			t.Fatalf("ReadInto failed: %v", err)
		}
		if string(buf[:n]) != want {
			t.Errorf("Expected datagram %q, got %q", want, buf[:n])
		}
	}
}

func TestUDPSourceEmptyDatagram(t *testing.T) {
	s := newLoopbackSource(t, 1024, 2*time.Second)
	client := dialSource(t, s)

	if _, err := client.Write(nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	n, err := s.ReadInto(make([]byte, s.ChunkSize()))
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected empty read, got %d bytes", n)
	}
}

func TestUDPSourceTruncatesToChunkSize(t *testing.T) {
	s := newLoopbackSource(t, 4, 2*time.Second)
	client := dialSource(t, s)

	if _, err := client.Write([]byte("0123456789")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	buf := make([]byte, 16)
	n, err := s.ReadInto(buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected chunk size 4, got %d", n)
	}
	if string(buf[:n]) != "0123" {
		t.Errorf("Expected %q, got %q", "0123", buf[:n])
	}
}

func TestUDPSourceTimeout(t *testing.T) {
	s := newLoopbackSource(t, 64, 50*time.Millisecond)

	n, err := s.ReadInto(make([]byte, s.ChunkSize()))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes on timeout, got %d", n)
	}

	// The source stays usable after a timeout.
	client := dialSource(t, s)
	if _, err := client.Write([]byte("x")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err = s.ReadInto(make([]byte, s.ChunkSize()))
		if err == nil {
			break
		}
		if !errors.Is(err, ErrTimeout) || time.Now().After(deadline) {
			t.Fatalf("ReadInto after timeout failed: %v", err)
		}
	}
	if n != 1 {
		t.Errorf("Expected 1 byte, got %d", n)
	}
}

func TestUDPSourceInterruptWhileBlocked(t *testing.T) {
	// No receive timeout: only Interrupt can end the call.
	s := newLoopbackSource(t, 64, 0)

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Interrupt()
	}()

	start := time.Now()
	_, err := s.ReadInto(make([]byte, s.ChunkSize()))
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Interrupt took %v to be observed", elapsed)
	}

	// The source stays usable after an interrupt.
	client := dialSource(t, s)
	if _, err := client.Write([]byte("y")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	n, err := s.ReadInto(make([]byte, s.ChunkSize()))
	if err != nil {
		t.Fatalf("ReadInto after interrupt failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 byte, got %d", n)
	}
}

func TestUDPSourceInterruptBeforeRead(t *testing.T) {
	s := newLoopbackSource(t, 64, time.Second)

	s.Interrupt()
	if _, err := s.ReadInto(make([]byte, s.ChunkSize())); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
}

func TestUDPSourceInvalidAddress(t *testing.T) {
	_, err := NewUDPSource(UDPConfig{IP: "not-an-ip", Port: 0}, 64, 0)
	if err == nil {
		t.Fatal("Expected error for invalid listen address, got nil")
	}
	if !strings.Contains(err.Error(), "invalid listen address") {
		t.Errorf("Expected invalid address error, got: %v", err)
	}
}

func TestUDPSourceBadChunkSize(t *testing.T) {
	_, err := NewUDPSource(UDPConfig{IP: "127.0.0.1", Port: 0}, 0, 0)
	if !errors.Is(err, ErrBadChunkSize) {
		t.Errorf("Expected ErrBadChunkSize, got %v", err)
	}
}

func TestUDPSourceLabel(t *testing.T) {
	s := newLoopbackSource(t, 64, 0)
	if s.Label() != "udp:127.0.0.1:0" {
		t.Errorf("Expected label %q, got %q", "udp:127.0.0.1:0", s.Label())
	}
}

func TestUDPSourceCloseIdempotent(t *testing.T) {
	s, err := NewUDPSource(UDPConfig{IP: "127.0.0.1", Port: 0}, 64, 0)
	if err != nil {
		t.Fatalf("NewUDPSource failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	// Interrupt after Close must not panic.
	s.Interrupt()
}
