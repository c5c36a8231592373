package stream

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"firestige.xyz/ninox/internal/log"
)

// UDPConfig holds construction parameters for a datagram socket source.
type UDPConfig struct {
	IP   string `mapstructure:"ip"`
	Port uint16 `mapstructure:"port"`
}

// aLongTimeAgo is a non-zero time in the distant past, used to force an
// immediate deadline wake-up on the socket.
var aLongTimeAgo = time.Unix(1, 0)

// pollQuantum bounds how long a blocked read can outlive an Interrupt
// when no receive timeout is configured.
const pollQuantum = 100 * time.Millisecond

// UDPSource reads datagrams from a bound UDP socket, one datagram per
// chunk. Datagrams longer than the chunk size are silently truncated.
type UDPSource struct {
	conn        *net.UDPConn
	chunkSize   int
	timeout     time.Duration
	label       string
	interrupted atomic.Bool
}

// NewUDPSource binds the socket and enlarges its receive buffer. A
// receive buffer failure degrades throughput but is not fatal; it is
// logged and construction continues.
func NewUDPSource(cfg UDPConfig, chunkSize int, timeout time.Duration) (*UDPSource, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadChunkSize, chunkSize)
	}
	ip := net.ParseIP(cfg.IP)
	if ip == nil {
		return nil, fmt.Errorf("ninox: invalid listen address %q", cfg.IP)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: int(cfg.Port)})
	if err != nil {
		return nil, fmt.Errorf("bind %s:%d: %w", cfg.IP, cfg.Port, err)
	}
	if err := conn.SetReadBuffer(recvBufferBytes); err != nil {
		log.GetLogger().Warnf("udp source: set receive buffer to %d bytes: %v", recvBufferBytes, err)
	}

	return &UDPSource{
		conn:      conn,
		chunkSize: chunkSize,
		timeout:   timeout,
		label:     fmt.Sprintf("udp:%s:%d", cfg.IP, cfg.Port),
	}, nil
}

// ReadInto blocks until one datagram arrives and copies its payload
// into p. A zero-length datagram is a valid read of zero bytes.
func (s *UDPSource) ReadInto(p []byte) (int, error) {
	for {
		if s.interrupted.CompareAndSwap(true, false) {
			return 0, ErrInterrupted
		}

		wait := s.timeout
		if wait <= 0 {
			wait = pollQuantum
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return 0, fmt.Errorf("set read deadline: %w", err)
		}

		n, _, err := s.conn.ReadFromUDP(p[:s.chunkSize])
		if err == nil {
			return n, nil
		}
		var nerr net.Error
		if !errors.As(err, &nerr) || !nerr.Timeout() {
			return 0, fmt.Errorf("receive on %s: %w", s.label, err)
		}
		if s.interrupted.CompareAndSwap(true, false) {
			return 0, ErrInterrupted
		}
		if s.timeout > 0 {
			return 0, ErrTimeout
		}
		// No timeout configured; the deadline only paces interrupt
		// checks, so keep waiting.
	}
}

// Interrupt wakes the in-flight or next ReadInto, which reports
// ErrInterrupted instead of data.
func (s *UDPSource) Interrupt() {
	s.interrupted.Store(true)
	if conn := s.conn; conn != nil {
		conn.SetReadDeadline(aLongTimeAgo)
	}
}

// LocalAddr reports the bound socket address, including the kernel
// chosen port when the source was configured with port 0.
func (s *UDPSource) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSource) ChunkSize() int { return s.chunkSize }

func (s *UDPSource) Label() string { return s.label }

// Close releases the socket. Safe to call more than once.
func (s *UDPSource) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
