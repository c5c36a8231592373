package stream

import (
	"encoding/binary"
	"fmt"
)

const (
	// Frame layout constants
	ethernetHeaderLen = 14
	minIPHeaderLen    = 20
	udpHeaderLen      = 8

	// Smallest frame that can carry an Ethernet + IPv4 + UDP stack.
	minFrameLen = ethernetHeaderLen + minIPHeaderLen + udpHeaderLen
)

// udpPayload walks an Ethernet/IPv4/UDP frame and returns the UDP
// destination port together with the datagram payload. The kernel
// filter has already discarded non-IPv4 and non-UDP traffic, so only
// structural validation happens here. Structural failures wrap
// ErrMalformedFrame.
func udpPayload(frame []byte) (uint16, []byte, error) {
	if len(frame) < minFrameLen {
		return 0, nil, fmt.Errorf("%w: frame of %d bytes below minimum %d", ErrMalformedFrame, len(frame), minFrameLen)
	}

	// IHL is the low nibble of the first IP header byte, in 32-bit words.
	ihl := int(frame[ethernetHeaderLen]&0x0F) * 4
	if ihl < minIPHeaderLen {
		return 0, nil, fmt.Errorf("%w: IPv4 header of %d bytes below minimum %d", ErrMalformedFrame, ihl, minIPHeaderLen)
	}

	udpStart := ethernetHeaderLen + ihl
	if len(frame) < udpStart+udpHeaderLen {
		return 0, nil, fmt.Errorf("%w: frame of %d bytes too short for IPv4 header of %d bytes", ErrMalformedFrame, len(frame), ihl)
	}

	// Destination port (2 bytes at UDP header offset 2)
	port := binary.BigEndian.Uint16(frame[udpStart+2 : udpStart+4])

	return port, frame[udpStart+udpHeaderLen:], nil
}
