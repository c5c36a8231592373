//go:build linux

package capture

import "fmt"

// newHandle 根据后端类型创建对应的抓包句柄
func newHandle(opts Options) (Handle, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendSockRaw
	}
	switch backend {
	case BackendSockRaw:
		return newSockRawHandle(opts)
	case BackendAFPacket:
		return newAFPacketHandle(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
