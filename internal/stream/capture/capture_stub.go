//go:build !linux

package capture

// newHandle 非 Linux 平台不支持链路层抓包
func newHandle(opts Options) (Handle, error) {
	return nil, ErrUnsupported
}
