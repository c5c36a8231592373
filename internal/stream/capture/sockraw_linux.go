//go:build linux

package capture

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/ninox/internal/log"
	"firestige.xyz/ninox/internal/utils"
)

// sockRawHandle AF_PACKET 原始套接字抓包句柄实现
type sockRawHandle struct {
	fd          int
	timeout     time.Duration
	iface       string
	interrupted atomic.Bool
}

// newSockRawHandle 创建并初始化原始套接字抓包句柄。
// 初始化顺序：建套接字 → 扩大接收缓冲区（尽力而为）→ 附加内核过滤器 →
// 绑定网络接口 → 设置接收超时。除缓冲区外任一步失败都会关闭套接字并返回错误。
func newSockRawHandle(opts Options) (*sockRawHandle, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("open packet socket: %w", err)
	}
	h := &sockRawHandle{
		fd:      fd,
		timeout: opts.Timeout,
		iface:   opts.Interface,
	}

	// 扩大内核接收缓冲区，失败时降级继续。
	// SO_RCVBUFFORCE 可以超过 rmem_max 但需要特权，失败后退回普通 SO_RCVBUF。
	bufBytes := opts.BufferBytes
	if bufBytes <= 0 {
		bufBytes = DefaultBufferBytes
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, bufBytes); err != nil {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, bufBytes); err != nil {
			log.GetLogger().Warnf("capture: set receive buffer to %d bytes: %v", bufBytes, err)
		}
	}

	// 附加内核级 BPF 过滤器 (IPv4 + UDP)
	prog, err := utils.IPv4UDPFilter()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("build filter: %w", err)
	}
	if err := attachFilter(fd, prog); err != nil {
		h.Close()
		return nil, fmt.Errorf("attach filter: %w", err)
	}

	// 解析接口索引并绑定到指定网卡
	iface, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("get interface %s: %w", opts.Interface, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}); err != nil {
		h.Close()
		return nil, fmt.Errorf("bind interface %s: %w", opts.Interface, err)
	}

	// 设置接收超时；无超时配置时使用轮询时间片以便响应 Interrupt
	tv := unix.NsecToTimeval(recvTimeout(opts.Timeout).Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		h.Close()
		return nil, fmt.Errorf("set receive timeout: %w", err)
	}

	return h, nil
}

// attachFilter 将 classic BPF 程序挂载到套接字上
func attachFilter(fd int, prog []bpf.RawInstruction) error {
	filters := make([]unix.SockFilter, 0, len(prog))
	for _, ins := range prog {
		filters = append(filters, unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		})
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &unix.SockFprog{
		Len:    uint16(len(filters)),
		Filter: &filters[0],
	})
}

// htons 主机序转网络序
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// ReadFrame 读取一帧链路层数据
func (h *sockRawHandle) ReadFrame(buf []byte) (int, error) {
	for {
		if h.interrupted.CompareAndSwap(true, false) {
			return 0, ErrInterrupted
		}

		n, _, err := unix.Recvfrom(h.fd, buf, 0)
		switch err {
		case nil:
			return n, nil
		case unix.EAGAIN:
			if h.interrupted.CompareAndSwap(true, false) {
				return 0, ErrInterrupted
			}
			if h.timeout > 0 {
				return 0, ErrTimeout
			}
			// 轮询时间片到期，继续等待
		case unix.EINTR:
			return 0, ErrInterrupted
		default:
			return 0, fmt.Errorf("recvfrom %s: %w", h.iface, err)
		}
	}
}

// Interrupt 请求中断读取；阻塞中的调用在下一次超时检查时返回 ErrInterrupted
func (h *sockRawHandle) Interrupt() {
	h.interrupted.Store(true)
}

// Close 关闭抓包句柄，可重复调用
func (h *sockRawHandle) Close() error {
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	return err
}
