//go:build linux

package capture

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/ninox/internal/utils"
)

// afpacketHandle TPACKET_V3 环形缓冲抓包句柄实现
type afpacketHandle struct {
	tpacket     *afpacket.TPacket
	timeout     time.Duration
	iface       string
	interrupted atomic.Bool
}

// newAFPacketHandle 创建并初始化 TPacket 抓包句柄
func newAFPacketHandle(opts Options) (*afpacketHandle, error) {
	// 获取网络接口
	iface, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("get interface %s: %w", opts.Interface, err)
	}

	bufBytes := opts.BufferBytes
	if bufBytes <= 0 {
		bufBytes = DefaultBufferBytes
	}
	frameSize, szBlock, numBlock, err := computeFrameSizeAndBlocks(MaxFrameLen, bufBytes)
	if err != nil {
		return nil, err
	}

	// 创建 AF_PACKET socket
	tpacket, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface.Name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(szBlock),
		afpacket.OptNumBlocks(numBlock),
		afpacket.OptPollTimeout(recvTimeout(opts.Timeout)),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("create TPacket on %s: %w", opts.Interface, err)
	}

	h := &afpacketHandle{
		tpacket: tpacket,
		timeout: opts.Timeout,
		iface:   opts.Interface,
	}

	// 设置内核级 BPF 过滤器 (IPv4 + UDP)
	prog, err := utils.IPv4UDPFilter()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("build filter: %w", err)
	}
	if err := h.tpacket.SetBPF(prog); err != nil {
		h.Close()
		return nil, fmt.Errorf("set filter: %w", err)
	}

	return h, nil
}

// computeFrameSizeAndBlocks 根据帧长和缓冲区预算推算环形缓冲的几何参数
func computeFrameSizeAndBlocks(snapLen, bufferBytes int) (frameSize int, blockSize int, numBlocks int, err error) {
	pageSize := os.Getpagesize()
	if snapLen < pageSize {
		frameSize = pageSize / (pageSize / snapLen)
	} else {
		frameSize = (snapLen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	if blockSize > bufferBytes {
		blockSize = frameSize
	}
	numBlocks = bufferBytes / blockSize

	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("capture buffer of %d bytes too small for frame size %d", bufferBytes, frameSize)
	}
	return frameSize, blockSize, numBlocks, nil
}

// ReadFrame 读取一帧链路层数据
func (h *afpacketHandle) ReadFrame(buf []byte) (int, error) {
	for {
		if h.interrupted.CompareAndSwap(true, false) {
			return 0, ErrInterrupted
		}

		data, _, err := h.tpacket.ZeroCopyReadPacketData()
		switch err {
		case nil:
			return copy(buf, data), nil
		case afpacket.ErrTimeout:
			if h.interrupted.CompareAndSwap(true, false) {
				return 0, ErrInterrupted
			}
			if h.timeout > 0 {
				return 0, ErrTimeout
			}
			// 轮询时间片到期，继续等待
		default:
			return 0, fmt.Errorf("read packet from %s: %w", h.iface, err)
		}
	}
}

// Interrupt 请求中断读取；阻塞中的调用在下一次轮询超时后返回 ErrInterrupted
func (h *afpacketHandle) Interrupt() {
	h.interrupted.Store(true)
}

// Close 关闭抓包句柄，可重复调用
func (h *afpacketHandle) Close() error {
	if h.tpacket != nil {
		h.tpacket.Close()
		h.tpacket = nil
	}
	return nil
}
