package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend 定义抓包后端类型
type Backend string

const (
	// BackendSockRaw 普通 AF_PACKET 原始套接字后端
	BackendSockRaw Backend = "sockraw"
	// BackendAFPacket TPACKET_V3 环形缓冲后端
	BackendAFPacket Backend = "afpacket"
)

// Handle 定义抓包句柄接口
type Handle interface {
	// ReadFrame 读取一帧链路层数据到 buf，返回帧长度
	ReadFrame(buf []byte) (int, error)

	// Interrupt 唤醒阻塞中的 ReadFrame，使其返回 ErrInterrupted
	Interrupt()

	// Close 关闭抓包句柄，可重复调用
	Close() error
}

var (
	ErrTimeout        = errors.New("ninox: capture poll timed out")
	ErrInterrupted    = errors.New("ninox: capture read interrupted")
	ErrUnknownBackend = errors.New("ninox: unknown capture backend")
	ErrUnsupported    = errors.New("ninox: packet capture not supported on this platform")
)

// Options 抓包句柄配置
type Options struct {
	Interface   string        `mapstructure:"interface"`    // 网络接口名称
	Timeout     time.Duration `mapstructure:"timeout"`      // 接收超时，0 表示一直阻塞
	BufferBytes int           `mapstructure:"buffer_bytes"` // 内核接收缓冲区大小，0 使用 DefaultBufferBytes
	Backend     Backend       `mapstructure:"backend"`      // 抓包后端 (sockraw, afpacket)
}

const (
	// DefaultBufferBytes 默认内核接收缓冲区大小
	DefaultBufferBytes = 4 << 20

	// MaxFrameLen 单帧数据的最大长度
	MaxFrameLen = 65536

	// pollQuantum 无超时配置时用于响应 Interrupt 的轮询时间片
	pollQuantum = 100 * time.Millisecond
)

// ParseBackend 将字符串转换为 Backend（不区分大小写、去除空白），
// 空字符串返回默认后端 BackendSockRaw
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sockraw", "sock_raw", "sock-raw", "":
		return BackendSockRaw, nil
	case "afpacket", "af_packet", "af-packet":
		return BackendAFPacket, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// UnmarshalText 实现 encoding.TextUnmarshaler，支持 mapstructure / yaml / json 文本反序列化
func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Open 按配置的后端创建并初始化抓包句柄
func Open(opts Options) (Handle, error) {
	return newHandle(opts)
}

func recvTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return pollQuantum
	}
	return d
}
