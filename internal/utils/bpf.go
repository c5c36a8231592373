package utils

import (
	"golang.org/x/net/bpf"
)

// IPv4UDPFilter 返回固定的内核级过滤程序：只放行 IPv4 + UDP 帧。
// 端口的筛选不在内核做，由读取方在用户态完成。
func IPv4UDPFilter() ([]bpf.RawInstruction, error) {
	instructions := []bpf.Instruction{
		// 加载以太网类型字段 (偏移 12，2 字节)
		&bpf.LoadAbsolute{Off: 12, Size: 2},
		// 如果不是 IPv4 (0x0800)，跳到丢弃
		&bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 3},
		// 加载 IP 协议字段 (以太网头 14 字节 + IP 头协议偏移 9 字节)
		&bpf.LoadAbsolute{Off: 23, Size: 1},
		// 如果不是 UDP (17)，跳到丢弃
		&bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipFalse: 1},
		// 返回整个数据包 (65535 字节)
		&bpf.RetConstant{Val: 65535},
		// 丢弃数据包
		&bpf.RetConstant{Val: 0},
	}

	return bpf.Assemble(instructions)
}
