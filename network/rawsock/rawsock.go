// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rawsock 以太网二层收发。
// Linux 下基于 AF_PACKET，测试中使用内存交换机 Hub。
package rawsock

import (
	"errors"
	"net"
	"time"

	"github.com/cnotch/avbhub/stats"
)

// 错误定义
var (
	ErrTimeout     = errors.New("rawsock: receive timeout")
	ErrClosed      = errors.New("rawsock: socket closed")
	ErrUnsupported = errors.New("rawsock: raw sockets are not supported on this platform")
	ErrFrameSize   = errors.New("rawsock: bad frame size")
)

// 帧长度
const (
	MinFrameLen = 60
	MaxFrameLen = 1522
)

// pollInterval 阻塞接收时检查关闭标志的间隔
const pollInterval = 100 * time.Millisecond

// Socket 绑定到一个网口和以太类型的原始套接字。
// 收发的帧都包含以太网帧头。
type Socket interface {
	// Send 发送一帧，不足最小帧长时补零
	Send(frame []byte) error
	// Recv 接收一帧；timeout<=0 表示一直等待直到关闭
	Recv(buf []byte, timeout time.Duration) (int, error)
	// Addr 网口 MAC 地址
	Addr() net.HardwareAddr
	// JoinMulticast 加入组播地址
	JoinMulticast(mac net.HardwareAddr) error
	Close() error
}

// Direction 帧方向
type Direction int

// 帧方向
const (
	TX Direction = iota
	RX
)

func (d Direction) String() string {
	if d == TX {
		return "tx"
	}
	return "rx"
}

// TapFunc 帧监听回调，frame 只在回调期间有效
type TapFunc func(dir Direction, frame []byte)

type tapSocket struct {
	Socket
	tap  TapFunc
	flow stats.Flow
}

// Wrap 包装套接字，将收发的每一帧交给 tap 并计入 flow。
// tap 和 flow 都可以为 nil。
func Wrap(s Socket, tap TapFunc, flow stats.Flow) Socket {
	return &tapSocket{Socket: s, tap: tap, flow: flow}
}

func (s *tapSocket) Send(frame []byte) error {
	if err := s.Socket.Send(frame); err != nil {
		return err
	}
	if s.flow != nil {
		s.flow.AddOut(int64(len(frame)))
	}
	if s.tap != nil {
		s.tap(TX, frame)
	}
	return nil
}

func (s *tapSocket) Recv(buf []byte, timeout time.Duration) (int, error) {
	n, err := s.Socket.Recv(buf, timeout)
	if err != nil {
		return n, err
	}
	if s.flow != nil {
		s.flow.AddIn(int64(n))
	}
	if s.tap != nil {
		s.tap(RX, buf[:n])
	}
	return n, nil
}

// pad 补齐最小帧长
func pad(frame []byte) []byte {
	if len(frame) >= MinFrameLen {
		return frame
	}
	padded := make([]byte, MinFrameLen)
	copy(padded, frame)
	return padded
}

// LinkIsUp 网口是否处于运行状态
func LinkIsUp(ifname string) bool {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return false
	}
	return ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagRunning != 0
}
