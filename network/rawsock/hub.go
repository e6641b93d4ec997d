// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rawsock

import (
	"bytes"
	"encoding/binary"
	"net"
	"sync"
	"time"
)

const portQueueLen = 256

var broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Hub 内存中的以太网段。
// 一帧会投递给除发送者外所有匹配的端口：以太类型相同，
// 且目的地址为端口地址、已加入的组播地址或广播。
type Hub struct {
	mu    sync.RWMutex
	ports []*hubPort
}

// NewHub 创建内存以太网段
func NewHub() *Hub {
	return &Hub{}
}

// Open 在段上打开一个端口
func (h *Hub) Open(mac net.HardwareAddr, ethertype uint16) Socket {
	p := &hubPort{
		hub:       h,
		mac:       append(net.HardwareAddr(nil), mac...),
		ethertype: ethertype,
		rx:        make(chan []byte, portQueueLen),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	h.ports = append(h.ports, p)
	h.mu.Unlock()
	return p
}

func (h *Hub) remove(p *hubPort) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, q := range h.ports {
		if q == p {
			h.ports = append(h.ports[:i], h.ports[i+1:]...)
			return
		}
	}
}

func (h *Hub) deliver(from *hubPort, frame []byte) {
	ethertype := binary.BigEndian.Uint16(frame[12:14])
	if ethertype == 0x8100 && len(frame) >= 18 {
		ethertype = binary.BigEndian.Uint16(frame[16:18])
	}
	dst := net.HardwareAddr(frame[:6])

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range h.ports {
		if p == from || p.ethertype != ethertype || !p.accepts(dst) {
			continue
		}
		cp := append([]byte(nil), frame...)
		select {
		case p.rx <- cp:
		default: // 队列满时丢帧
		}
	}
}

type hubPort struct {
	hub       *Hub
	mac       net.HardwareAddr
	ethertype uint16
	rx        chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	groups []net.HardwareAddr
}

func (p *hubPort) accepts(dst net.HardwareAddr) bool {
	if bytes.Equal(dst, p.mac) || bytes.Equal(dst, broadcast) {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, g := range p.groups {
		if bytes.Equal(dst, g) {
			return true
		}
	}
	return false
}

func (p *hubPort) Send(frame []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	if len(frame) < 14 || len(frame) > MaxFrameLen {
		return ErrFrameSize
	}
	p.hub.deliver(p, pad(frame))
	return nil
}

func (p *hubPort) Recv(buf []byte, timeout time.Duration) (int, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case frame := <-p.rx:
		return copy(buf, frame), nil
	case <-expire:
		return 0, ErrTimeout
	case <-p.done:
		return 0, ErrClosed
	}
}

func (p *hubPort) Addr() net.HardwareAddr {
	return p.mac
}

func (p *hubPort) JoinMulticast(mac net.HardwareAddr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, g := range p.groups {
		if bytes.Equal(g, mac) {
			return nil
		}
	}
	p.groups = append(p.groups, append(net.HardwareAddr(nil), mac...))
	return nil
}

func (p *hubPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.hub.remove(p)
	})
	return nil
}
