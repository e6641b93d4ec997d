// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package rawsock

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type packetSocket struct {
	fd        int
	ifindex   int
	mac       net.HardwareAddr
	ethertype uint16
	closed    int32
}

// Open 在网口 ifname 上打开指定以太类型的 AF_PACKET 套接字，需要 CAP_NET_RAW
func Open(ifname string, ethertype uint16) (Socket, error) {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, err
	}
	if len(ifi.HardwareAddr) != 6 {
		return nil, fmt.Errorf("rawsock: interface %s has no ethernet address", ifname)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(ethertype)))
	if err != nil {
		return nil, fmt.Errorf("rawsock: socket: %w", err)
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(ethertype),
		Ifindex:  ifi.Index,
	}
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: bind %s: %w", ifname, err)
	}

	return &packetSocket{
		fd:        fd,
		ifindex:   ifi.Index,
		mac:       ifi.HardwareAddr,
		ethertype: ethertype,
	}, nil
}

func (s *packetSocket) isClosed() bool {
	return atomic.LoadInt32(&s.closed) != 0
}

func (s *packetSocket) Send(frame []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	if len(frame) < 14 || len(frame) > MaxFrameLen {
		return ErrFrameSize
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(s.ethertype),
		Ifindex:  s.ifindex,
		Halen:    6,
	}
	copy(sa.Addr[:], frame[:6])
	return unix.Sendto(s.fd, pad(frame), 0, sa)
}

func (s *packetSocket) Recv(buf []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for {
		if s.isClosed() {
			return 0, ErrClosed
		}

		wait := pollInterval
		if timeout > 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return 0, ErrTimeout
			}
			if left < wait {
				wait = left
			}
		}

		ms := int(wait / time.Millisecond)
		if ms < 1 {
			ms = 1
		}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}

		rn, from, err := unix.Recvfrom(s.fd, buf, unix.MSG_DONTWAIT)
		if err == unix.EAGAIN || err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		// 忽略本机发出的回环帧
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}
		return rn, nil
	}
}

func (s *packetSocket) Addr() net.HardwareAddr {
	return s.mac
}

func (s *packetSocket) JoinMulticast(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return fmt.Errorf("rawsock: bad multicast address %s", mac)
	}
	mreq := &unix.PacketMreq{
		Ifindex: int32(s.ifindex),
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    6,
	}
	copy(mreq.Address[:], mac)
	return unix.SetsockoptPacketMreq(s.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq)
}

func (s *packetSocket) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	return unix.Close(s.fd)
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
