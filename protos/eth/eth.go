// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package eth Ethernet II / 802.1Q 帧头编解码。
package eth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// 错误定义
var (
	ErrFrameTooShort = errors.New("eth: frame too short")
	ErrBadAddress    = errors.New("eth: bad hardware address")
)

// 帧头常量
const (
	HeaderLen     = 14
	VlanHeaderLen = 18
	TPIDVlan      = 0x8100
)

// Header 以太网帧头
type Header struct {
	Dst       net.HardwareAddr
	Src       net.HardwareAddr
	VLAN      bool
	VID       uint16
	PCP       uint8
	EtherType uint16
}

// Len 帧头长度
func (h *Header) Len() int {
	if h.VLAN {
		return VlanHeaderLen
	}
	return HeaderLen
}

// Encode 将帧头写入 buf，返回写入的字节数
func (h *Header) Encode(buf []byte) (int, error) {
	n := h.Len()
	if len(buf) < n {
		return 0, ErrFrameTooShort
	}
	if len(h.Dst) != 6 || len(h.Src) != 6 {
		return 0, ErrBadAddress
	}
	copy(buf[0:6], h.Dst)
	copy(buf[6:12], h.Src)
	if h.VLAN {
		binary.BigEndian.PutUint16(buf[12:], TPIDVlan)
		tci := uint16(h.PCP&0x07)<<13 | h.VID&0x0fff
		binary.BigEndian.PutUint16(buf[14:], tci)
		binary.BigEndian.PutUint16(buf[16:], h.EtherType)
	} else {
		binary.BigEndian.PutUint16(buf[12:], h.EtherType)
	}
	return n, nil
}

// Parse 解析帧头，返回负载的偏移
func Parse(buf []byte) (h Header, payloadOff int, err error) {
	if len(buf) < HeaderLen {
		return h, 0, ErrFrameTooShort
	}
	h.Dst = net.HardwareAddr(buf[0:6])
	h.Src = net.HardwareAddr(buf[6:12])
	h.EtherType = binary.BigEndian.Uint16(buf[12:14])
	payloadOff = HeaderLen
	if h.EtherType == TPIDVlan {
		if len(buf) < VlanHeaderLen {
			return h, 0, ErrFrameTooShort
		}
		tci := binary.BigEndian.Uint16(buf[14:16])
		h.VLAN = true
		h.VID = tci & 0x0fff
		h.PCP = uint8(tci >> 13)
		h.EtherType = binary.BigEndian.Uint16(buf[16:18])
		payloadOff = VlanHeaderLen
	}
	return h, payloadOff, nil
}

func (h Header) String() string {
	if h.VLAN {
		return fmt.Sprintf("%s > %s vlan %d pcp %d type 0x%04x", h.Src, h.Dst, h.VID, h.PCP, h.EtherType)
	}
	return fmt.Sprintf("%s > %s type 0x%04x", h.Src, h.Dst, h.EtherType)
}
