// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package avtp IEEE 1722 AVTP 公共头和 AAF 流格式的位域编解码。
package avtp

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
)

// 错误定义
var (
	ErrInvalidArgument = errors.New("avtp: invalid argument")
	ErrInvalidField    = errors.New("avtp: invalid field")
)

// 以太网相关常量
const (
	EtherType      = 0x22f0
	ETHHeaderLen   = 14
	ETHVlanHdrLen  = 18
	StreamHdrLen   = 24 // 流数据单元头长度(含 format_specific/packet_info)
	ControlHdrLen  = 12 // 控制数据单元公共头长度
	TimestampOff   = 12 // 流数据单元中 avtp_timestamp 的偏移
	maxFrameLength = 1522
)

// MaxFrameLength 最大以太网帧长度(含 VLAN)
const MaxFrameLength = maxFrameLength

// Subtype AVTP 子类型，包含 cd 位
type Subtype uint8

// 预定义子类型
const (
	Subtype61883IIDC   Subtype = 0x00
	SubtypeMMAStream   Subtype = 0x01
	SubtypeAAF         Subtype = 0x02
	SubtypeCVF         Subtype = 0x03
	SubtypeCRF         Subtype = 0x04
	SubtypeTSCF        Subtype = 0x05
	SubtypeSVF         Subtype = 0x06
	SubtypeRVF         Subtype = 0x07
	SubtypeAEFCont     Subtype = 0x6e
	SubtypeVSFStream   Subtype = 0x6f
	SubtypeEFStream    Subtype = 0x7f
	SubtypeNTSCF       Subtype = 0x82
	SubtypeESCF        Subtype = 0xec
	SubtypeEECF        Subtype = 0xed
	SubtypeAEFDiscrete Subtype = 0xee
	SubtypeADP         Subtype = 0xfa
	SubtypeAECP        Subtype = 0xfb
	SubtypeACMP        Subtype = 0xfc
	SubtypeMAAP        Subtype = 0xfe
	SubtypeEFControl   Subtype = 0xff
)

// IsControl cd 位是否置位
func (s Subtype) IsControl() bool { return s&0x80 != 0 }

func (s Subtype) String() string {
	switch s {
	case Subtype61883IIDC:
		return "61883/IIDC"
	case SubtypeMMAStream:
		return "MMA"
	case SubtypeAAF:
		return "AAF"
	case SubtypeCVF:
		return "CVF"
	case SubtypeCRF:
		return "CRF"
	case SubtypeTSCF:
		return "TSCF"
	case SubtypeSVF:
		return "SVF"
	case SubtypeRVF:
		return "RVF"
	case SubtypeADP:
		return "ADP"
	case SubtypeAECP:
		return "AECP"
	case SubtypeACMP:
		return "ACMP"
	case SubtypeMAAP:
		return "MAAP"
	}
	return fmt.Sprintf("0x%02x", uint8(s))
}

// AVDECC 组播地址
var (
	AdpMulticastAddr = net.HardwareAddr{0x91, 0xe0, 0xf0, 0x01, 0x00, 0x00}
)

// EUI64 8字节标识(entity_id、stream_id 等)
type EUI64 [8]byte

// EUI64FromUint64 由 uint64 构造
func EUI64FromUint64(v uint64) EUI64 {
	var id EUI64
	binary.BigEndian.PutUint64(id[:], v)
	return id
}

// StreamIDFrom 由 MAC 和 unique id 构造 stream_id
func StreamIDFrom(mac net.HardwareAddr, uid uint16) EUI64 {
	var id EUI64
	copy(id[:6], mac)
	binary.BigEndian.PutUint16(id[6:], uid)
	return id
}

// EntityIDFromMAC 按 EUI-48 到 EUI-64 的约定由 MAC 构造 entity_id
func EntityIDFromMAC(mac net.HardwareAddr, id uint16) EUI64 {
	var eid EUI64
	if len(mac) < 6 {
		return eid
	}
	copy(eid[:3], mac[:3])
	eid[3] = byte(id >> 8)
	eid[4] = byte(id)
	copy(eid[5:], mac[3:6])
	return eid
}

// ParseEUI64 解析 "00:11:22:33:44:55:66:77"、"0011:2233:4455:6677" 或 "0x0011223344556677" 格式
func ParseEUI64(s string) (EUI64, error) {
	var id EUI64
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.NewReplacer(":", "", "-", "").Replace(s)
	if len(s) != 16 {
		return id, fmt.Errorf("avtp: invalid eui64 %q", s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("avtp: invalid eui64 %q: %w", s, err)
	}
	return id, nil
}

// Uint64 转换成整数
func (id EUI64) Uint64() uint64 { return binary.BigEndian.Uint64(id[:]) }

// IsZero 是否为全零
func (id EUI64) IsZero() bool { return id == EUI64{} }

// MAC 取 stream_id 的 MAC 部分
func (id EUI64) MAC() net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	copy(mac, id[:6])
	return mac
}

// UniqueID 取 stream_id 的 unique id 部分
func (id EUI64) UniqueID() uint16 { return binary.BigEndian.Uint16(id[6:]) }

func (id EUI64) String() string {
	var sb strings.Builder
	for i, b := range id {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler
func (id EUI64) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *EUI64) UnmarshalText(text []byte) error {
	v, err := ParseEUI64(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
