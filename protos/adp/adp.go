// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adp IEEE 1722.1 发现协议(ADP)数据单元编解码。
package adp

import (
	"errors"
	"fmt"

	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/utils/bits"
)

// 错误定义
var (
	ErrBufferTooSmall = bits.ErrBufferTooSmall
	ErrNotADP         = errors.New("adp: not an ADP pdu")
	ErrBadLength      = errors.New("adp: bad control_data_length")
)

// ADPDU 长度
const (
	ControlDataLength = 56
	PDULen            = avtp.ControlHdrLen + ControlDataLength
)

// MessageType ADP 消息类型
type MessageType uint8

// ADP 消息类型
const (
	EntityAvailable MessageType = 0
	EntityDeparting MessageType = 1
	EntityDiscover  MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case EntityAvailable:
		return "ENTITY_AVAILABLE"
	case EntityDeparting:
		return "ENTITY_DEPARTING"
	case EntityDiscover:
		return "ENTITY_DISCOVER"
	}
	return fmt.Sprintf("ADP_MESSAGE_%d", uint8(t))
}

// ValidTimeMax valid_time 字段的最大值(2 秒为单位)
const ValidTimeMax = 31

// PDU ADP 数据单元
type PDU struct {
	MessageType            MessageType `json:"message_type"`
	ValidTime              uint8       `json:"valid_time"` // 2 秒为单位
	EntityID               avtp.EUI64  `json:"entity_id"`
	EntityModelID          avtp.EUI64  `json:"entity_model_id"`
	EntityCapabilities     uint32      `json:"entity_capabilities"`
	TalkerStreamSources    uint16      `json:"talker_stream_sources"`
	TalkerCapabilities     uint16      `json:"talker_capabilities"`
	ListenerStreamSinks    uint16      `json:"listener_stream_sinks"`
	ListenerCapabilities   uint16      `json:"listener_capabilities"`
	ControllerCapabilities uint32      `json:"controller_capabilities"`
	AvailableIndex         uint32      `json:"available_index"`
	GptpGrandmasterID      avtp.EUI64  `json:"gptp_grandmaster_id"`
	GptpDomainNumber       uint8       `json:"gptp_domain_number"`
	IdentifyControlIndex   uint16      `json:"identify_control_index"`
	InterfaceIndex         uint16      `json:"interface_index"`
	AssociationID          avtp.EUI64  `json:"association_id"`
}

// Marshal 将 PDU 写入 buf，返回写入的字节数
func (p *PDU) Marshal(buf []byte) (int, error) {
	if len(buf) < PDULen {
		return 0, ErrBufferTooSmall
	}
	w := bits.NewWriter(buf[:PDULen])
	w.Uint8(uint8(avtp.SubtypeADP))
	w.Uint8(uint8(p.MessageType) & 0x0f) // sv=0 version=0
	w.Uint16(uint16(p.ValidTime&0x1f)<<11 | ControlDataLength)
	w.Write(p.EntityID[:])
	w.Write(p.EntityModelID[:])
	w.Uint32(p.EntityCapabilities)
	w.Uint16(p.TalkerStreamSources)
	w.Uint16(p.TalkerCapabilities)
	w.Uint16(p.ListenerStreamSinks)
	w.Uint16(p.ListenerCapabilities)
	w.Uint32(p.ControllerCapabilities)
	w.Uint32(p.AvailableIndex)
	w.Write(p.GptpGrandmasterID[:])
	w.Uint8(p.GptpDomainNumber)
	w.Skip(3)
	w.Uint16(p.IdentifyControlIndex)
	w.Uint16(p.InterfaceIndex)
	w.Write(p.AssociationID[:])
	w.Skip(4)
	return w.Len(), w.Err()
}

// Unmarshal 从 buf 解析 PDU，buf 从 AVTP 子类型字节开始
func (p *PDU) Unmarshal(buf []byte) error {
	if len(buf) < PDULen {
		return ErrBufferTooSmall
	}
	r := bits.NewReader(buf)
	if avtp.Subtype(r.Uint8()) != avtp.SubtypeADP {
		return ErrNotADP
	}
	p.MessageType = MessageType(r.Masked8(0x0f, 0))
	r.Skip(1)
	p.ValidTime = uint8(r.Masked16(0x1f, 11))
	if r.Masked16(0x07ff, 0) != ControlDataLength {
		return ErrBadLength
	}
	r.Skip(2)
	r.Bytes(p.EntityID[:])
	r.Bytes(p.EntityModelID[:])
	p.EntityCapabilities = r.Uint32()
	p.TalkerStreamSources = r.Uint16()
	p.TalkerCapabilities = r.Uint16()
	p.ListenerStreamSinks = r.Uint16()
	p.ListenerCapabilities = r.Uint16()
	p.ControllerCapabilities = r.Uint32()
	p.AvailableIndex = r.Uint32()
	r.Bytes(p.GptpGrandmasterID[:])
	p.GptpDomainNumber = r.Uint8()
	r.Skip(3)
	p.IdentifyControlIndex = r.Uint16()
	p.InterfaceIndex = r.Uint16()
	r.Bytes(p.AssociationID[:])
	r.Skip(4)
	return r.Err()
}

func (p *PDU) String() string {
	return fmt.Sprintf("%s entity=%s index=%d valid=%ds gm=%s",
		p.MessageType, p.EntityID, p.AvailableIndex, int(p.ValidTime)*2, p.GptpGrandmasterID)
}
