// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package aecp IEEE 1722.1 枚举与控制协议(AECP)的 AEM 命令/响应编解码。
package aecp

import (
	"errors"
	"fmt"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/utils/bits"
)

// 错误定义
var (
	ErrBufferTooSmall = bits.ErrBufferTooSmall
	ErrNotAECP        = errors.New("aecp: not an AECP pdu")
	ErrNotAEM         = errors.New("aecp: not an AEM message")
	ErrBadLength      = errors.New("aecp: bad control_data_length")
)

// 长度定义
const (
	HeaderLen = avtp.ControlHdrLen + 12 // 公共头 + controller_entity_id/sequence_id/command_type
	// MaxControlDataLength AEM 命令的最大 control_data_length
	MaxControlDataLength = 524
	// MinFrameLen 发送帧的最小长度(不含 FCS)
	MinFrameLen = 60
)

// MessageType AECP 消息类型
type MessageType uint8

// AECP 消息类型
const (
	AEMCommand           MessageType = 0
	AEMResponse          MessageType = 1
	AddressAccessCommand MessageType = 2
	AddressAccessResp    MessageType = 3
	AVCCommand           MessageType = 4
	AVCResponse          MessageType = 5
	VendorUniqueCommand  MessageType = 6
	VendorUniqueResponse MessageType = 7
	HDCPAPMCommand       MessageType = 8
	HDCPAPMResponse      MessageType = 9
	ExtendedCommand      MessageType = 14
	ExtendedResponse     MessageType = 15
)

// IsResponse 是否为响应消息
func (t MessageType) IsResponse() bool { return t&1 == 1 }

// Status 响应状态
type Status uint8

// AEM 响应状态
const (
	StatusSuccess                Status = 0
	StatusNotImplemented         Status = 1
	StatusNoSuchDescriptor       Status = 2
	StatusEntityLocked           Status = 3
	StatusEntityAcquired         Status = 4
	StatusNotAuthenticated       Status = 5
	StatusAuthenticationDisabled Status = 6
	StatusBadArguments           Status = 7
	StatusNoResources            Status = 8
	StatusInProgress             Status = 9
	StatusEntityMisbehaving      Status = 10
	StatusNotSupported           Status = 11
	StatusStreamIsRunning        Status = 12
)

var statusNames = [...]string{
	"SUCCESS", "NOT_IMPLEMENTED", "NO_SUCH_DESCRIPTOR", "ENTITY_LOCKED",
	"ENTITY_ACQUIRED", "NOT_AUTHENTICATED", "AUTHENTICATION_DISABLED",
	"BAD_ARGUMENTS", "NO_RESOURCES", "IN_PROGRESS", "ENTITY_MISBEHAVING",
	"NOT_SUPPORTED", "STREAM_IS_RUNNING",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("STATUS_%d", uint8(s))
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PDU AEM 命令或响应
type PDU struct {
	MessageType        MessageType `json:"message_type"`
	Status             Status      `json:"status"`
	TargetEntityID     avtp.EUI64  `json:"target_entity_id"`
	ControllerEntityID avtp.EUI64  `json:"controller_entity_id"`
	SequenceID         uint16      `json:"sequence_id"`
	Unsolicited        bool        `json:"u"`
	CommandType        CommandType `json:"command_type"`
	Payload            Payload     `json:"payload,omitempty"`
}

// full 载荷是否为完整布局；GET 类命令只带描述符地址
func (p *PDU) full() bool {
	return p.MessageType.IsResponse() || !p.CommandType.isGet()
}

// Marshal 将 PDU 写入 buf，control_data_length 按实际载荷计算
func (p *PDU) Marshal(buf []byte) (int, error) {
	w := bits.NewWriter(buf)
	w.Uint8(uint8(avtp.SubtypeAECP))
	w.Uint8(uint8(p.MessageType) & 0x0f)
	w.Uint16(uint16(p.Status&0x1f) << 11) // control_data_length 稍后回填
	w.Write(p.TargetEntityID[:])
	w.Write(p.ControllerEntityID[:])
	w.Uint16(p.SequenceID)
	ct := uint16(p.CommandType) & 0x7fff
	if p.Unsolicited {
		ct |= 0x8000
	}
	w.Uint16(ct)
	if p.Payload != nil {
		p.Payload.encode(w, p.full())
	}
	if w.Err() != nil {
		return 0, w.Err()
	}

	n := w.Len()
	cdl := n - avtp.ControlHdrLen
	if cdl > MaxControlDataLength {
		return 0, ErrBadLength
	}
	bits.NewWriter(buf[2:4]).Masked16(uint16(cdl), 0x07ff, 0)
	return n, nil
}

// ValueKindFunc 查找 CONTROL 描述符的值种类，用于解析 SET_CONTROL 的值
type ValueKindFunc func(index uint16) (kind aem.ValueKind, ok bool)

// Unmarshal 从 buf 解析 AEM 命令或响应，buf 从 AVTP 子类型字节开始。
// 非 AEM 的 AECP 消息返回 ErrNotAEM，此时公共字段已解析。
func (p *PDU) Unmarshal(buf []byte, kinds ValueKindFunc) error {
	if len(buf) < avtp.ControlHdrLen+10 {
		return ErrBufferTooSmall
	}
	r := bits.NewReader(buf)
	if avtp.Subtype(r.Uint8()) != avtp.SubtypeAECP {
		return ErrNotAECP
	}
	p.MessageType = MessageType(r.Masked8(0x0f, 0))
	r.Skip(1)
	p.Status = Status(r.Masked16(0x1f, 11))
	cdl := int(r.Masked16(0x07ff, 0))
	r.Skip(2)
	if avtp.ControlHdrLen+cdl > len(buf) {
		return ErrBadLength
	}
	r.Bytes(p.TargetEntityID[:])
	r.Bytes(p.ControllerEntityID[:])
	p.SequenceID = r.Uint16()

	if p.MessageType != AEMCommand && p.MessageType != AEMResponse {
		return ErrNotAEM
	}
	if cdl < HeaderLen-avtp.ControlHdrLen {
		return ErrBadLength
	}

	// 以太网帧可能有填充，只解析 control_data_length 覆盖的部分
	r = bits.NewReader(buf[avtp.ControlHdrLen+10 : avtp.ControlHdrLen+cdl])
	ct := r.Uint16()
	p.Unsolicited = ct&0x8000 != 0
	p.CommandType = CommandType(ct & 0x7fff)
	p.Payload = newPayload(p.CommandType)
	if err := p.Payload.decode(r, p.full(), kinds); err != nil {
		return err
	}
	return r.Err()
}

// Response 由命令构造响应，载荷共享
func (p *PDU) Response(status Status) *PDU {
	rsp := *p
	rsp.MessageType = AEMResponse
	rsp.Status = status
	return &rsp
}

// ParseCommand 解析收到的 AEM 命令帧
func ParseCommand(frame []byte, kinds ValueKindFunc) (*PDU, error) {
	p := new(PDU)
	if err := p.Unmarshal(frame, kinds); err != nil {
		return p, err
	}
	return p, nil
}

func (p *PDU) String() string {
	kind := "command"
	if p.MessageType.IsResponse() {
		kind = "response"
	}
	return fmt.Sprintf("%s %s seq=%d controller=%s status=%s",
		p.CommandType, kind, p.SequenceID, p.ControllerEntityID, p.Status)
}
