// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aecp

import (
	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/utils/bits"
)

// Payload AEM 命令载荷，集合封闭
type Payload interface {
	encode(w *bits.Writer, full bool)
	decode(r *bits.Reader, full bool, kinds ValueKindFunc) error
}

// Addressed 指向某个描述符的载荷
type Addressed interface {
	Target() (aem.DescriptorType, uint16)
}

// Address 描述符地址
type Address struct {
	DescriptorType  aem.DescriptorType `json:"descriptor_type"`
	DescriptorIndex uint16             `json:"descriptor_index"`
}

// Target 返回描述符类型和索引
func (a *Address) Target() (aem.DescriptorType, uint16) {
	return a.DescriptorType, a.DescriptorIndex
}

func (a *Address) write(w *bits.Writer) {
	w.Uint16(uint16(a.DescriptorType))
	w.Uint16(a.DescriptorIndex)
}

func (a *Address) read(r *bits.Reader) {
	a.DescriptorType = aem.DescriptorType(r.Uint16())
	a.DescriptorIndex = r.Uint16()
}

// ACQUIRE_ENTITY / LOCK_ENTITY 标志
const (
	AcquirePersistent uint32 = 0x00000001
	AcquireRelease    uint32 = 0x80000000
	LockUnlock        uint32 = 0x00000001
)

// AcquireEntity ACQUIRE_ENTITY 载荷
type AcquireEntity struct {
	Flags   uint32     `json:"flags"`
	OwnerID avtp.EUI64 `json:"owner_id"`
	Address
}

func (p *AcquireEntity) encode(w *bits.Writer, full bool) {
	w.Uint32(p.Flags)
	w.Write(p.OwnerID[:])
	p.Address.write(w)
}

func (p *AcquireEntity) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Flags = r.Uint32()
	r.Bytes(p.OwnerID[:])
	p.Address.read(r)
	return r.Err()
}

// LockEntity LOCK_ENTITY 载荷，布局同 ACQUIRE_ENTITY
type LockEntity struct {
	Flags    uint32     `json:"flags"`
	LockedID avtp.EUI64 `json:"locked_id"`
	Address
}

func (p *LockEntity) encode(w *bits.Writer, full bool) {
	w.Uint32(p.Flags)
	w.Write(p.LockedID[:])
	p.Address.write(w)
}

func (p *LockEntity) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Flags = r.Uint32()
	r.Bytes(p.LockedID[:])
	p.Address.read(r)
	return r.Err()
}

// ReadDescriptor READ_DESCRIPTOR 载荷。
// 成功的响应在 Data 中携带序列化的描述符(以类型和索引开头)。
type ReadDescriptor struct {
	ConfigurationIndex uint16 `json:"configuration_index"`
	Address
	Data []byte `json:"data,omitempty"`
}

func (p *ReadDescriptor) encode(w *bits.Writer, full bool) {
	w.Uint16(p.ConfigurationIndex)
	w.Skip(2)
	if len(p.Data) > 0 {
		w.Write(p.Data)
		return
	}
	p.Address.write(w)
}

func (p *ReadDescriptor) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.ConfigurationIndex = r.Uint16()
	r.Skip(2)
	p.Data = nil
	if r.Len() > 4 {
		p.DescriptorType = aem.DescriptorType(r.Masked16(0xffff, 0))
		p.Data = make([]byte, r.Len())
		r.Bytes(p.Data)
		p.DescriptorIndex = uint16(p.Data[2])<<8 | uint16(p.Data[3])
		return r.Err()
	}
	p.Address.read(r)
	return r.Err()
}

// Configuration SET/GET_CONFIGURATION 载荷
type Configuration struct {
	ConfigurationIndex uint16 `json:"configuration_index"`
}

func (p *Configuration) encode(w *bits.Writer, full bool) {
	if !full {
		return
	}
	w.Skip(2)
	w.Uint16(p.ConfigurationIndex)
}

func (p *Configuration) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	if !full {
		return nil
	}
	r.Skip(2)
	p.ConfigurationIndex = r.Uint16()
	return r.Err()
}

// StreamFormat SET/GET_STREAM_FORMAT 载荷
type StreamFormat struct {
	Address
	Format aem.StreamFormat `json:"stream_format"`
}

func (p *StreamFormat) encode(w *bits.Writer, full bool) {
	p.Address.write(w)
	if full {
		w.Write(p.Format[:])
	}
}

func (p *StreamFormat) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Address.read(r)
	if full {
		r.Bytes(p.Format[:])
	}
	return r.Err()
}

// STREAM_INFO 标志
const (
	StreamInfoClassB            uint32 = 0x00000001
	StreamInfoFastConnect       uint32 = 0x00000002
	StreamInfoSavedState        uint32 = 0x00000004
	StreamInfoStreamingWait     uint32 = 0x00000008
	StreamInfoEncryptedPDU      uint32 = 0x00000010
	StreamInfoVlanIDValid       uint32 = 0x02000000
	StreamInfoConnected         uint32 = 0x04000000
	StreamInfoMsrpFailureValid  uint32 = 0x08000000
	StreamInfoDestMacValid      uint32 = 0x10000000
	StreamInfoMsrpAccLatValid   uint32 = 0x20000000
	StreamInfoStreamIDValid     uint32 = 0x40000000
	StreamInfoStreamFormatValid uint32 = 0x80000000
)

// StreamInfo SET/GET_STREAM_INFO 载荷
type StreamInfo struct {
	Address
	Flags                  uint32           `json:"flags"`
	Format                 aem.StreamFormat `json:"stream_format"`
	StreamID               avtp.EUI64       `json:"stream_id"`
	MsrpAccumulatedLatency uint32           `json:"msrp_accumulated_latency"`
	DestMAC                [6]byte          `json:"stream_dest_mac"`
	MsrpFailureCode        uint8            `json:"msrp_failure_code"`
	MsrpFailureBridgeID    avtp.EUI64       `json:"msrp_failure_bridge_id"`
	VlanID                 uint16           `json:"stream_vlan_id"`
}

func (p *StreamInfo) encode(w *bits.Writer, full bool) {
	p.Address.write(w)
	if !full {
		return
	}
	w.Uint32(p.Flags)
	w.Write(p.Format[:])
	w.Write(p.StreamID[:])
	w.Uint32(p.MsrpAccumulatedLatency)
	w.Write(p.DestMAC[:])
	w.Uint8(p.MsrpFailureCode)
	w.Skip(1)
	w.Write(p.MsrpFailureBridgeID[:])
	w.Uint16(p.VlanID)
	w.Skip(2)
}

func (p *StreamInfo) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Address.read(r)
	if !full {
		return r.Err()
	}
	p.Flags = r.Uint32()
	r.Bytes(p.Format[:])
	r.Bytes(p.StreamID[:])
	p.MsrpAccumulatedLatency = r.Uint32()
	r.Bytes(p.DestMAC[:])
	p.MsrpFailureCode = r.Uint8()
	r.Skip(1)
	r.Bytes(p.MsrpFailureBridgeID[:])
	p.VlanID = r.Uint16()
	r.Skip(2)
	return r.Err()
}

// Name SET/GET_NAME 载荷
type Name struct {
	Address
	NameIndex          uint16       `json:"name_index"`
	ConfigurationIndex uint16       `json:"configuration_index"`
	Name               aem.String64 `json:"name"`
}

func (p *Name) encode(w *bits.Writer, full bool) {
	p.Address.write(w)
	w.Uint16(p.NameIndex)
	w.Uint16(p.ConfigurationIndex)
	if full {
		w.Write(p.Name[:])
	}
}

func (p *Name) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Address.read(r)
	p.NameIndex = r.Uint16()
	p.ConfigurationIndex = r.Uint16()
	if full {
		r.Bytes(p.Name[:])
	}
	return r.Err()
}

// SamplingRate SET/GET_SAMPLING_RATE 载荷
type SamplingRate struct {
	Address
	Rate aem.SamplingRate `json:"sampling_rate"`
}

func (p *SamplingRate) encode(w *bits.Writer, full bool) {
	p.Address.write(w)
	if full {
		w.Uint32(uint32(p.Rate))
	}
}

func (p *SamplingRate) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Address.read(r)
	if full {
		p.Rate = aem.SamplingRate(r.Uint32())
	}
	return r.Err()
}

// ClockSource SET/GET_CLOCK_SOURCE 载荷
type ClockSource struct {
	Address
	ClockSourceIndex uint16 `json:"clock_source_index"`
}

func (p *ClockSource) encode(w *bits.Writer, full bool) {
	p.Address.write(w)
	if full {
		w.Uint16(p.ClockSourceIndex)
		w.Skip(2)
	}
}

func (p *ClockSource) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Address.read(r)
	if full {
		p.ClockSourceIndex = r.Uint16()
		r.Skip(2)
	}
	return r.Err()
}

// Control SET/GET_CONTROL 载荷。
// 值的宽度由 CONTROL 描述符的值种类决定；非线性种类不解析。
type Control struct {
	Address
	Kind   aem.ValueKind `json:"value_kind"`
	Values []uint64      `json:"values,omitempty"`
}

func (p *Control) encode(w *bits.Writer, full bool) {
	p.Address.write(w)
	if !full {
		return
	}
	width := p.Kind.Width()
	if width == 0 {
		return
	}
	for _, v := range p.Values {
		aem.WriteValue(w, width, v)
	}
}

func (p *Control) decode(r *bits.Reader, full bool, kinds ValueKindFunc) error {
	p.Address.read(r)
	p.Values = nil
	if !full || r.Err() != nil {
		return r.Err()
	}
	if p.DescriptorType != aem.TypeControl || kinds == nil {
		return nil
	}
	kind, ok := kinds(p.DescriptorIndex)
	if !ok {
		return nil
	}
	p.Kind = kind
	width := kind.Width()
	if width == 0 {
		return nil
	}
	for r.Len() >= width {
		p.Values = append(p.Values, aem.ReadValue(r, width))
	}
	return r.Err()
}

// Streaming START/STOP_STREAMING 载荷
type Streaming struct {
	Address
}

func (p *Streaming) encode(w *bits.Writer, full bool) { p.Address.write(w) }

func (p *Streaming) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Address.read(r)
	return r.Err()
}

// 计数器在 counters_block 中的位置，对应 counters_valid 的位 1<<i
const (
	// AVB_INTERFACE
	CounterLinkUp        = 0
	CounterLinkDown      = 1
	CounterFramesTx      = 2
	CounterFramesRx      = 3
	CounterRxCrcError    = 4
	CounterGptpGmChanged = 5

	// CLOCK_DOMAIN
	CounterLocked   = 0
	CounterUnlocked = 1

	// STREAM_INPUT
	CounterMediaLocked        = 0
	CounterMediaUnlocked      = 1
	CounterStreamReset        = 2
	CounterSeqNumMismatch     = 3
	CounterMediaReset         = 4
	CounterTimestampUncertain = 5
	CounterTimestampValid     = 6
	CounterTimestampNotValid  = 7
	CounterUnsupportedFormat  = 8
	CounterLateTimestamp      = 9
	CounterEarlyTimestamp     = 10
	CounterStreamFramesRx     = 11
	CounterStreamFramesTx     = 12

	// ENTITY_SPECIFIC_1 … ENTITY_SPECIFIC_8
	CounterEntitySpecific1 = 31
	CounterEntitySpecific8 = 24
)

// CounterCount counters_block 中的计数器个数
const CounterCount = 32

// Counters GET_COUNTERS 载荷
type Counters struct {
	Address
	Valid uint32               `json:"counters_valid"`
	Block [CounterCount]uint32 `json:"counters_block"`
}

// Set 设置计数器 i 并标记有效
func (p *Counters) Set(i int, v uint32) {
	if i < 0 || i >= CounterCount {
		return
	}
	p.Block[i] = v
	p.Valid |= 1 << uint(i)
}

// Get 返回计数器 i，未标记有效时 ok 为 false
func (p *Counters) Get(i int) (v uint32, ok bool) {
	if i < 0 || i >= CounterCount || p.Valid&(1<<uint(i)) == 0 {
		return 0, false
	}
	return p.Block[i], true
}

func (p *Counters) encode(w *bits.Writer, full bool) {
	p.Address.write(w)
	if !full {
		return
	}
	w.Uint32(p.Valid)
	for _, v := range p.Block {
		w.Uint32(v)
	}
}

func (p *Counters) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Address.read(r)
	if !full {
		return r.Err()
	}
	p.Valid = r.Uint32()
	for i := range p.Block {
		p.Block[i] = r.Uint32()
	}
	return r.Err()
}

// Empty 无载荷的命令
type Empty struct{}

func (*Empty) encode(w *bits.Writer, full bool) {}

func (*Empty) decode(r *bits.Reader, full bool, _ ValueKindFunc) error { return nil }

// Raw 未解析的命令载荷
type Raw struct {
	Data []byte `json:"data,omitempty"`
}

func (p *Raw) encode(w *bits.Writer, full bool) { w.Write(p.Data) }

func (p *Raw) decode(r *bits.Reader, full bool, _ ValueKindFunc) error {
	p.Data = nil
	if n := r.Len(); n > 0 {
		p.Data = make([]byte, n)
		r.Bytes(p.Data)
	}
	return r.Err()
}

func newPayload(ct CommandType) Payload {
	switch ct {
	case CmdAcquireEntity:
		return new(AcquireEntity)
	case CmdLockEntity:
		return new(LockEntity)
	case CmdReadDescriptor:
		return new(ReadDescriptor)
	case CmdSetConfiguration, CmdGetConfiguration:
		return new(Configuration)
	case CmdSetStreamFormat, CmdGetStreamFormat:
		return new(StreamFormat)
	case CmdSetStreamInfo, CmdGetStreamInfo:
		return new(StreamInfo)
	case CmdSetName, CmdGetName:
		return new(Name)
	case CmdSetSamplingRate, CmdGetSamplingRate:
		return new(SamplingRate)
	case CmdSetClockSource, CmdGetClockSource:
		return new(ClockSource)
	case CmdSetControl, CmdGetControl:
		return new(Control)
	case CmdStartStreaming, CmdStopStreaming:
		return new(Streaming)
	case CmdGetCounters:
		return new(Counters)
	case CmdEntityAvailable, CmdControllerAvailable,
		CmdRegisterUnsolicitedNotification, CmdDeregisterUnsolicitedNotification:
		return new(Empty)
	}
	return new(Raw)
}
