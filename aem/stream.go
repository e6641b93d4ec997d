// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/utils/bits"
)

const (
	streamIOLen   = 132
	streamPortLen = 20
)

// stream_flags
const (
	StreamFlagClockSyncSource      = 0x0001
	StreamFlagClassA               = 0x0002
	StreamFlagClassB               = 0x0004
	StreamFlagSupportsEncrypted    = 0x0008
	StreamFlagPrimaryBackupSupport = 0x0010
	StreamFlagPrimaryBackupValid   = 0x0020
)

// BackupTalker 备份 talker 的实体和 unique id
type BackupTalker struct {
	EntityID avtp.EUI64 `json:"entity_id"`
	UniqueID uint16     `json:"unique_id"`
}

// StreamIO STREAM_INPUT / STREAM_OUTPUT 描述符
type StreamIO struct {
	Header
	Naming
	ClockDomainIndex  uint16          `json:"clock_domain_index"`
	StreamFlags       uint16          `json:"stream_flags"`
	CurrentFormat     StreamFormat    `json:"current_format"`
	BackupTalkers     [3]BackupTalker `json:"backup_talkers"`
	BackedupTalker    BackupTalker    `json:"backedup_talker"`
	AvbInterfaceIndex uint16          `json:"avb_interface_index"`
	BufferLength      uint32          `json:"buffer_length"`
	Formats           []StreamFormat  `json:"formats"`
}

// NewStreamInput 创建 STREAM_INPUT 描述符
func NewStreamInput() *StreamIO {
	return &StreamIO{
		Header: Header{Type: TypeStreamInput},
		Naming: Naming{Description: NoString},
	}
}

// NewStreamOutput 创建 STREAM_OUTPUT 描述符
func NewStreamOutput() *StreamIO {
	return &StreamIO{
		Header: Header{Type: TypeStreamOutput},
		Naming: Naming{Description: NoString},
	}
}

// IsInput 是否为输入流
func (d *StreamIO) IsInput() bool { return d.Type == TypeStreamInput }

// SupportsFormat format 是否在支持列表中
func (d *StreamIO) SupportsFormat(format StreamFormat) bool {
	for _, f := range d.Formats {
		if f == format {
			return true
		}
	}
	return false
}

func encodeStreamIO(w *bits.Writer, d *StreamIO) {
	writeNaming(w, &d.Naming)
	w.Uint16(d.ClockDomainIndex)
	w.Uint16(d.StreamFlags)
	w.Write(d.CurrentFormat[:])
	w.Uint16(streamIOLen)
	w.Uint16(uint16(len(d.Formats)))
	for i := range d.BackupTalkers {
		w.Write(d.BackupTalkers[i].EntityID[:])
		w.Uint16(d.BackupTalkers[i].UniqueID)
	}
	w.Write(d.BackedupTalker.EntityID[:])
	w.Uint16(d.BackedupTalker.UniqueID)
	w.Uint16(d.AvbInterfaceIndex)
	w.Uint32(d.BufferLength)
	for i := range d.Formats {
		w.Write(d.Formats[i][:])
	}
}

func decodeStreamIO(r *bits.Reader, d *StreamIO) error {
	if err := need(r, streamIOLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	d.ClockDomainIndex = r.Uint16()
	d.StreamFlags = r.Uint16()
	r.Bytes(d.CurrentFormat[:])
	r.Uint16() // formats_offset
	n := int(r.Uint16())
	for i := range d.BackupTalkers {
		r.Bytes(d.BackupTalkers[i].EntityID[:])
		d.BackupTalkers[i].UniqueID = r.Uint16()
	}
	r.Bytes(d.BackedupTalker.EntityID[:])
	d.BackedupTalker.UniqueID = r.Uint16()
	d.AvbInterfaceIndex = r.Uint16()
	d.BufferLength = r.Uint32()

	if err := need(r, streamIOLen, n, 8); err != nil {
		return err
	}
	d.Formats = nil
	if n > 0 {
		d.Formats = make([]StreamFormat, n)
	}
	for i := range d.Formats {
		r.Bytes(d.Formats[i][:])
	}
	return nil
}

// 运行中的流以实际使用的格式为准
func updateStreamIO(d *StreamIO, live Live) error {
	st, err := live.StreamState(d.Type, d.Index)
	if err == ErrNotAvailable {
		return nil
	}
	if err != nil {
		return err
	}
	if st.Running && !st.Format.IsZero() {
		d.CurrentFormat = st.Format
	}
	return nil
}

// StreamPort STREAM_PORT_INPUT / STREAM_PORT_OUTPUT 描述符
type StreamPort struct {
	Header
	ClockDomainIndex uint16 `json:"clock_domain_index"`
	PortFlags        uint16 `json:"port_flags"`
	NumberOfControls uint16 `json:"number_of_controls"`
	BaseControl      uint16 `json:"base_control"`
	NumberOfClusters uint16 `json:"number_of_clusters"`
	BaseCluster      uint16 `json:"base_cluster"`
	NumberOfMaps     uint16 `json:"number_of_maps"`
	BaseMap          uint16 `json:"base_map"`
}

// NewStreamPortInput 创建 STREAM_PORT_INPUT 描述符
func NewStreamPortInput() *StreamPort {
	return &StreamPort{Header: Header{Type: TypeStreamPortInput}}
}

// NewStreamPortOutput 创建 STREAM_PORT_OUTPUT 描述符
func NewStreamPortOutput() *StreamPort {
	return &StreamPort{Header: Header{Type: TypeStreamPortOutput}}
}

func encodeStreamPort(w *bits.Writer, d *StreamPort) {
	w.Uint16(d.ClockDomainIndex)
	w.Uint16(d.PortFlags)
	w.Uint16(d.NumberOfControls)
	w.Uint16(d.BaseControl)
	w.Uint16(d.NumberOfClusters)
	w.Uint16(d.BaseCluster)
	w.Uint16(d.NumberOfMaps)
	w.Uint16(d.BaseMap)
}

func decodeStreamPort(r *bits.Reader, d *StreamPort) error {
	if err := need(r, streamPortLen, 0, 0); err != nil {
		return err
	}
	d.ClockDomainIndex = r.Uint16()
	d.PortFlags = r.Uint16()
	d.NumberOfControls = r.Uint16()
	d.BaseControl = r.Uint16()
	d.NumberOfClusters = r.Uint16()
	d.BaseCluster = r.Uint16()
	d.NumberOfMaps = r.Uint16()
	d.BaseMap = r.Uint16()
	return nil
}
