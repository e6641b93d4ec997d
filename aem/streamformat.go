// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cnotch/avbhub/protos/avtp"
)

// 流格式子类型(v=0)
const (
	FormatSubtype61883IIDC    = 0x00
	FormatSubtypeMMA          = 0x01
	FormatSubtypeAAF          = 0x02
	FormatSubtypeCVF          = 0x03
	FormatSubtypeControl      = 0x04
	FormatSubtypeVendor       = 0x6f
	FormatSubtypeExperimental = 0x7f
)

// IEC 61883 fmt 定义
const (
	Fmt61883_4 = 0x20
	Fmt61883_6 = 0x10
	Fmt61883_8 = 0x01
)

// IEC 61883-6 fdf_evt 定义
const (
	FdfEvtAM824  = 0x00
	FdfEvt32Bits = 0x04
	FdfEvtFloat  = 0x05
)

// FormatKind 流格式的具体布局
type FormatKind int

// 流格式布局
const (
	KindUnknown FormatKind = iota
	KindIEC61883_4
	KindIEC61883_6
	KindIEC61883_8
	KindIIDC
	KindMMA
	KindAAF
	KindCVF
	KindControl
	KindVendor
	KindExperimental
	KindVendorSpecific // v=1
)

var kindNames = [...]string{"unknown", "61883-4", "61883-6", "61883-8", "iidc",
	"mma", "aaf", "cvf", "control", "vendor", "experimental", "vendor-specific"}

func (k FormatKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// StreamFormat 8 字节流格式，按线上字节保存
type StreamFormat [8]byte

// V 格式的 v 位
func (f StreamFormat) V() bool { return f[0]&0x80 != 0 }

// Subtype 格式子类型(v=0 时有效)
func (f StreamFormat) Subtype() uint8 { return f[0] & 0x7f }

// IsZero 是否未设置
func (f StreamFormat) IsZero() bool { return f == StreamFormat{} }

// Kind 解析格式布局
func (f StreamFormat) Kind() FormatKind {
	if f.V() {
		return KindVendorSpecific
	}
	switch f.Subtype() {
	case FormatSubtype61883IIDC:
		if f[1]&0x80 != 0 {
			return KindIIDC
		}
		switch f[1] & 0x3f {
		case Fmt61883_4:
			return KindIEC61883_4
		case Fmt61883_6:
			return KindIEC61883_6
		case Fmt61883_8:
			return KindIEC61883_8
		}
	case FormatSubtypeMMA:
		return KindMMA
	case FormatSubtypeAAF:
		return KindAAF
	case FormatSubtypeCVF:
		return KindCVF
	case FormatSubtypeControl:
		return KindControl
	case FormatSubtypeVendor:
		return KindVendor
	case FormatSubtypeExperimental:
		return KindExperimental
	}
	return KindUnknown
}

func (f StreamFormat) String() string {
	return fmt.Sprintf("%s(%s)", f.Kind(), hex.EncodeToString(f[:]))
}

// MarshalText implements encoding.TextMarshaler
func (f StreamFormat) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(f[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *StreamFormat) UnmarshalText(text []byte) error {
	var v StreamFormat
	if hex.DecodedLen(len(text)) != len(v) {
		return fmt.Errorf("aem: stream format must be 16 hex digits")
	}
	if _, err := hex.Decode(v[:], text); err != nil {
		return err
	}
	*f = v
	return nil
}

// AAFFormat AVTP 音频格式视图
type AAFFormat struct {
	Nsr              avtp.Nsr
	Format           avtp.AAFFormat
	BitDepth         uint8
	ChannelsPerFrame uint16
	SamplesPerFrame  uint16
}

// StreamFormat 编码成流格式
func (a AAFFormat) StreamFormat() StreamFormat {
	var f StreamFormat
	f[0] = FormatSubtypeAAF
	f[1] = uint8(a.Nsr) & 0x0f
	f[2] = uint8(a.Format)
	f[3] = a.BitDepth
	v := uint32(a.ChannelsPerFrame&0x3ff)<<22 | uint32(a.SamplesPerFrame&0x3ff)<<12
	binary.BigEndian.PutUint32(f[4:], v)
	return f
}

// AAF 解析 AVTP 音频格式
func (f StreamFormat) AAF() (AAFFormat, bool) {
	if f.Kind() != KindAAF {
		return AAFFormat{}, false
	}
	v := binary.BigEndian.Uint32(f[4:])
	return AAFFormat{
		Nsr:              avtp.Nsr(f[1] & 0x0f),
		Format:           avtp.AAFFormat(f[2]),
		BitDepth:         f[3],
		ChannelsPerFrame: uint16(v>>22) & 0x3ff,
		SamplesPerFrame:  uint16(v>>12) & 0x3ff,
	}, true
}

// IEC61883Format IEC 61883-4/6/8 格式视图
type IEC61883Format struct {
	Fmt uint8
	// 61883-6
	FdfEvt        uint8
	FdfSfc        uint8
	DBS           uint8
	B             bool
	NB            bool
	LabelIEC60958 uint8
	LabelMBLA     uint8
	LabelMIDI     uint8
	LabelSMPTE    uint8
	// 61883-8
	VideoMode    uint8
	CompressMode uint8
	ColorSpace   uint8
}

// StreamFormat 编码成流格式，只写入 fmt 对应布局中存在的字段
func (x IEC61883Format) StreamFormat() StreamFormat {
	var f StreamFormat
	f[0] = FormatSubtype61883IIDC
	f[1] = x.Fmt & 0x3f
	switch x.Fmt {
	case Fmt61883_6:
		f[2] = (x.FdfEvt&0x1f)<<3 | x.FdfSfc&0x07
		f[3] = x.DBS
		if x.B {
			f[4] |= 0x80
		}
		if x.NB {
			f[4] |= 0x40
		}
		if x.FdfEvt == FdfEvtAM824 {
			f[5] = x.LabelIEC60958
			f[6] = x.LabelMBLA
			f[7] = (x.LabelMIDI&0x0f)<<4 | x.LabelSMPTE&0x0f
		}
	case Fmt61883_8:
		f[5] = x.VideoMode
		f[6] = x.CompressMode
		f[7] = x.ColorSpace
	}
	return f
}

// IEC61883 解析 IEC 61883 格式
func (f StreamFormat) IEC61883() (IEC61883Format, bool) {
	switch f.Kind() {
	case KindIEC61883_4, KindIEC61883_6, KindIEC61883_8:
	default:
		return IEC61883Format{}, false
	}
	x := IEC61883Format{Fmt: f[1] & 0x3f}
	switch x.Fmt {
	case Fmt61883_6:
		x.FdfEvt = f[2] >> 3
		x.FdfSfc = f[2] & 0x07
		x.DBS = f[3]
		x.B = f[4]&0x80 != 0
		x.NB = f[4]&0x40 != 0
		if x.FdfEvt == FdfEvtAM824 {
			x.LabelIEC60958 = f[5]
			x.LabelMBLA = f[6]
			x.LabelMIDI = f[7] >> 4
			x.LabelSMPTE = f[7] & 0x0f
		}
	case Fmt61883_8:
		x.VideoMode = f[5]
		x.CompressMode = f[6]
		x.ColorSpace = f[7]
	}
	return x, true
}

// IIDCFormat IIDC 格式视图
type IIDCFormat struct {
	Format uint8
	Mode   uint8
	Rate   uint8
}

// StreamFormat 编码成流格式
func (x IIDCFormat) StreamFormat() StreamFormat {
	return StreamFormat{FormatSubtype61883IIDC, 0x80, 0, 0, 0, x.Format, x.Mode, x.Rate}
}

// IIDC 解析 IIDC 格式
func (f StreamFormat) IIDC() (IIDCFormat, bool) {
	if f.Kind() != KindIIDC {
		return IIDCFormat{}, false
	}
	return IIDCFormat{Format: f[5], Mode: f[6], Rate: f[7]}, true
}

// CVFFormat AVTP 视频格式视图
type CVFFormat struct {
	Format uint8
}

// StreamFormat 编码成流格式
func (x CVFFormat) StreamFormat() StreamFormat {
	return StreamFormat{FormatSubtypeCVF, x.Format}
}

// CVF 解析 AVTP 视频格式
func (f StreamFormat) CVF() (CVFFormat, bool) {
	if f.Kind() != KindCVF {
		return CVFFormat{}, false
	}
	return CVFFormat{Format: f[1]}, true
}

// ControlFormat AVTP 控制格式视图
type ControlFormat struct {
	ProtocolType uint8
	FormatID     [6]byte
}

// StreamFormat 编码成流格式
func (x ControlFormat) StreamFormat() StreamFormat {
	f := StreamFormat{FormatSubtypeControl, (x.ProtocolType & 0x0f) << 4}
	copy(f[2:], x.FormatID[:])
	return f
}

// Control 解析 AVTP 控制格式
func (f StreamFormat) Control() (ControlFormat, bool) {
	if f.Kind() != KindControl {
		return ControlFormat{}, false
	}
	x := ControlFormat{ProtocolType: f[1] >> 4}
	copy(x.FormatID[:], f[2:])
	return x, true
}

// VendorFormat 厂商格式视图(subtype 0x6f)
type VendorFormat struct {
	FormatID [6]byte
}

// StreamFormat 编码成流格式
func (x VendorFormat) StreamFormat() StreamFormat {
	f := StreamFormat{FormatSubtypeVendor}
	copy(f[2:], x.FormatID[:])
	return f
}

// Vendor 解析厂商格式
func (f StreamFormat) Vendor() (VendorFormat, bool) {
	if f.Kind() != KindVendor {
		return VendorFormat{}, false
	}
	var x VendorFormat
	copy(x.FormatID[:], f[2:])
	return x, true
}
