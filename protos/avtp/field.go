// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package avtp

import (
	"encoding/binary"
)

// Field 流数据单元头字段
type Field int

// 流数据单元公共字段 + AAF 专用字段
const (
	FieldSubtype Field = iota
	FieldSV
	FieldVersion
	FieldMR
	FieldTV
	FieldSeqNum
	FieldTU
	FieldStreamID
	FieldTimestamp
	FieldAAFFormat
	FieldAAFNsr
	FieldAAFChanPerFrame
	FieldAAFBitDepth
	FieldStreamDataLen
	FieldAAFSP
	FieldAAFEvt
	fieldMax
)

// fieldDesc 字段位于 offset 处的 32 位大端字中，占 width 位，右移 shift 位
type fieldDesc struct {
	offset int
	shift  uint
	width  uint
}

var fieldTable = [fieldMax]fieldDesc{
	FieldSubtype:         {0, 24, 8},
	FieldSV:              {0, 23, 1},
	FieldVersion:         {0, 20, 3},
	FieldMR:              {0, 19, 1},
	FieldTV:              {0, 16, 1},
	FieldSeqNum:          {0, 8, 8},
	FieldTU:              {0, 0, 1},
	FieldStreamID:        {4, 0, 64},
	FieldTimestamp:       {12, 0, 32},
	FieldAAFFormat:       {16, 24, 8},
	FieldAAFNsr:          {16, 20, 4},
	FieldAAFChanPerFrame: {16, 8, 10},
	FieldAAFBitDepth:     {16, 0, 8},
	FieldStreamDataLen:   {20, 16, 16},
	FieldAAFSP:           {20, 12, 1},
	FieldAAFEvt:          {20, 8, 4},
}

func lookup(pdu []byte, f Field) (fieldDesc, error) {
	if f < 0 || f >= fieldMax {
		return fieldDesc{}, ErrInvalidField
	}
	d := fieldTable[f]
	if d.width == 64 {
		if len(pdu) < d.offset+8 {
			return d, ErrInvalidArgument
		}
	} else if len(pdu) < d.offset+4 {
		return d, ErrInvalidArgument
	}
	return d, nil
}

// GetField 读取字段值
func GetField(pdu []byte, f Field) (uint64, error) {
	d, err := lookup(pdu, f)
	if err != nil {
		return 0, err
	}
	if d.width == 64 {
		return binary.BigEndian.Uint64(pdu[d.offset:]), nil
	}
	mask := uint32(1)<<d.width - 1
	if d.width == 32 {
		mask = 0xffffffff
	}
	word := binary.BigEndian.Uint32(pdu[d.offset:])
	return uint64((word >> d.shift) & mask), nil
}

// SetField 读-改-写字段所在的字，不影响同一字中的其他字段
func SetField(pdu []byte, f Field, v uint64) error {
	d, err := lookup(pdu, f)
	if err != nil {
		return err
	}
	if d.width == 64 {
		binary.BigEndian.PutUint64(pdu[d.offset:], v)
		return nil
	}
	mask := uint32(1)<<d.width - 1
	if d.width == 32 {
		mask = 0xffffffff
	}
	word := binary.BigEndian.Uint32(pdu[d.offset:])
	word = (word &^ (mask << d.shift)) | (uint32(v)&mask)<<d.shift
	binary.BigEndian.PutUint32(pdu[d.offset:], word)
	return nil
}

// AAFFormat AAF 采样格式
type AAFFormat uint8

// AAF 格式定义
const (
	AAFFormatUser    AAFFormat = 0x00
	AAFFormatFloat32 AAFFormat = 0x01
	AAFFormatInt32   AAFFormat = 0x02
	AAFFormatInt24   AAFFormat = 0x03
	AAFFormatInt16   AAFFormat = 0x04
	AAFFormatAES3_32 AAFFormat = 0x05
)

// SampleSize 每个采样的字节数
func (f AAFFormat) SampleSize() int {
	switch f {
	case AAFFormatFloat32, AAFFormatInt32, AAFFormatAES3_32:
		return 4
	case AAFFormatInt24:
		return 3
	case AAFFormatInt16:
		return 2
	}
	return 0
}

// Nsr AAF 标称采样率编码
type Nsr uint8

// 标称采样率定义
const (
	NsrUser   Nsr = 0x00
	Nsr8KHz   Nsr = 0x01
	Nsr16KHz  Nsr = 0x02
	Nsr32KHz  Nsr = 0x03
	Nsr44_1   Nsr = 0x04
	Nsr48KHz  Nsr = 0x05
	Nsr88_2   Nsr = 0x06
	Nsr96KHz  Nsr = 0x07
	Nsr176_4  Nsr = 0x08
	Nsr192KHz Nsr = 0x09
	Nsr24KHz  Nsr = 0x0a
)

var nsrRates = map[Nsr]int{
	Nsr8KHz:   8000,
	Nsr16KHz:  16000,
	Nsr32KHz:  32000,
	Nsr44_1:   44100,
	Nsr48KHz:  48000,
	Nsr88_2:   88200,
	Nsr96KHz:  96000,
	Nsr176_4:  176400,
	Nsr192KHz: 192000,
	Nsr24KHz:  24000,
}

// Rate 采样率(Hz)，未知返回 0
func (n Nsr) Rate() int { return nsrRates[n] }

// NsrFromRate 由采样率得到编码
func NsrFromRate(rate int) Nsr {
	for k, v := range nsrRates {
		if v == rate {
			return k
		}
	}
	return NsrUser
}

// AAFInit 初始化 AAF 数据单元头：清零后设置 subtype 和 sv
func AAFInit(pdu []byte) error {
	if len(pdu) < StreamHdrLen {
		return ErrInvalidArgument
	}
	for i := 0; i < StreamHdrLen; i++ {
		pdu[i] = 0
	}
	if err := SetField(pdu, FieldSubtype, uint64(SubtypeAAF)); err != nil {
		return err
	}
	return SetField(pdu, FieldSV, 1)
}
