// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"math"

	"github.com/cnotch/avbhub/utils/bits"
)

const controlLen = 104

// ControlValueType control_value_type，高两位为 read_only 和 unknown 标志
type ControlValueType uint16

// 标志位
const (
	ValueTypeReadOnly ControlValueType = 0x8000
	ValueTypeUnknown  ControlValueType = 0x4000
)

// Kind 值的种类
func (t ControlValueType) Kind() ValueKind { return ValueKind(t & 0x3fff) }

// ReadOnly 是否只读
func (t ControlValueType) ReadOnly() bool { return t&ValueTypeReadOnly != 0 }

// ValueKind 控制值种类
type ValueKind uint16

// 控制值种类定义
const (
	LinearInt8 ValueKind = iota
	LinearUint8
	LinearInt16
	LinearUint16
	LinearInt32
	LinearUint32
	LinearInt64
	LinearUint64
	LinearFloat
	LinearDouble
	SelectorInt8
	SelectorUint8
	SelectorInt16
	SelectorUint16
	SelectorInt32
	SelectorUint32
	SelectorInt64
	SelectorUint64
	SelectorFloat
	SelectorDouble
	SelectorString
	ArrayInt8
	ArrayUint8
	ArrayInt16
	ArrayUint16
	ArrayInt32
	ArrayUint32
	ArrayInt64
	ArrayUint64
	ArrayFloat
	ArrayDouble
	UTF8
	BodePlot
	SMPTETime
	SampleRate
	GptpTime
	VendorValue ValueKind = 0x3ffe
	Expansion   ValueKind = 0x3fff
)

// Width 线性值中每个数值的字节数；非线性种类返回 0
func (k ValueKind) Width() int {
	switch k {
	case LinearInt8, LinearUint8:
		return 1
	case LinearInt16, LinearUint16:
		return 2
	case LinearInt32, LinearUint32, LinearFloat:
		return 4
	case LinearInt64, LinearUint64, LinearDouble:
		return 8
	}
	return 0
}

// Linear 是否为支持编解码的线性种类
func (k ValueKind) Linear() bool { return k.Width() > 0 }

// Signed 是否为有符号整数
func (k ValueKind) Signed() bool {
	switch k {
	case LinearInt8, LinearInt16, LinearInt32, LinearInt64:
		return true
	}
	return false
}

// Float 是否为浮点
func (k ValueKind) Float() bool { return k == LinearFloat || k == LinearDouble }

// 一条线性值记录: min max step default current 各 Width 字节，加 unit 和 string
func (k ValueKind) recordLen() int {
	w := k.Width()
	if w == 0 {
		return 0
	}
	return 5*w + 4
}

// LinearValue 线性控制值。数值按线上位模式保存在低 Width 字节中
type LinearValue struct {
	Minimum uint64    `json:"minimum"`
	Maximum uint64    `json:"maximum"`
	Step    uint64    `json:"step"`
	Default uint64    `json:"default"`
	Current uint64    `json:"current"`
	Unit    uint16    `json:"unit"`
	String  StringRef `json:"string"`
}

// Control CONTROL 描述符
type Control struct {
	Header
	Naming
	BlockLatency   uint32           `json:"block_latency"`
	ControlLatency uint32           `json:"control_latency"`
	ControlDomain  uint16           `json:"control_domain"`
	ValueType      ControlValueType `json:"control_value_type"`
	ControlType    uint64           `json:"control_type"`
	ResetTime      uint32           `json:"reset_time"`
	SignalType     DescriptorType   `json:"signal_type"`
	SignalIndex    uint16           `json:"signal_index"`
	SignalOutput   uint16           `json:"signal_output"`
	Values         []LinearValue    `json:"values"`
}

// NewControl 创建 CONTROL 描述符
func NewControl(vt ControlValueType) *Control {
	return &Control{
		Header:     Header{Type: TypeControl},
		Naming:     Naming{Description: NoString},
		ValueType:  vt,
		SignalType: TypeInvalid,
	}
}

// SetCurrent 设置当前值，超出范围或数量不符返回 false
func (d *Control) SetCurrent(values []uint64) bool {
	kind := d.ValueType.Kind()
	if !kind.Linear() || len(values) != len(d.Values) || d.ValueType.ReadOnly() {
		return false
	}
	for i, v := range values {
		if !d.Values[i].inRange(kind, v) {
			return false
		}
	}
	for i, v := range values {
		d.Values[i].Current = v
	}
	return true
}

// Currents 当前值
func (d *Control) Currents() []uint64 {
	cur := make([]uint64, len(d.Values))
	for i := range d.Values {
		cur[i] = d.Values[i].Current
	}
	return cur
}

func (lv *LinearValue) inRange(kind ValueKind, v uint64) bool {
	switch {
	case kind.Float():
		x, lo, hi := toFloat(kind, v), toFloat(kind, lv.Minimum), toFloat(kind, lv.Maximum)
		return !math.IsNaN(x) && x >= lo && x <= hi
	case kind.Signed():
		x, lo, hi := toInt(kind, v), toInt(kind, lv.Minimum), toInt(kind, lv.Maximum)
		return x >= lo && x <= hi
	}
	return v >= lv.Minimum && v <= lv.Maximum
}

func toFloat(kind ValueKind, v uint64) float64 {
	if kind == LinearFloat {
		return float64(math.Float32frombits(uint32(v)))
	}
	return math.Float64frombits(v)
}

func toInt(kind ValueKind, v uint64) int64 {
	switch kind.Width() {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return int64(v)
}

// WriteValue 按宽度写入一个数值
func WriteValue(w *bits.Writer, width int, v uint64) {
	switch width {
	case 1:
		w.Uint8(uint8(v))
	case 2:
		w.Uint16(uint16(v))
	case 4:
		w.Uint32(uint32(v))
	case 8:
		w.Uint64(v)
	}
}

// ReadValue 按宽度读取一个数值
func ReadValue(r *bits.Reader, width int) uint64 {
	switch width {
	case 1:
		return uint64(r.Uint8())
	case 2:
		return uint64(r.Uint16())
	case 4:
		return uint64(r.Uint32())
	case 8:
		return r.Uint64()
	}
	return 0
}

func encodeControl(w *bits.Writer, d *Control) {
	writeNaming(w, &d.Naming)
	w.Uint32(d.BlockLatency)
	w.Uint32(d.ControlLatency)
	w.Uint16(d.ControlDomain)
	w.Uint16(uint16(d.ValueType))
	w.Uint64(d.ControlType)
	w.Uint32(d.ResetTime)
	w.Uint16(controlLen)
	w.Uint16(uint16(len(d.Values)))
	w.Uint16(uint16(d.SignalType))
	w.Uint16(d.SignalIndex)
	w.Uint16(d.SignalOutput)

	// 非线性种类没有编码宽度
	width := d.ValueType.Kind().Width()
	if width == 0 {
		return
	}
	for _, v := range d.Values {
		WriteValue(w, width, v.Minimum)
		WriteValue(w, width, v.Maximum)
		WriteValue(w, width, v.Step)
		WriteValue(w, width, v.Default)
		WriteValue(w, width, v.Current)
		w.Uint16(v.Unit)
		w.Uint16(uint16(v.String))
	}
}

func decodeControl(r *bits.Reader, d *Control) error {
	if err := need(r, controlLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	d.BlockLatency = r.Uint32()
	d.ControlLatency = r.Uint32()
	d.ControlDomain = r.Uint16()
	d.ValueType = ControlValueType(r.Uint16())
	d.ControlType = r.Uint64()
	d.ResetTime = r.Uint32()
	r.Uint16() // values_offset
	n := int(r.Uint16())
	d.SignalType = DescriptorType(r.Uint16())
	d.SignalIndex = r.Uint16()
	d.SignalOutput = r.Uint16()

	kind := d.ValueType.Kind()
	if err := need(r, controlLen, n, kind.recordLen()); err != nil {
		return err
	}
	d.Values = nil
	if n > 0 {
		d.Values = make([]LinearValue, n)
	}
	width := kind.Width()
	if width == 0 {
		return nil
	}
	for i := range d.Values {
		v := &d.Values[i]
		v.Minimum = ReadValue(r, width)
		v.Maximum = ReadValue(r, width)
		v.Step = ReadValue(r, width)
		v.Default = ReadValue(r, width)
		v.Current = ReadValue(r, width)
		v.Unit = r.Uint16()
		v.String = StringRef(r.Uint16())
	}
	return nil
}
