// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cnotch/avbhub/utils/bits"
)

// 错误定义
var (
	ErrInvalidArgument   = errors.New("aem: invalid argument")
	ErrBufferTooSmall    = bits.ErrBufferTooSmall
	ErrUnsupported       = errors.New("aem: descriptor type not supported")
	ErrUnknownDescriptor = errors.New("aem: unknown descriptor")
	ErrStaleData         = errors.New("aem: stale descriptor data")
	ErrEncode            = errors.New("aem: descriptor encode failed")
	ErrDuplicate         = errors.New("aem: descriptor already added")
	ErrNoConfiguration   = errors.New("aem: no such configuration")
)

// MaxDescriptorSize READ_DESCRIPTOR 响应中描述符的最大长度
const MaxDescriptorSize = 508

// Header 所有描述符公共的类型和索引
type Header struct {
	Type  DescriptorType `json:"descriptor_type"`
	Index uint16         `json:"descriptor_index"`
}

// DescriptorType 描述符类型
func (h *Header) DescriptorType() DescriptorType { return h.Type }

// DescriptorIndex 描述符索引，加入模型时分配
func (h *Header) DescriptorIndex() uint16 { return h.Index }

func (h *Header) header() *Header { return h }

// Descriptor 描述符。
// 集合是封闭的，只有本包定义的描述符类型实现了该接口。
type Descriptor interface {
	DescriptorType() DescriptorType
	DescriptorIndex() uint16
	header() *Header
}

// Named 拥有 object_name 的描述符
type Named interface {
	Descriptor
	ObjectName() string
	SetObjectName(name string)
}

// Size 返回描述符编码后的长度
func Size(d Descriptor) int {
	switch v := d.(type) {
	case *Entity:
		return entityLen
	case *Configuration:
		return configurationLen + len(v.DescriptorCounts)*4
	case *AudioUnit:
		return audioUnitLen + len(v.SamplingRates)*4
	case *StreamIO:
		return streamIOLen + len(v.Formats)*8
	case *JackIO:
		return jackIOLen
	case *AvbInterface:
		return avbInterfaceLen
	case *ClockSource:
		return clockSourceLen
	case *Control:
		return controlLen + len(v.Values)*v.ValueType.Kind().recordLen()
	case *Locale:
		return localeLen
	case *Strings:
		return stringsLen
	case *StreamPort:
		return streamPortLen
	case *ExternalPort:
		return externalPortLen
	case *AudioCluster:
		return audioClusterLen
	case *AudioMap:
		return audioMapLen + len(v.Mappings)*8
	case *ClockDomain:
		return clockDomainLen + len(v.ClockSources)*2
	}
	return 0
}

// Encode 将描述符写入 buf，返回写入的字节数。
// 所需长度在写入前一次性检查。
func Encode(d Descriptor, buf []byte) (int, error) {
	if d == nil {
		return 0, ErrInvalidArgument
	}
	n := Size(d)
	if n == 0 {
		return 0, ErrUnsupported
	}
	if len(buf) < n {
		return 0, ErrBufferTooSmall
	}

	w := bits.NewWriter(buf[:n])
	h := d.header()
	w.Uint16(uint16(h.Type))
	w.Uint16(h.Index)
	switch v := d.(type) {
	case *Entity:
		encodeEntity(w, v)
	case *Configuration:
		encodeConfiguration(w, v)
	case *AudioUnit:
		encodeAudioUnit(w, v)
	case *StreamIO:
		encodeStreamIO(w, v)
	case *JackIO:
		encodeJackIO(w, v)
	case *AvbInterface:
		encodeAvbInterface(w, v)
	case *ClockSource:
		encodeClockSource(w, v)
	case *Control:
		encodeControl(w, v)
	case *Locale:
		encodeLocale(w, v)
	case *Strings:
		encodeStrings(w, v)
	case *StreamPort:
		encodeStreamPort(w, v)
	case *ExternalPort:
		encodeExternalPort(w, v)
	case *AudioCluster:
		encodeAudioCluster(w, v)
	case *AudioMap:
		encodeAudioMap(w, v)
	case *ClockDomain:
		encodeClockDomain(w, v)
	}
	if w.Err() != nil {
		return 0, w.Err()
	}
	return w.Len(), nil
}

// Decode 从 buf 解码 t 类型的描述符。
// 不在封闭集合中的已知类型返回 ErrUnsupported。
func Decode(t DescriptorType, buf []byte) (Descriptor, error) {
	var d Descriptor
	switch t {
	case TypeEntity:
		d = &Entity{}
	case TypeConfiguration:
		d = &Configuration{}
	case TypeAudioUnit:
		d = &AudioUnit{}
	case TypeStreamInput, TypeStreamOutput:
		d = &StreamIO{}
	case TypeJackInput, TypeJackOutput:
		d = &JackIO{}
	case TypeAvbInterface:
		d = &AvbInterface{}
	case TypeClockSource:
		d = &ClockSource{}
	case TypeControl:
		d = &Control{}
	case TypeLocale:
		d = &Locale{}
	case TypeStrings:
		d = &Strings{}
	case TypeStreamPortInput, TypeStreamPortOutput:
		d = &StreamPort{}
	case TypeExternalPortInput, TypeExternalPortOutput:
		d = &ExternalPort{}
	case TypeAudioCluster:
		d = &AudioCluster{}
	case TypeAudioMap:
		d = &AudioMap{}
	case TypeClockDomain:
		d = &ClockDomain{}
	default:
		return nil, ErrUnsupported
	}

	if len(buf) < 4 {
		return nil, ErrBufferTooSmall
	}
	if got := DescriptorType(binary.BigEndian.Uint16(buf)); got != t {
		return nil, fmt.Errorf("%w: buffer holds %s, want %s", ErrInvalidArgument, got, t)
	}

	r := bits.NewReader(buf)
	h := d.header()
	h.Type = DescriptorType(r.Uint16())
	h.Index = r.Uint16()

	var err error
	switch v := d.(type) {
	case *Entity:
		err = decodeEntity(r, v)
	case *Configuration:
		err = decodeConfiguration(r, v)
	case *AudioUnit:
		err = decodeAudioUnit(r, v)
	case *StreamIO:
		err = decodeStreamIO(r, v)
	case *JackIO:
		err = decodeJackIO(r, v)
	case *AvbInterface:
		err = decodeAvbInterface(r, v)
	case *ClockSource:
		err = decodeClockSource(r, v)
	case *Control:
		err = decodeControl(r, v)
	case *Locale:
		err = decodeLocale(r, v)
	case *Strings:
		err = decodeStrings(r, v)
	case *StreamPort:
		err = decodeStreamPort(r, v)
	case *ExternalPort:
		err = decodeExternalPort(r, v)
	case *AudioCluster:
		err = decodeAudioCluster(r, v)
	case *AudioMap:
		err = decodeAudioMap(r, v)
	case *ClockDomain:
		err = decodeClockDomain(r, v)
	}
	if err == nil {
		err = r.Err()
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// need 变长描述符在进入循环前按闭式长度检查
func need(r *bits.Reader, base, count, elem int) error {
	if r.Err() != nil {
		return r.Err()
	}
	if r.Offset()+r.Len() < base+count*elem {
		return ErrBufferTooSmall
	}
	return nil
}

// Update 刷新描述符中的运行时字段
func Update(d Descriptor, live Live) error {
	if d == nil {
		return ErrInvalidArgument
	}
	if live == nil {
		return nil
	}
	switch v := d.(type) {
	case *AvbInterface:
		return updateAvbInterface(v, live)
	case *StreamIO:
		return updateStreamIO(v, live)
	}
	return nil
}

// Naming object_name 和 localized_description
type Naming struct {
	Name        String64  `json:"object_name"`
	Description StringRef `json:"localized_description"`
}

// ObjectName 对象名
func (n *Naming) ObjectName() string { return n.Name.String() }

// SetObjectName 设置对象名，超过 64 字节截断
func (n *Naming) SetObjectName(name string) { n.Name = NewString64(name) }

func writeNaming(w *bits.Writer, n *Naming) {
	w.Write(n.Name[:])
	w.Uint16(uint16(n.Description))
}

func readNaming(r *bits.Reader, n *Naming) {
	r.Bytes(n.Name[:])
	n.Description = StringRef(r.Uint16())
}
