// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"bytes"
	"fmt"
	"strings"
)

// DescriptorType 描述符类型
type DescriptorType uint16

// IEEE 1722.1 描述符类型
const (
	TypeEntity             DescriptorType = 0x0000
	TypeConfiguration      DescriptorType = 0x0001
	TypeAudioUnit          DescriptorType = 0x0002
	TypeVideoUnit          DescriptorType = 0x0003
	TypeSensorUnit         DescriptorType = 0x0004
	TypeStreamInput        DescriptorType = 0x0005
	TypeStreamOutput       DescriptorType = 0x0006
	TypeJackInput          DescriptorType = 0x0007
	TypeJackOutput         DescriptorType = 0x0008
	TypeAvbInterface       DescriptorType = 0x0009
	TypeClockSource        DescriptorType = 0x000a
	TypeMemoryObject       DescriptorType = 0x000b
	TypeLocale             DescriptorType = 0x000c
	TypeStrings            DescriptorType = 0x000d
	TypeStreamPortInput    DescriptorType = 0x000e
	TypeStreamPortOutput   DescriptorType = 0x000f
	TypeExternalPortInput  DescriptorType = 0x0010
	TypeExternalPortOutput DescriptorType = 0x0011
	TypeInternalPortInput  DescriptorType = 0x0012
	TypeInternalPortOutput DescriptorType = 0x0013
	TypeAudioCluster       DescriptorType = 0x0014
	TypeVideoCluster       DescriptorType = 0x0015
	TypeSensorCluster      DescriptorType = 0x0016
	TypeAudioMap           DescriptorType = 0x0017
	TypeVideoMap           DescriptorType = 0x0018
	TypeSensorMap          DescriptorType = 0x0019
	TypeControl            DescriptorType = 0x001a
	TypeSignalSelector     DescriptorType = 0x001b
	TypeMixer              DescriptorType = 0x001c
	TypeMatrix             DescriptorType = 0x001d
	TypeMatrixSignal       DescriptorType = 0x001e
	TypeSignalSplitter     DescriptorType = 0x001f
	TypeSignalCombiner     DescriptorType = 0x0020
	TypeSignalDemux        DescriptorType = 0x0021
	TypeSignalMux          DescriptorType = 0x0022
	TypeSignalTranscoder   DescriptorType = 0x0023
	TypeClockDomain        DescriptorType = 0x0024
	TypeControlBlock       DescriptorType = 0x0025
	TypeTiming             DescriptorType = 0x0026
	TypePtpInstance        DescriptorType = 0x0027
	TypePtpPort            DescriptorType = 0x0028
	TypeInvalid            DescriptorType = 0xffff
)

var typeNames = map[DescriptorType]string{
	TypeEntity:             "ENTITY",
	TypeConfiguration:      "CONFIGURATION",
	TypeAudioUnit:          "AUDIO_UNIT",
	TypeVideoUnit:          "VIDEO_UNIT",
	TypeSensorUnit:         "SENSOR_UNIT",
	TypeStreamInput:        "STREAM_INPUT",
	TypeStreamOutput:       "STREAM_OUTPUT",
	TypeJackInput:          "JACK_INPUT",
	TypeJackOutput:         "JACK_OUTPUT",
	TypeAvbInterface:       "AVB_INTERFACE",
	TypeClockSource:        "CLOCK_SOURCE",
	TypeMemoryObject:       "MEMORY_OBJECT",
	TypeLocale:             "LOCALE",
	TypeStrings:            "STRINGS",
	TypeStreamPortInput:    "STREAM_PORT_INPUT",
	TypeStreamPortOutput:   "STREAM_PORT_OUTPUT",
	TypeExternalPortInput:  "EXTERNAL_PORT_INPUT",
	TypeExternalPortOutput: "EXTERNAL_PORT_OUTPUT",
	TypeInternalPortInput:  "INTERNAL_PORT_INPUT",
	TypeInternalPortOutput: "INTERNAL_PORT_OUTPUT",
	TypeAudioCluster:       "AUDIO_CLUSTER",
	TypeVideoCluster:       "VIDEO_CLUSTER",
	TypeSensorCluster:      "SENSOR_CLUSTER",
	TypeAudioMap:           "AUDIO_MAP",
	TypeVideoMap:           "VIDEO_MAP",
	TypeSensorMap:          "SENSOR_MAP",
	TypeControl:            "CONTROL",
	TypeSignalSelector:     "SIGNAL_SELECTOR",
	TypeMixer:              "MIXER",
	TypeMatrix:             "MATRIX",
	TypeMatrixSignal:       "MATRIX_SIGNAL",
	TypeSignalSplitter:     "SIGNAL_SPLITTER",
	TypeSignalCombiner:     "SIGNAL_COMBINER",
	TypeSignalDemux:        "SIGNAL_DEMULTIPLEXER",
	TypeSignalMux:          "SIGNAL_MULTIPLEXER",
	TypeSignalTranscoder:   "SIGNAL_TRANSCODER",
	TypeClockDomain:        "CLOCK_DOMAIN",
	TypeControlBlock:       "CONTROL_BLOCK",
	TypeTiming:             "TIMING",
	TypePtpInstance:        "PTP_INSTANCE",
	TypePtpPort:            "PTP_PORT",
	TypeInvalid:            "INVALID",
}

func (t DescriptorType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

// Known 是否为已定义的类型
func (t DescriptorType) Known() bool {
	_, ok := typeNames[t]
	return ok && t != TypeInvalid
}

// TopLevel 是否为配置内的顶层描述符；
// 非顶层描述符全局存储一份，对所有配置可见。
func (t DescriptorType) TopLevel() bool {
	switch t {
	case TypeStrings, TypeLocale, TypeAudioMap, TypeAudioCluster,
		TypeStreamPortInput, TypeStreamPortOutput:
		return false
	}
	return true
}

// ParseDescriptorType 由名称或数字解析类型
func ParseDescriptorType(s string) (DescriptorType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	var v uint16
	if _, err := fmt.Sscan(s, &v); err == nil {
		return DescriptorType(v), nil
	}
	return TypeInvalid, fmt.Errorf("aem: unknown descriptor type %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (t DescriptorType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *DescriptorType) UnmarshalText(text []byte) error {
	v, err := ParseDescriptorType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// StringLen 描述符中定长字符串的长度
const StringLen = 64

// String64 以 NUL 填充的 64 字节 UTF-8 字符串
type String64 [StringLen]byte

// NewString64 截断到 64 字节
func NewString64(s string) String64 {
	var v String64
	copy(v[:], s)
	return v
}

func (s String64) String() string {
	if i := bytes.IndexByte(s[:], 0); i >= 0 {
		return string(s[:i])
	}
	return string(s[:])
}

// MarshalText implements encoding.TextMarshaler
func (s String64) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *String64) UnmarshalText(text []byte) error {
	*s = NewString64(string(text))
	return nil
}

// StringRef 本地化字符串引用，高 13 位为 STRINGS 偏移，低 3 位为序号
type StringRef uint16

// NoString 未引用本地化字符串
const NoString StringRef = 0xffff

// NewStringRef 由偏移和序号构造引用
func NewStringRef(offset uint16, index uint8) StringRef {
	return StringRef(offset<<3 | uint16(index&0x07))
}

// Offset STRINGS 描述符偏移
func (r StringRef) Offset() uint16 { return uint16(r) >> 3 }

// Index STRINGS 描述符中的字符串序号
func (r StringRef) Index() uint8 { return uint8(r) & 0x07 }
