// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"github.com/cnotch/avbhub/utils/bits"
)

const (
	audioUnitLen    = 144
	audioClusterLen = 87
	audioMapLen     = 8
)

// SamplingRate 3 位 pull 和 29 位 base_frequency
type SamplingRate uint32

// NewSamplingRate 构造采样率
func NewSamplingRate(pull uint8, base uint32) SamplingRate {
	return SamplingRate(uint32(pull&0x07)<<29 | base&0x1fffffff)
}

// Pull 频率倍乘系数编码
func (s SamplingRate) Pull() uint8 { return uint8(uint32(s) >> 29) }

// Base 基础频率(Hz)
func (s SamplingRate) Base() uint32 { return uint32(s) & 0x1fffffff }

// Hz 按 pull 计算的实际频率
func (s SamplingRate) Hz() float64 {
	base := float64(s.Base())
	switch s.Pull() {
	case 1:
		return base / 1.001
	case 2:
		return base * 1.001
	case 3:
		return base * 24 / 25
	case 4:
		return base * 25 / 24
	}
	return base
}

// PortRange 端口数量与起始索引
type PortRange struct {
	Number uint16 `json:"number"`
	Base   uint16 `json:"base"`
}

// AudioUnit AUDIO_UNIT 描述符
type AudioUnit struct {
	Header
	Naming
	ClockDomainIndex    uint16         `json:"clock_domain_index"`
	StreamInputPorts    PortRange      `json:"stream_input_ports"`
	StreamOutputPorts   PortRange      `json:"stream_output_ports"`
	ExternalInputPorts  PortRange      `json:"external_input_ports"`
	ExternalOutputPorts PortRange      `json:"external_output_ports"`
	InternalInputPorts  PortRange      `json:"internal_input_ports"`
	InternalOutputPorts PortRange      `json:"internal_output_ports"`
	Controls            PortRange      `json:"controls"`
	SignalSelectors     PortRange      `json:"signal_selectors"`
	Mixers              PortRange      `json:"mixers"`
	Matrices            PortRange      `json:"matrices"`
	Splitters           PortRange      `json:"splitters"`
	Combiners           PortRange      `json:"combiners"`
	Demultiplexers      PortRange      `json:"demultiplexers"`
	Multiplexers        PortRange      `json:"multiplexers"`
	Transcoders         PortRange      `json:"transcoders"`
	ControlBlocks       PortRange      `json:"control_blocks"`
	CurrentSamplingRate SamplingRate   `json:"current_sampling_rate"`
	SamplingRates       []SamplingRate `json:"sampling_rates"`
}

// NewAudioUnit 创建 AUDIO_UNIT 描述符
func NewAudioUnit() *AudioUnit {
	return &AudioUnit{
		Header: Header{Type: TypeAudioUnit},
		Naming: Naming{Description: NoString},
	}
}

// SupportsRate rate 是否在支持列表中
func (d *AudioUnit) SupportsRate(rate SamplingRate) bool {
	for _, r := range d.SamplingRates {
		if r == rate {
			return true
		}
	}
	return false
}

func (d *AudioUnit) ranges() []*PortRange {
	return []*PortRange{
		&d.StreamInputPorts, &d.StreamOutputPorts,
		&d.ExternalInputPorts, &d.ExternalOutputPorts,
		&d.InternalInputPorts, &d.InternalOutputPorts,
		&d.Controls, &d.SignalSelectors, &d.Mixers, &d.Matrices,
		&d.Splitters, &d.Combiners, &d.Demultiplexers, &d.Multiplexers,
		&d.Transcoders, &d.ControlBlocks,
	}
}

func encodeAudioUnit(w *bits.Writer, d *AudioUnit) {
	writeNaming(w, &d.Naming)
	w.Uint16(d.ClockDomainIndex)
	for _, p := range d.ranges() {
		w.Uint16(p.Number)
		w.Uint16(p.Base)
	}
	w.Uint32(uint32(d.CurrentSamplingRate))
	w.Uint16(audioUnitLen)
	w.Uint16(uint16(len(d.SamplingRates)))
	for _, s := range d.SamplingRates {
		w.Uint32(uint32(s))
	}
}

func decodeAudioUnit(r *bits.Reader, d *AudioUnit) error {
	if err := need(r, audioUnitLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	d.ClockDomainIndex = r.Uint16()
	for _, p := range d.ranges() {
		p.Number = r.Uint16()
		p.Base = r.Uint16()
	}
	d.CurrentSamplingRate = SamplingRate(r.Uint32())
	r.Uint16() // sampling_rates_offset
	n := int(r.Uint16())
	if err := need(r, audioUnitLen, n, 4); err != nil {
		return err
	}
	d.SamplingRates = nil
	if n > 0 {
		d.SamplingRates = make([]SamplingRate, n)
	}
	for i := range d.SamplingRates {
		d.SamplingRates[i] = SamplingRate(r.Uint32())
	}
	return nil
}

// AudioCluster AUDIO_CLUSTER 描述符
type AudioCluster struct {
	Header
	Naming
	SignalType   DescriptorType `json:"signal_type"`
	SignalIndex  uint16         `json:"signal_index"`
	SignalOutput uint16         `json:"signal_output"`
	PathLatency  uint32         `json:"path_latency"`
	BlockLatency uint32         `json:"block_latency"`
	ChannelCount uint16         `json:"channel_count"`
	Format       uint8          `json:"format"`
}

// 音频簇格式
const (
	ClusterFormatIEC60958 = 0x00
	ClusterFormatMBLA     = 0x40
	ClusterFormatMIDI     = 0x80
	ClusterFormatSMPTE    = 0x88
)

// NewAudioCluster 创建 AUDIO_CLUSTER 描述符
func NewAudioCluster() *AudioCluster {
	return &AudioCluster{
		Header: Header{Type: TypeAudioCluster},
		Naming: Naming{Description: NoString},
		Format: ClusterFormatMBLA,
	}
}

func encodeAudioCluster(w *bits.Writer, d *AudioCluster) {
	writeNaming(w, &d.Naming)
	w.Uint16(uint16(d.SignalType))
	w.Uint16(d.SignalIndex)
	w.Uint16(d.SignalOutput)
	w.Uint32(d.PathLatency)
	w.Uint32(d.BlockLatency)
	w.Uint16(d.ChannelCount)
	w.Uint8(d.Format)
}

func decodeAudioCluster(r *bits.Reader, d *AudioCluster) error {
	if err := need(r, audioClusterLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	d.SignalType = DescriptorType(r.Uint16())
	d.SignalIndex = r.Uint16()
	d.SignalOutput = r.Uint16()
	d.PathLatency = r.Uint32()
	d.BlockLatency = r.Uint32()
	d.ChannelCount = r.Uint16()
	d.Format = r.Uint8()
	return nil
}

// AudioMapping 流通道到簇通道的映射
type AudioMapping struct {
	StreamIndex    uint16 `json:"mapping_stream_index"`
	StreamChannel  uint16 `json:"mapping_stream_channel"`
	ClusterOffset  uint16 `json:"mapping_cluster_offset"`
	ClusterChannel uint16 `json:"mapping_cluster_channel"`
}

// AudioMap AUDIO_MAP 描述符
type AudioMap struct {
	Header
	Mappings []AudioMapping `json:"mappings"`
}

// NewAudioMap 创建 AUDIO_MAP 描述符
func NewAudioMap() *AudioMap {
	return &AudioMap{Header: Header{Type: TypeAudioMap}}
}

func encodeAudioMap(w *bits.Writer, d *AudioMap) {
	w.Uint16(audioMapLen)
	w.Uint16(uint16(len(d.Mappings)))
	for _, m := range d.Mappings {
		w.Uint16(m.StreamIndex)
		w.Uint16(m.StreamChannel)
		w.Uint16(m.ClusterOffset)
		w.Uint16(m.ClusterChannel)
	}
}

func decodeAudioMap(r *bits.Reader, d *AudioMap) error {
	if err := need(r, audioMapLen, 0, 0); err != nil {
		return err
	}
	r.Uint16() // mappings_offset
	n := int(r.Uint16())
	if err := need(r, audioMapLen, n, 8); err != nil {
		return err
	}
	d.Mappings = nil
	if n > 0 {
		d.Mappings = make([]AudioMapping, n)
	}
	for i := range d.Mappings {
		m := &d.Mappings[i]
		m.StreamIndex = r.Uint16()
		m.StreamChannel = r.Uint16()
		m.ClusterOffset = r.Uint16()
		m.ClusterChannel = r.Uint16()
	}
	return nil
}
