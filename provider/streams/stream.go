// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package streams 实体上 AVTP 流的配置表。
package streams

import (
	"fmt"
	"net"
	"strings"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/provider/store"
	"github.com/cnotch/avbhub/stream"
)

// 流方向
const (
	Talker   = "talker"
	Listener = "listener"
)

// 默认值
const (
	defaultRate            = 48000
	defaultChannels        = 2
	defaultBitDepth        = 24
	defaultSamplesPerFrame = 6
)

// Stream 流配置
type Stream struct {
	Name            string               `json:"name" yaml:"name"`                                     // 流名称，同时作为描述符的 object_name
	Direction       string               `json:"direction" yaml:"direction"`                           // talker 或 listener
	UniqueID        uint16               `json:"unique_id" yaml:"unique_id"`                           // 与网口 MAC 组成 stream_id
	DestMAC         string               `json:"dest_mac" yaml:"dest_mac"`                             // 目的组播地址
	VlanID          uint16               `json:"vlan_id,omitempty" yaml:"vlan_id,omitempty"`           // 为 0 时使用实体的 vlan
	SampleRate      int                  `json:"sample_rate" yaml:"sample_rate"`                       // 当前采样率
	SampleRates     []int                `json:"sample_rates,omitempty" yaml:"sample_rates,omitempty"` // 其他可切换的采样率
	Channels        uint16               `json:"channels" yaml:"channels"`                             // 声道数
	BitDepth        uint8                `json:"bit_depth" yaml:"bit_depth"`                           // 16/24/32
	SamplesPerFrame uint16               `json:"samples_per_frame" yaml:"samples_per_frame"`           // 每帧采样数
	Source          string               `json:"source,omitempty" yaml:"source,omitempty"`             // talker 数据源：wav:<path> 或 rtp:<addr>
	Sink            string               `json:"sink,omitempty" yaml:"sink,omitempty"`                 // listener 目的：wav:<path> 或 rtp:<addr>，空则丢弃
	Loop            bool                 `json:"loop,omitempty" yaml:"loop,omitempty"`                 // wav 源循环播放
	TSEval          *stream.TSEvalConfig `json:"tseval,omitempty" yaml:"tseval,omitempty"`             // 时间戳评估

	dest net.HardwareAddr
}

// Key 流表的索引键
func (s *Stream) Key() string { return s.Name }

func (s *Stream) init() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return fmt.Errorf("stream name is empty")
	}
	s.Direction = strings.ToLower(strings.TrimSpace(s.Direction))
	if s.Direction != Talker && s.Direction != Listener {
		return fmt.Errorf("stream %s: invalid direction %q", s.Name, s.Direction)
	}

	mac, err := net.ParseMAC(s.DestMAC)
	if err != nil || len(mac) != 6 {
		return fmt.Errorf("stream %s: invalid dest_mac %q", s.Name, s.DestMAC)
	}
	s.dest = mac

	if s.SampleRate == 0 {
		s.SampleRate = defaultRate
	}
	if s.Channels == 0 {
		s.Channels = defaultChannels
	}
	if s.BitDepth == 0 {
		s.BitDepth = defaultBitDepth
	}
	if s.SamplesPerFrame == 0 {
		s.SamplesPerFrame = defaultSamplesPerFrame
	}
	if avtp.NsrFromRate(s.SampleRate) == avtp.NsrUser {
		return fmt.Errorf("stream %s: unsupported sample_rate %d", s.Name, s.SampleRate)
	}
	for _, rate := range s.SampleRates {
		if avtp.NsrFromRate(rate) == avtp.NsrUser {
			return fmt.Errorf("stream %s: unsupported sample_rate %d", s.Name, rate)
		}
	}
	if sampleFormat(s.BitDepth) == avtp.AAFFormatUser {
		return fmt.Errorf("stream %s: unsupported bit_depth %d", s.Name, s.BitDepth)
	}
	return nil
}

// CopyFrom 从源拷贝
func (s *Stream) CopyFrom(src *Stream) {
	name := s.Name
	*s = *src
	s.Name = name
}

// Talker 是否为发送流
func (s *Stream) Talker() bool { return s.Direction == Talker }

// Dest 目的地址
func (s *Stream) Dest() net.HardwareAddr { return s.dest }

// Format 当前的 AAF 格式
func (s *Stream) Format() aem.AAFFormat {
	return s.formatAt(s.SampleRate)
}

func (s *Stream) formatAt(rate int) aem.AAFFormat {
	return aem.AAFFormat{
		Nsr:              avtp.NsrFromRate(rate),
		Format:           sampleFormat(s.BitDepth),
		BitDepth:         s.BitDepth,
		ChannelsPerFrame: s.Channels,
		SamplesPerFrame:  s.SamplesPerFrame,
	}
}

// Formats 支持的流格式，第一个为当前格式
func (s *Stream) Formats() []aem.StreamFormat {
	formats := []aem.StreamFormat{s.Format().StreamFormat()}
	for _, rate := range s.SampleRates {
		if rate != s.SampleRate {
			formats = append(formats, s.formatAt(rate).StreamFormat())
		}
	}
	return formats
}

// Config 生成流引擎配置，stream_id 由网口 MAC 和 unique_id 组成
func (s *Stream) Config(mac net.HardwareAddr, vlanID uint16, pcp uint8) *stream.Config {
	cfg := &stream.Config{
		Name:     s.Name,
		StreamID: avtp.StreamIDFrom(mac, s.UniqueID),
		DestMAC:  s.dest,
		VlanID:   vlanID,
		VlanPCP:  pcp,
		TSEval:   s.TSEval,
	}
	if s.VlanID != 0 {
		cfg.VlanID = s.VlanID
	}
	return cfg
}

// Endpoint 解析 source/sink 的 "kind:address"
func Endpoint(endpoint string) (kind, addr string) {
	i := strings.IndexByte(endpoint, ':')
	if i < 0 {
		return strings.ToLower(endpoint), ""
	}
	return strings.ToLower(endpoint[:i]), endpoint[i+1:]
}

func sampleFormat(bitDepth uint8) avtp.AAFFormat {
	switch bitDepth {
	case 16:
		return avtp.AAFFormatInt16
	case 24:
		return avtp.AAFFormatInt24
	case 32:
		return avtp.AAFFormatInt32
	}
	return avtp.AAFFormatUser
}

// Provider 流表提供者
type Provider = store.Provider[*Stream]
