// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"errors"
	"net"

	"github.com/cnotch/avbhub/protos/avtp"
)

// ErrNotAvailable 运行时状态暂不可用，描述符保持原值
var ErrNotAvailable = errors.New("aem: live state not available")

// StreamState 流的运行时状态
type StreamState struct {
	Running        bool             `json:"running"`
	Paused         bool             `json:"paused"`
	Connected      bool             `json:"connected"`
	FastConnect    bool             `json:"fast_connect"`
	SavedState     bool             `json:"saved_state"`
	StreamingWait  bool             `json:"streaming_wait"`
	Format         StreamFormat     `json:"format"`
	StreamID       avtp.EUI64       `json:"stream_id"`
	DestMAC        net.HardwareAddr `json:"dest_mac"`
	VlanID         uint16           `json:"vlan_id"`
	FramesRx       uint32           `json:"frames_rx"`
	FramesTx       uint32           `json:"frames_tx"`
	SeqMismatch    uint32           `json:"seq_num_mismatch"`
	MediaLocked    uint32           `json:"media_locked"`
	MediaUnlocked  uint32           `json:"media_unlocked"`
	StreamReset    uint32           `json:"stream_reset"`
	UnsupportedFmt uint32           `json:"unsupported_format"`
	LateTimestamp  uint32           `json:"late_timestamp"`
	EarlyTimestamp uint32           `json:"early_timestamp"`
	TsUncertain    uint32           `json:"timestamp_uncertain"`
}

// Live 描述符运行时字段的来源。
// 返回 ErrNotAvailable 时描述符保持原值，其他错误视为数据过期。
type Live interface {
	Grandmaster() (gm avtp.EUI64, domain uint8, err error)
	StreamState(t DescriptorType, index uint16) (StreamState, error)
}
