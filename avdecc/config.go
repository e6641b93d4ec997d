// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package avdecc

import (
	"github.com/cnotch/avbhub/adp"
	"github.com/cnotch/avbhub/media"
	"github.com/cnotch/avbhub/protos/avtp"
)

// 默认值
const (
	DefaultEntityName = "avbhub"
	DefaultLocale     = "en-US"
	DefaultVendorName = "CAOHONGJU"
	DefaultModelName  = "avbhub"
	DefaultVlanPCP    = 3
)

// Config 实体配置
type Config struct {
	IfName      string `json:"ifname"`       // AVB 网口
	VlanID      uint16 `json:"vlan_id"`      // 流默认使用的 vlan，0 表示不加标签
	VlanPCP     uint8  `json:"vlan_pcp"`     // 流帧的优先级
	FastConnect bool   `json:"fast_connect"` // 发现 talker 时快速连接
	ValidTime   int    `json:"valid_time"`   // ADP 通告有效期(秒)

	EntityID        avtp.EUI64 `json:"entity_id"`       // 为 0 时由网口 MAC 生成
	EntityModelID   avtp.EUI64 `json:"entity_model_id"` // 实体模型 ID
	EntityName      string     `json:"entity_name"`
	FirmwareVersion string     `json:"firmware_version"`
	GroupName       string     `json:"group_name"`
	SerialNumber    string     `json:"serial_number"`

	LocaleIdentifier string `json:"locale_identifier"`
	VendorName       string `json:"vendor_name"`
	ModelName        string `json:"model_name"`

	Grandmaster       avtp.EUI64 `json:"grandmaster"`        // 静态指定的 gPTP 主时钟，为 0 表示未知
	GrandmasterDomain uint8      `json:"grandmaster_domain"` // gPTP 域
}

// RTPConfig RTP 桥接配置
type RTPConfig struct {
	Dest        string `json:"dest"`         // sink 为 "rtp" 且未指定地址时的目标
	PayloadType uint8  `json:"payload_type"` // 动态负载类型
}

func (c *Config) init() {
	if c.EntityName == "" {
		c.EntityName = DefaultEntityName
	}
	if c.LocaleIdentifier == "" {
		c.LocaleIdentifier = DefaultLocale
	}
	if c.VendorName == "" {
		c.VendorName = DefaultVendorName
	}
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}
	if c.ValidTime == 0 {
		c.ValidTime = adp.DefaultValidTime
	}
}

func (c *RTPConfig) init() {
	if c.PayloadType == 0 {
		c.PayloadType = media.DefaultPayloadType
	}
}
