// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"fmt"

	"github.com/cnotch/avbhub/adp"
	"github.com/cnotch/avbhub/avdecc"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/xlog"
)

// AvdeccConfig 实体配置，ID 类字段为十六进制字符串
type AvdeccConfig struct {
	IfName      string `json:"ifname"`
	VlanID      int    `json:"vlan_id"`
	VlanPCP     int    `json:"vlan_pcp"`
	FastConnect bool   `json:"fast_connect"`
	ValidTime   int    `json:"valid_time"` // 2~62 的偶数，越界时修正

	EntityID        string `json:"entity_id,omitempty"` // 空则由网口 MAC 生成
	EntityModelID   string `json:"entity_model_id,omitempty"`
	EntityName      string `json:"entity_name"`
	FirmwareVersion string `json:"firmware_version"`
	GroupName       string `json:"group_name"`
	SerialNumber    string `json:"serial_number"`

	LocaleIdentifier string `json:"locale_identifier"`
	VendorName       string `json:"vendor_name"`
	ModelName        string `json:"model_name"`

	Grandmaster       string `json:"grandmaster,omitempty"` // 静态 gPTP 主时钟
	GrandmasterDomain int    `json:"grandmaster_domain"`
}

func (c *AvdeccConfig) initFlags() {
	flag.StringVar(&c.IfName, "ifname", "eth0", "Set AVB network interface")
	flag.IntVar(&c.VlanID, "vlan", 2, "Set default stream vlan id, 0 means untagged")
	flag.IntVar(&c.VlanPCP, "vlan-pcp", avdecc.DefaultVlanPCP, "Set stream vlan priority")
	flag.BoolVar(&c.FastConnect, "fast-connect", false,
		"Determines if listeners fast connect to discovered talkers")
	flag.IntVar(&c.ValidTime, "valid-time", adp.DefaultValidTime,
		"Set ADP valid time in seconds (2-62)")
	flag.StringVar(&c.EntityName, "entity-name", avdecc.DefaultEntityName, "Set entity name")
}

// normalize 修正越界的值
func (c *AvdeccConfig) normalize(l *xlog.Logger) {
	if v, changed := adp.ClampValidTime(c.ValidTime); changed {
		l.Warnf("avdecc valid_time %d is out of range, use %d", c.ValidTime, v)
		c.ValidTime = v
	}
	if c.VlanID < 0 || c.VlanID > 4094 {
		l.Warnf("avdecc vlan_id %d is out of range, use untagged", c.VlanID)
		c.VlanID = 0
	}
	if c.VlanPCP < 0 || c.VlanPCP > 7 {
		l.Warnf("avdecc vlan_pcp %d is out of range, use %d", c.VlanPCP, avdecc.DefaultVlanPCP)
		c.VlanPCP = avdecc.DefaultVlanPCP
	}
}

// Build 转换成实体上下文配置
func (c *AvdeccConfig) Build() (*avdecc.Config, error) {
	cfg := &avdecc.Config{
		IfName:            c.IfName,
		VlanID:            uint16(c.VlanID),
		VlanPCP:           uint8(c.VlanPCP),
		FastConnect:       c.FastConnect,
		ValidTime:         c.ValidTime,
		EntityName:        c.EntityName,
		FirmwareVersion:   c.FirmwareVersion,
		GroupName:         c.GroupName,
		SerialNumber:      c.SerialNumber,
		LocaleIdentifier:  c.LocaleIdentifier,
		VendorName:        c.VendorName,
		ModelName:         c.ModelName,
		GrandmasterDomain: uint8(c.GrandmasterDomain),
	}

	ids := []struct {
		name string
		s    string
		id   *avtp.EUI64
	}{
		{"entity_id", c.EntityID, &cfg.EntityID},
		{"entity_model_id", c.EntityModelID, &cfg.EntityModelID},
		{"grandmaster", c.Grandmaster, &cfg.Grandmaster},
	}
	for _, f := range ids {
		if f.s == "" {
			continue
		}
		id, err := avtp.ParseEUI64(f.s)
		if err != nil {
			return nil, fmt.Errorf("config avdecc %s: %w", f.name, err)
		}
		*f.id = id
	}
	return cfg, nil
}

// RTPConfig RTP 桥接配置
type RTPConfig struct {
	Dest        string `json:"dest"`         // 默认目标地址
	PayloadType int    `json:"payload_type"` // 动态负载类型 96~127
}

func (c *RTPConfig) initFlags() {
	flag.StringVar(&c.Dest, "rtp-dest", "", "Set default RTP bridge destination")
	flag.IntVar(&c.PayloadType, "rtp-pt", 96, "Set RTP bridge payload type")
}

// Build 转换成实体上下文的 RTP 配置
func (c *RTPConfig) Build() avdecc.RTPConfig {
	pt := c.PayloadType
	if pt < 96 || pt > 127 {
		pt = 0
	}
	return avdecc.RTPConfig{Dest: c.Dest, PayloadType: uint8(pt)}
}
