// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"time"
)

// config 服务配置
type config struct {
	ListenAddr string          `json:"listen"`            // 管理接口侦听地址和端口
	TapAddr    string          `json:"tap,omitempty"`     // 帧监听(TCP)地址，空则不启用
	Auth       bool            `json:"auth"`              // 启用安全验证
	Profile    bool            `json:"profile"`           // 是否启动Profile
	TLS        *TLSConfig      `json:"tls,omitempty"`     // https安全端口交互
	Avdecc     AvdeccConfig    `json:"avdecc"`            // 实体配置
	RTP        RTPConfig       `json:"rtp"`               // RTP 桥接
	Streams    *ProviderConfig `json:"streams,omitempty"` // 流表
	Users      *ProviderConfig `json:"users,omitempty"`   // 用户
	Net        NetConfig       `json:"net"`               // 连接参数
	Log        LogConfig       `json:"log"`               // 日志配置
}

func (c *config) initFlags() {
	// 服务的端口
	flag.StringVar(&c.ListenAddr, "listen", ":1722", "Set server listen address")
	flag.StringVar(&c.TapAddr, "tap", "", "Set frame tap listen address")
	flag.BoolVar(&c.Auth, "auth", false,
		"Determines if requires permission verification to access management api")
	flag.BoolVar(&c.Profile, "pprof", false,
		"Determines if profile enabled")

	c.Avdecc.initFlags()
	c.RTP.initFlags()
	c.Net.initFlags()
	// 初始化日志配置
	c.Log.initFlags()
}

// NetConfig 帧监听和事件推送连接的参数
type NetConfig struct {
	Timeout    int `json:"timeout"`    // 写超时，秒
	Heartbeat  int `json:"heartbeat"`  // websocket 心跳间隔，秒
	BufferSize int `json:"buffersize"` // 写缓冲字节数
	FlushRate  int `json:"flushrate"`  // 每秒最多刷新次数
}

var defaultNet = NetConfig{Timeout: 45, Heartbeat: 30, BufferSize: 64 * 1024, FlushRate: 30}

func (c *NetConfig) initFlags() {
	flag.IntVar(&c.Timeout, "net-timeout", defaultNet.Timeout, "Set network write timeout in seconds")
	flag.IntVar(&c.Heartbeat, "net-heartbeat", defaultNet.Heartbeat, "Set websocket heartbeat interval in seconds")
	flag.IntVar(&c.BufferSize, "net-buffer", defaultNet.BufferSize, "Set tap connection write buffer size")
	flag.IntVar(&c.FlushRate, "net-flushrate", defaultNet.FlushRate, "Set tap connection flushes per second")
}

// normalize 非正值使用默认值
func (c *NetConfig) normalize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultNet.Timeout
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = defaultNet.Heartbeat
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultNet.BufferSize
	}
	if c.FlushRate <= 0 {
		c.FlushRate = defaultNet.FlushRate
	}
}

func (c *NetConfig) timeout() time.Duration   { return time.Duration(c.Timeout) * time.Second }
func (c *NetConfig) heartbeat() time.Duration { return time.Duration(c.Heartbeat) * time.Second }
