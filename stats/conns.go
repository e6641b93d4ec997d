// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"sync/atomic"
)

// 全局连接统计
var (
	TapConns   = NewConns() // 帧监听(TCP)
	EventConns = NewConns() // 事件推送(websocket)
)

// ConnsSample 连接计数采样
type ConnsSample struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
	Peak   int64 `json:"peak"`
}

// Conns 连接计数
type Conns struct {
	total  atomic.Int64
	active atomic.Int64
	peak   atomic.Int64
}

// NewConns 新建连接计数
func NewConns() *Conns {
	return &Conns{}
}

// Add 新连接，返回当前活动连接数
func (c *Conns) Add() int64 {
	c.total.Add(1)
	n := c.active.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			return n
		}
	}
}

// Release 连接关闭，返回当前活动连接数
func (c *Conns) Release() int64 {
	return c.active.Add(-1)
}

// GetSample 当前采样
func (c *Conns) GetSample() ConnsSample {
	return ConnsSample{
		Total:  c.total.Load(),
		Active: c.active.Load(),
		Peak:   c.peak.Load(),
	}
}
