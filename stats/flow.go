// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"sync/atomic"
)

// FlowSample 帧流量采样
type FlowSample struct {
	InFrames  int64 `json:"inframes"`
	InBytes   int64 `json:"inbytes"`
	OutFrames int64 `json:"outframes"`
	OutBytes  int64 `json:"outbytes"`
}

// Flow 帧流量统计接口，每次调用计一帧
type Flow interface {
	AddIn(size int64)      // 收到一帧
	AddOut(size int64)     // 发出一帧
	GetSample() FlowSample // 获取当前时点采样
}

func (fs *FlowSample) clone() FlowSample {
	return FlowSample{
		InFrames:  atomic.LoadInt64(&fs.InFrames),
		InBytes:   atomic.LoadInt64(&fs.InBytes),
		OutFrames: atomic.LoadInt64(&fs.OutFrames),
		OutBytes:  atomic.LoadInt64(&fs.OutBytes),
	}
}

func (fs *FlowSample) addIn(size int64) {
	atomic.AddInt64(&fs.InFrames, 1)
	atomic.AddInt64(&fs.InBytes, size)
}

func (fs *FlowSample) addOut(size int64) {
	atomic.AddInt64(&fs.OutFrames, 1)
	atomic.AddInt64(&fs.OutBytes, size)
}

// Add 采样累加
func (fs *FlowSample) Add(f FlowSample) {
	fs.InFrames += f.InFrames
	fs.InBytes += f.InBytes
	fs.OutFrames += f.OutFrames
	fs.OutBytes += f.OutBytes
}

type flow struct {
	sample FlowSample
}

// NewFlow 创建流量统计
func NewFlow() Flow {
	return &flow{}
}

func (r *flow) AddIn(size int64) {
	r.sample.addIn(size)
}

func (r *flow) AddOut(size int64) {
	r.sample.addOut(size)
}

func (r *flow) GetSample() FlowSample {
	return r.sample.clone()
}

type childFlow struct {
	parent Flow
	sample FlowSample
}

// NewChildFlow 创建子流量计数，它会把自己的计数Add到parent上
func NewChildFlow(parent Flow) Flow {
	return &childFlow{
		parent: parent,
	}
}

func (r *childFlow) AddIn(size int64) {
	r.sample.addIn(size)
	r.parent.AddIn(size)
}

func (r *childFlow) AddOut(size int64) {
	r.sample.addOut(size)
	r.parent.AddOut(size)
}

func (r *childFlow) GetSample() FlowSample {
	return r.sample.clone()
}
