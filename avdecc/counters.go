// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package avdecc

import (
	"sync/atomic"

	"github.com/cnotch/avbhub/aecp"
	"github.com/cnotch/avbhub/aem"
)

var _ aecp.CounterSource = (*Context)(nil)

// 实体自定义计数器
const (
	CounterPeers       = iota // 已发现的实体数
	CounterControllers        // 注册了非请求通知的控制器数
	CounterStreams            // 运行中的流数
)

// EntityCounter ENTITY_SPECIFIC 计数器
func (c *Context) EntityCounter(i int) (uint32, error) {
	switch i {
	case CounterPeers:
		return uint32(c.adp.Peers().Count()), nil
	case CounterControllers:
		return uint32(len(c.aecp.Registered())), nil
	case CounterStreams:
		var n uint32
		for _, r := range c.pipeline.Runners() {
			if st := r.State(); st.Running && !st.Paused {
				n++
			}
		}
		return n, nil
	}
	return 0, aem.ErrNotAvailable
}

// InterfaceCounters AVB_INTERFACE 计数器，只有一个网口
func (c *Context) InterfaceCounters(index uint16) (aecp.InterfaceCounters, error) {
	if index != 0 {
		return aecp.InterfaceCounters{}, aem.ErrNotAvailable
	}
	sample := c.flow.GetSample()
	return aecp.InterfaceCounters{
		LinkUp:    atomic.LoadUint32(&c.linkUpCount),
		LinkDown:  atomic.LoadUint32(&c.linkDownCount),
		FramesTx:  uint32(sample.OutFrames),
		FramesRx:  uint32(sample.InFrames),
		GmChanged: atomic.LoadUint32(&c.gmChanged),
	}, nil
}

// ClockDomainCounters CLOCK_DOMAIN 计数器，锁定指获得 gPTP 主时钟
func (c *Context) ClockDomainCounters(index uint16) (aecp.ClockDomainCounters, error) {
	if index != 0 {
		return aecp.ClockDomainCounters{}, aem.ErrNotAvailable
	}
	return aecp.ClockDomainCounters{
		Locked:   atomic.LoadUint32(&c.locked),
		Unlocked: atomic.LoadUint32(&c.unlocked),
	}, nil
}
