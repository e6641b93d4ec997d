// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adp

import (
	"bytes"
	"net"
	"time"

	"github.com/cnotch/avbhub/events"
	"github.com/cnotch/avbhub/network/rawsock"
	pdu "github.com/cnotch/avbhub/protos/adp"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/protos/eth"
	"github.com/kelindar/rate"
)

// receive ADP 接收例程，套接字关闭后退出
func (m *Manager) receive() {
	defer m.rxWG.Done()
	defer m.recoverRoutine("adp receive")

	limit := rate.New(10, time.Second)
	own := m.sock.Addr()
	buf := make([]byte, rawsock.MaxFrameLen)
	for {
		n, err := m.sock.Recv(buf, 0)
		if err == rawsock.ErrTimeout {
			continue
		}
		if err != nil {
			if err != rawsock.ErrClosed {
				m.logger.Errorf("receive failed: %v", err)
			}
			return
		}

		h, off, err := eth.Parse(buf[:n])
		if err != nil || h.EtherType != avtp.EtherType {
			continue
		}
		// 丢弃本机发出的帧
		if bytes.Equal(h.Src, own) {
			continue
		}
		if off >= n || avtp.Subtype(buf[off]) != avtp.SubtypeADP {
			continue
		}

		var p pdu.PDU
		if err := p.Unmarshal(buf[off:n]); err != nil {
			if !limit.Limit() {
				m.logger.Warnf("drop malformed adpdu from %s: %v", h.Src, err)
			}
			continue
		}
		m.handle(&p, h.Src)
	}
}

// handle 处理收到的 ADPDU
func (m *Manager) handle(p *pdu.PDU, src net.HardwareAddr) {
	m.logger.Debugf("rx %s", p)

	switch p.MessageType {
	case pdu.EntityDiscover:
		m.SetRcvdDiscover(p.EntityID)

	case pdu.EntityAvailable:
		if p.EntityID == m.Info().EntityID {
			return
		}
		peer, isNew := m.peers.Update(p, src, time.Now())
		if isNew {
			m.logger.Infof("discovered entity %s", p.EntityID)
		}
		m.events.Publish(events.TopicPeer, peer)
		if m.cfg.FastConnect && m.fast != nil && p.TalkerStreamSources > 0 && isNew {
			m.fast(p)
		}

	case pdu.EntityDeparting:
		if peer := m.peers.Remove(p.EntityID); peer != nil {
			m.logger.Infof("entity %s departed", p.EntityID)
			m.events.Publish(events.TopicPeer, peer)
		}
	}
}
