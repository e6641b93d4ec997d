// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aecp

import (
	"net"

	pdu "github.com/cnotch/avbhub/protos/aecp"
)

// unsolicited 待发送的非请求通知
type unsolicited struct {
	pdu *pdu.PDU
	dst net.HardwareAddr
}

func (m *Manager) register(p *pdu.PDU, src net.HardwareAddr) pdu.Status {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	for i := range m.registered {
		if m.registered[i].controller == p.ControllerEntityID {
			m.registered[i].mac = src
			return pdu.StatusSuccess
		}
	}
	if len(m.registered) >= MaxUnsolicited {
		return pdu.StatusNoResources
	}
	m.registered = append(m.registered, registration{controller: p.ControllerEntityID, mac: src})
	m.logger.Infof("controller %s registered for unsolicited notifications", p.ControllerEntityID)
	return pdu.StatusSuccess
}

func (m *Manager) deregister(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	for i := range m.registered {
		if m.registered[i].controller == p.ControllerEntityID {
			m.registered = append(m.registered[:i], m.registered[i+1:]...)
			m.logger.Infof("controller %s deregistered", p.ControllerEntityID)
			break
		}
	}
	return pdu.StatusSuccess
}

// queueUnsolicited 为发起者以外的已注册控制器准备通知，持有 m.mu
func (m *Manager) queueUnsolicited(rsp *pdu.PDU) {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	for _, r := range m.registered {
		if r.controller == rsp.ControllerEntityID {
			continue
		}
		n := *rsp
		n.Unsolicited = true
		n.ControllerEntityID = r.controller
		n.SequenceID = m.unsolicitSeq
		m.unsolicitSeq++
		m.pending = append(m.pending, &unsolicited{pdu: &n, dst: r.mac})
	}
}

// unsolicitedResponse UNSOLICITED_RESPONSE 状态，持有 m.mu
func (m *Manager) unsolicitedResponse() {
	for _, u := range m.pending {
		m.send(u.pdu, u.dst)
	}
	m.pending = m.pending[:0]
}
