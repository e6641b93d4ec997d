// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adp

import (
	"time"

	pdu "github.com/cnotch/avbhub/protos/adp"
	"github.com/cnotch/avbhub/protos/avtp"
)

type state int

// 状态机状态
const (
	stateInitialize state = iota
	stateAdvertise
	stateWaiting
	stateReceivedDiscover
	stateUpdateGM
	stateLinkStateChange
	stateDeparting
	stateResetWait
)

var stateNames = [...]string{
	"INITIALIZE", "ADVERTISE", "WAITING", "RECEIVED_DISCOVER",
	"UPDATE_GM", "LINK_STATE_CHANGE", "DEPARTING", "RESET_WAIT",
}

func (s state) String() string { return stateNames[s] }

// runInterface Advertise-Interface 状态机
func (m *Manager) runInterface() {
	defer m.fsmWG.Done()
	defer m.recoverRoutine("advertise interface")

	m.mu.Lock()
	defer m.mu.Unlock()

	st := stateInitialize
	for {
		m.logger.Debugf("interface state %s", st)
		switch st {
		case stateInitialize:
			st = stateAdvertise

		case stateAdvertise:
			m.doAdvertise = false
			m.send(pdu.EntityAvailable)
			st = stateWaiting

		case stateWaiting:
			for {
				switch {
				case m.terminate:
					st = stateDeparting
				case m.doAdvertise:
					st = stateAdvertise
				case m.rcvdDiscover && !m.needsAdvertise:
					st = stateReceivedDiscover
				case m.gm != m.advertisedGM:
					st = stateUpdateGM
				case m.linkChanged:
					st = stateLinkStateChange
				default:
					m.cond.Wait()
					continue
				}
				break
			}

		case stateReceivedDiscover:
			if m.discoverTarget.IsZero() || m.discoverTarget == m.info.EntityID {
				m.needsAdvertise = true
				m.cond.Broadcast()
			} else {
				// 非本实体的发现请求
				m.rcvdDiscover = false
			}
			st = stateWaiting

		case stateUpdateGM:
			m.needsAdvertise = true
			m.cond.Broadcast()
			m.advertisedGM = m.gm
			st = stateWaiting

		case stateLinkStateChange:
			m.linkChanged = false
			if m.linkIsUp {
				m.needsAdvertise = true
				m.cond.Broadcast()
			}
			st = stateWaiting

		case stateDeparting:
			m.send(pdu.EntityDeparting)
			return
		}
	}
}

// runEntity Advertise-Entity 状态机
func (m *Manager) runEntity() {
	defer m.fsmWG.Done()
	defer m.recoverRoutine("advertise entity")

	m.mu.Lock()
	defer m.mu.Unlock()

	var deadline time.Time
	st := stateInitialize
	for !m.terminate {
		m.logger.Debugf("entity state %s", st)
		switch st {
		case stateInitialize:
			m.setAvailableIndex(0)
			st = stateResetWait

		case stateResetWait:
			deadline = time.Now().Add(m.cfg.reannounce())
			st = stateWaiting

		case stateWaiting:
			m.waitUntil(deadline, func() bool {
				return m.terminate || m.needsAdvertise
			})
			if m.terminate {
				return
			}
			m.rcvdDiscover = false
			m.discoverTarget = avtp.EUI64{}
			m.setAvailableIndex(m.info.AvailableIndex + 1)
			st = stateAdvertise

		case stateAdvertise:
			m.needsAdvertise = false
			m.doAdvertise = true
			m.cond.Broadcast()
			st = stateResetWait
		}
	}
}

func (m *Manager) setAvailableIndex(idx uint32) {
	m.info.AvailableIndex = idx
	m.model.SetAvailableIndex(idx)
}
