// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aecp

import (
	"github.com/cnotch/avbhub/aem"
	pdu "github.com/cnotch/avbhub/protos/aecp"
	"github.com/cnotch/avbhub/protos/avtp"
)

// acquireEntity ACQUIRE_ENTITY
func (m *Manager) acquireEntity(p *pdu.PDU) pdu.Status {
	pl := p.Payload.(*pdu.AcquireEntity)
	if pl.DescriptorType != aem.TypeEntity {
		return pdu.StatusNotSupported
	}

	if pl.Flags&pdu.AcquireRelease != 0 {
		m.model.Release()
		pl.OwnerID = avtp.EUI64{}
		return pdu.StatusSuccess
	}

	own := m.model.Ownership()
	if own.Locked && own.LockedBy != p.ControllerEntityID {
		pl.OwnerID = own.LockedBy
		return pdu.StatusEntityLocked
	}

	owner, ok := m.model.Acquire(p.ControllerEntityID)
	pl.OwnerID = owner
	if !ok {
		return pdu.StatusEntityAcquired
	}
	if !own.Acquired {
		m.logger.Infof("entity acquired by %s", owner)
	}
	return pdu.StatusSuccess
}

// lockEntity LOCK_ENTITY
func (m *Manager) lockEntity(p *pdu.PDU) pdu.Status {
	pl := p.Payload.(*pdu.LockEntity)
	if pl.DescriptorType != aem.TypeEntity {
		return pdu.StatusNotSupported
	}

	if pl.Flags&pdu.LockUnlock != 0 {
		m.model.Unlock()
		pl.LockedID = avtp.EUI64{}
		return pdu.StatusSuccess
	}

	own := m.model.Ownership()
	if own.Acquired && own.AcquiredBy != p.ControllerEntityID {
		pl.LockedID = own.AcquiredBy
		return pdu.StatusEntityAcquired
	}

	owner, ok := m.model.Lock(p.ControllerEntityID)
	pl.LockedID = owner
	if !ok {
		return pdu.StatusEntityLocked
	}
	return pdu.StatusSuccess
}

// correctController 修改类命令只接受持有实体的控制器
func (m *Manager) correctController(p *pdu.PDU) pdu.Status {
	if m.model.CorrectController(p.ControllerEntityID) {
		return pdu.StatusSuccess
	}
	if m.model.Ownership().Acquired {
		return pdu.StatusEntityAcquired
	}
	return pdu.StatusEntityLocked
}

// streamNotRunning 流在运行时拒绝修改。
// 只检查 STREAM_INPUT/OUTPUT；没有运行时状态的流视为未运行，
// 描述符是否存在由后续查找判断。
func (m *Manager) streamNotRunning(t aem.DescriptorType, index uint16) pdu.Status {
	if t != aem.TypeStreamInput && t != aem.TypeStreamOutput {
		return pdu.StatusSuccess
	}
	live := m.model.Live()
	if live == nil {
		return pdu.StatusSuccess
	}
	st, err := live.StreamState(t, index)
	if err != nil {
		return pdu.StatusSuccess
	}
	if st.Running && !st.Paused {
		return pdu.StatusStreamIsRunning
	}
	return pdu.StatusSuccess
}

// allStreamsStopped 当前配置的所有流都未运行
func (m *Manager) allStreamsStopped() pdu.Status {
	config := m.model.CurrentConfig()
	for _, t := range []aem.DescriptorType{aem.TypeStreamInput, aem.TypeStreamOutput} {
		for _, d := range m.model.Descriptors(config, t) {
			if status := m.streamNotRunning(t, d.DescriptorIndex()); status != pdu.StatusSuccess {
				return status
			}
		}
	}
	return pdu.StatusSuccess
}
