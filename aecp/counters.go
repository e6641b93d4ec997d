// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aecp

import (
	"net"

	"github.com/cnotch/avbhub/aem"
	pdu "github.com/cnotch/avbhub/protos/aecp"
)

// EntityCounters ENTITY_SPECIFIC 计数器个数
const EntityCounters = 8

func (m *Manager) getCounters(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.Counters)
	pl.Valid = 0
	pl.Block = [pdu.CounterCount]uint32{}

	t, index := pl.DescriptorType, pl.DescriptorIndex
	if m.model.GetDescriptor(m.model.CurrentConfig(), t, index) == nil {
		return pdu.StatusNoSuchDescriptor
	}

	switch t {
	case aem.TypeEntity:
		if m.counters == nil {
			return pdu.StatusSuccess
		}
		// 每个计数器单独获取，失败的不标记有效
		for i := 0; i < EntityCounters; i++ {
			if v, err := m.counters.EntityCounter(i); err == nil {
				pl.Set(pdu.CounterEntitySpecific1-i, v)
			}
		}

	case aem.TypeAvbInterface:
		if m.counters == nil {
			return pdu.StatusSuccess
		}
		c, err := m.counters.InterfaceCounters(index)
		if err != nil {
			return m.counterError(t, index, err)
		}
		pl.Set(pdu.CounterLinkUp, c.LinkUp)
		pl.Set(pdu.CounterLinkDown, c.LinkDown)
		pl.Set(pdu.CounterFramesTx, c.FramesTx)
		pl.Set(pdu.CounterFramesRx, c.FramesRx)
		pl.Set(pdu.CounterGptpGmChanged, c.GmChanged)

	case aem.TypeClockDomain:
		if m.counters == nil {
			return pdu.StatusSuccess
		}
		c, err := m.counters.ClockDomainCounters(index)
		if err != nil {
			return m.counterError(t, index, err)
		}
		pl.Set(pdu.CounterLocked, c.Locked)
		pl.Set(pdu.CounterUnlocked, c.Unlocked)

	case aem.TypeStreamInput:
		live := m.model.Live()
		if live == nil {
			return pdu.StatusSuccess
		}
		st, err := live.StreamState(t, index)
		if err != nil {
			return m.counterError(t, index, err)
		}
		pl.Set(pdu.CounterMediaLocked, st.MediaLocked)
		pl.Set(pdu.CounterMediaUnlocked, st.MediaUnlocked)
		pl.Set(pdu.CounterStreamReset, st.StreamReset)
		pl.Set(pdu.CounterSeqNumMismatch, st.SeqMismatch)
		pl.Set(pdu.CounterTimestampUncertain, st.TsUncertain)
		pl.Set(pdu.CounterUnsupportedFormat, st.UnsupportedFmt)
		pl.Set(pdu.CounterLateTimestamp, st.LateTimestamp)
		pl.Set(pdu.CounterEarlyTimestamp, st.EarlyTimestamp)
		pl.Set(pdu.CounterStreamFramesRx, st.FramesRx)

	default:
		return pdu.StatusNotImplemented
	}
	return pdu.StatusSuccess
}

func (m *Manager) counterError(t aem.DescriptorType, index uint16, err error) pdu.Status {
	if err == aem.ErrNotAvailable {
		return pdu.StatusSuccess
	}
	m.logger.Warnf("counters of %s %d: %v", t, index, err)
	return pdu.StatusEntityMisbehaving
}
