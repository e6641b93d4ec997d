// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aecp

import (
	"errors"
	"net"

	"github.com/cnotch/avbhub/aem"
	pdu "github.com/cnotch/avbhub/protos/aecp"
)

// handler 处理一条命令并就地填写响应载荷
type handler func(p *pdu.PDU, src net.HardwareAddr) pdu.Status

func (m *Manager) commandHandlers() map[pdu.CommandType]handler {
	return map[pdu.CommandType]handler{
		pdu.CmdEntityAvailable:                   m.available,
		pdu.CmdControllerAvailable:               m.available,
		pdu.CmdReadDescriptor:                    m.readDescriptor,
		pdu.CmdGetConfiguration:                  m.getConfiguration,
		pdu.CmdSetConfiguration:                  m.setConfiguration,
		pdu.CmdGetStreamFormat:                   m.getStreamFormat,
		pdu.CmdSetStreamFormat:                   m.setStreamFormat,
		pdu.CmdGetStreamInfo:                     m.getStreamInfo,
		pdu.CmdSetStreamInfo:                     m.setStreamInfo,
		pdu.CmdGetName:                           m.getName,
		pdu.CmdSetName:                           m.setName,
		pdu.CmdGetSamplingRate:                   m.getSamplingRate,
		pdu.CmdSetSamplingRate:                   m.setSamplingRate,
		pdu.CmdGetClockSource:                    m.getClockSource,
		pdu.CmdSetClockSource:                    m.setClockSource,
		pdu.CmdGetControl:                        m.getControl,
		pdu.CmdSetControl:                        m.setControl,
		pdu.CmdStartStreaming:                    m.startStreaming,
		pdu.CmdStopStreaming:                     m.stopStreaming,
		pdu.CmdGetCounters:                       m.getCounters,
		pdu.CmdRegisterUnsolicitedNotification:   m.register,
		pdu.CmdDeregisterUnsolicitedNotification: m.deregister,
	}
}

// processCommand 分派 ACQUIRE/LOCK 以外的命令
func (m *Manager) processCommand(p *pdu.PDU, src net.HardwareAddr) pdu.Status {
	h, ok := m.handlers[p.CommandType]
	if !ok {
		return pdu.StatusNotImplemented
	}
	return h(p, src)
}

// notifies 成功后需要通知其他控制器的命令
func notifies(ct pdu.CommandType) bool {
	switch ct {
	case pdu.CmdAcquireEntity, pdu.CmdLockEntity,
		pdu.CmdSetConfiguration, pdu.CmdSetStreamFormat, pdu.CmdSetStreamInfo,
		pdu.CmdSetName, pdu.CmdSetSamplingRate, pdu.CmdSetClockSource,
		pdu.CmdSetControl, pdu.CmdStartStreaming, pdu.CmdStopStreaming:
		return true
	}
	return false
}

func (m *Manager) available(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	return pdu.StatusSuccess
}

func (m *Manager) readDescriptor(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.ReadDescriptor)
	buf := make([]byte, aem.MaxDescriptorSize)
	n, err := m.model.SerializeDescriptor(pl.ConfigurationIndex, pl.DescriptorType, pl.DescriptorIndex, buf)
	switch {
	case errors.Is(err, aem.ErrUnknownDescriptor):
		return pdu.StatusNoSuchDescriptor
	case err != nil:
		m.logger.Errorf("read %s %d failed: %v", pl.DescriptorType, pl.DescriptorIndex, err)
		return pdu.StatusEntityMisbehaving
	}
	pl.Data = buf[:n]
	return pdu.StatusSuccess
}

func (m *Manager) getConfiguration(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	p.Payload.(*pdu.Configuration).ConfigurationIndex = m.model.CurrentConfig()
	return pdu.StatusSuccess
}

func (m *Manager) setConfiguration(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.Configuration)
	status := m.correctController(p)
	if status == pdu.StatusSuccess {
		status = m.allStreamsStopped()
	}
	if status == pdu.StatusSuccess {
		if err := m.model.SetCurrentConfig(pl.ConfigurationIndex); err != nil {
			status = pdu.StatusNoSuchDescriptor
		} else {
			m.logger.Infof("configuration switched to %d", pl.ConfigurationIndex)
		}
	}
	pl.ConfigurationIndex = m.model.CurrentConfig()
	return status
}

// withStreamIO 访问 STREAM_INPUT/OUTPUT 描述符
func (m *Manager) withStreamIO(a pdu.Address, fn func(s *aem.StreamIO)) pdu.Status {
	if a.DescriptorType != aem.TypeStreamInput && a.DescriptorType != aem.TypeStreamOutput {
		return pdu.StatusBadArguments
	}
	found := m.model.With(a.DescriptorType, a.DescriptorIndex, func(d aem.Descriptor) {
		fn(d.(*aem.StreamIO))
	})
	if !found {
		return pdu.StatusNoSuchDescriptor
	}
	return pdu.StatusSuccess
}

// streamState 流的运行时状态，不可用时 ok 为 false
func (m *Manager) streamState(t aem.DescriptorType, index uint16) (st aem.StreamState, ok bool) {
	live := m.model.Live()
	if live == nil {
		return st, false
	}
	st, err := live.StreamState(t, index)
	return st, err == nil
}

// currentFormat 运行中的流以实际格式为准
func (m *Manager) currentFormat(a pdu.Address, format *aem.StreamFormat) pdu.Status {
	status := m.withStreamIO(a, func(s *aem.StreamIO) {
		*format = s.CurrentFormat
	})
	if status != pdu.StatusSuccess {
		return status
	}
	if st, ok := m.streamState(a.DescriptorType, a.DescriptorIndex); ok && st.Running && !st.Format.IsZero() {
		*format = st.Format
	}
	return pdu.StatusSuccess
}

func (m *Manager) getStreamFormat(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.StreamFormat)
	return m.currentFormat(pl.Address, &pl.Format)
}

func (m *Manager) setStreamFormat(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.StreamFormat)
	status := m.applyFormat(p, pl.Address, pl.Format)
	if s := m.currentFormat(pl.Address, &pl.Format); status == pdu.StatusSuccess {
		status = s
	}
	return status
}

// applyFormat 设置流格式，格式必须在描述符的支持列表中
func (m *Manager) applyFormat(p *pdu.PDU, a pdu.Address, format aem.StreamFormat) pdu.Status {
	if status := m.correctController(p); status != pdu.StatusSuccess {
		return status
	}
	if status := m.streamNotRunning(a.DescriptorType, a.DescriptorIndex); status != pdu.StatusSuccess {
		return status
	}
	status := pdu.StatusSuccess
	found := m.withStreamIO(a, func(s *aem.StreamIO) {
		if !s.SupportsFormat(format) {
			status = pdu.StatusBadArguments
			return
		}
		s.CurrentFormat = format
	})
	if found != pdu.StatusSuccess {
		return found
	}
	return status
}

// fillStreamInfo 按描述符和运行时状态填写 STREAM_INFO
func (m *Manager) fillStreamInfo(pl *pdu.StreamInfo) pdu.Status {
	var format aem.StreamFormat
	if status := m.currentFormat(pl.Address, &format); status != pdu.StatusSuccess {
		return status
	}
	*pl = pdu.StreamInfo{Address: pl.Address, Format: format}
	pl.Flags = pdu.StreamInfoStreamFormatValid

	st, ok := m.streamState(pl.DescriptorType, pl.DescriptorIndex)
	if !ok {
		return pdu.StatusSuccess
	}
	if pl.DescriptorType == aem.TypeStreamInput {
		if st.Connected {
			pl.Flags |= pdu.StreamInfoConnected
		}
		if st.StreamingWait {
			pl.Flags |= pdu.StreamInfoStreamingWait
		}
		if st.FastConnect {
			pl.Flags |= pdu.StreamInfoFastConnect
		}
		if st.SavedState {
			pl.Flags |= pdu.StreamInfoSavedState
		}
	}
	if !st.StreamID.IsZero() {
		pl.StreamID = st.StreamID
		pl.Flags |= pdu.StreamInfoStreamIDValid
	}
	if len(st.DestMAC) == len(pl.DestMAC) {
		copy(pl.DestMAC[:], st.DestMAC)
		pl.Flags |= pdu.StreamInfoDestMacValid
	}
	if st.VlanID != 0 {
		pl.VlanID = st.VlanID
		pl.Flags |= pdu.StreamInfoVlanIDValid
	}
	return pdu.StatusSuccess
}

func (m *Manager) getStreamInfo(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	return m.fillStreamInfo(p.Payload.(*pdu.StreamInfo))
}

// setStreamInfo 只支持修改流格式，SRP 相关字段由流表决定
func (m *Manager) setStreamInfo(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.StreamInfo)
	const srpFlags = pdu.StreamInfoStreamIDValid | pdu.StreamInfoDestMacValid |
		pdu.StreamInfoVlanIDValid | pdu.StreamInfoMsrpAccLatValid | pdu.StreamInfoMsrpFailureValid

	var status pdu.Status
	switch {
	case pl.Flags&srpFlags != 0:
		status = pdu.StatusNotSupported
	case pl.Flags&pdu.StreamInfoStreamFormatValid != 0:
		status = m.applyFormat(p, pl.Address, pl.Format)
	default:
		status = m.correctController(p)
	}
	if s := m.fillStreamInfo(pl); status == pdu.StatusSuccess {
		status = s
	}
	return status
}

// 支持 SET/GET_NAME 的描述符
var namedTypes = map[aem.DescriptorType]bool{
	aem.TypeEntity:        true,
	aem.TypeConfiguration: true,
	aem.TypeStreamInput:   true,
	aem.TypeStreamOutput:  true,
	aem.TypeAudioUnit:     true,
	aem.TypeClockDomain:   true,
	aem.TypeClockSource:   true,
	aem.TypeControl:       true,
	aem.TypeJackInput:     true,
	aem.TypeJackOutput:    true,
	aem.TypeAvbInterface:  true,
}

// name 返回 name_index 对应的名称字段
func name(d aem.Descriptor, nameIndex uint16) (get func() aem.String64, set func(aem.String64), ok bool) {
	if e, is := d.(*aem.Entity); is {
		switch nameIndex {
		case 0:
			return func() aem.String64 { return e.EntityName },
				func(s aem.String64) { e.EntityName = s }, true
		case 1:
			return func() aem.String64 { return e.GroupName },
				func(s aem.String64) { e.GroupName = s }, true
		}
		return nil, nil, false
	}
	named, is := d.(aem.Named)
	if !is || nameIndex != 0 {
		return nil, nil, false
	}
	return func() aem.String64 { return aem.NewString64(named.ObjectName()) },
		func(s aem.String64) { named.SetObjectName(s.String()) }, true
}

func (m *Manager) nameAccess(p *pdu.PDU, update bool) pdu.Status {
	pl := p.Payload.(*pdu.Name)
	if !namedTypes[pl.DescriptorType] {
		return pdu.StatusNotImplemented
	}
	d := m.model.GetDescriptor(pl.ConfigurationIndex, pl.DescriptorType, pl.DescriptorIndex)
	if d == nil {
		return pdu.StatusNoSuchDescriptor
	}
	get, set, ok := name(d, pl.NameIndex)
	if !ok {
		return pdu.StatusBadArguments
	}
	m.model.Modify(func() {
		if update {
			set(pl.Name)
		}
		pl.Name = get()
	})
	return pdu.StatusSuccess
}

func (m *Manager) getName(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	return m.nameAccess(p, false)
}

func (m *Manager) setName(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	if status := m.correctController(p); status != pdu.StatusSuccess {
		m.nameAccess(p, false)
		return status
	}
	return m.nameAccess(p, true)
}

// withAudioUnit 访问 AUDIO_UNIT 描述符
func (m *Manager) withAudioUnit(a pdu.Address, fn func(au *aem.AudioUnit)) pdu.Status {
	if a.DescriptorType != aem.TypeAudioUnit {
		return pdu.StatusNotImplemented
	}
	if !m.model.With(a.DescriptorType, a.DescriptorIndex, func(d aem.Descriptor) { fn(d.(*aem.AudioUnit)) }) {
		return pdu.StatusNoSuchDescriptor
	}
	return pdu.StatusSuccess
}

func (m *Manager) getSamplingRate(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.SamplingRate)
	return m.withAudioUnit(pl.Address, func(au *aem.AudioUnit) {
		pl.Rate = au.CurrentSamplingRate
	})
}

func (m *Manager) setSamplingRate(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.SamplingRate)
	status := m.correctController(p)
	found := m.withAudioUnit(pl.Address, func(au *aem.AudioUnit) {
		switch {
		case status != pdu.StatusSuccess:
		case !au.SupportsRate(pl.Rate):
			status = pdu.StatusBadArguments
		default:
			au.CurrentSamplingRate = pl.Rate
		}
		pl.Rate = au.CurrentSamplingRate
	})
	if found != pdu.StatusSuccess {
		return found
	}
	return status
}

// withClockDomain 访问 CLOCK_DOMAIN 描述符
func (m *Manager) withClockDomain(a pdu.Address, fn func(cd *aem.ClockDomain)) pdu.Status {
	if a.DescriptorType != aem.TypeClockDomain {
		return pdu.StatusBadArguments
	}
	if !m.model.With(a.DescriptorType, a.DescriptorIndex, func(d aem.Descriptor) { fn(d.(*aem.ClockDomain)) }) {
		return pdu.StatusNoSuchDescriptor
	}
	return pdu.StatusSuccess
}

func (m *Manager) getClockSource(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.ClockSource)
	return m.withClockDomain(pl.Address, func(cd *aem.ClockDomain) {
		pl.ClockSourceIndex = cd.ClockSourceIndex
	})
}

func (m *Manager) setClockSource(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.ClockSource)
	status := m.correctController(p)
	found := m.withClockDomain(pl.Address, func(cd *aem.ClockDomain) {
		switch {
		case status != pdu.StatusSuccess:
		case !cd.HasSource(pl.ClockSourceIndex):
			status = pdu.StatusBadArguments
		default:
			cd.ClockSourceIndex = pl.ClockSourceIndex
		}
		pl.ClockSourceIndex = cd.ClockSourceIndex
	})
	if found != pdu.StatusSuccess {
		return found
	}
	return status
}

// withControl 访问 CONTROL 描述符
func (m *Manager) withControl(a pdu.Address, fn func(c *aem.Control)) pdu.Status {
	if a.DescriptorType != aem.TypeControl {
		return pdu.StatusBadArguments
	}
	if !m.model.With(a.DescriptorType, a.DescriptorIndex, func(d aem.Descriptor) { fn(d.(*aem.Control)) }) {
		return pdu.StatusNoSuchDescriptor
	}
	return pdu.StatusSuccess
}

func (m *Manager) getControl(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.Control)
	status := pdu.StatusSuccess
	found := m.withControl(pl.Address, func(c *aem.Control) {
		pl.Kind = c.ValueType.Kind()
		if !pl.Kind.Linear() {
			status = pdu.StatusNotImplemented
			return
		}
		pl.Values = c.Currents()
	})
	if found != pdu.StatusSuccess {
		return found
	}
	return status
}

func (m *Manager) setControl(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	pl := p.Payload.(*pdu.Control)
	status := m.correctController(p)
	found := m.withControl(pl.Address, func(c *aem.Control) {
		pl.Kind = c.ValueType.Kind()
		switch {
		case !pl.Kind.Linear():
			status = pdu.StatusNotImplemented
			pl.Values = nil
			return
		case status != pdu.StatusSuccess:
		case c.ValueType.ReadOnly():
			status = pdu.StatusNotSupported
		case !c.SetCurrent(pl.Values):
			status = pdu.StatusBadArguments
		}
		pl.Values = c.Currents()
	})
	if found != pdu.StatusSuccess {
		return found
	}
	return status
}

func (m *Manager) streaming(p *pdu.PDU, pause bool) pdu.Status {
	pl := p.Payload.(*pdu.Streaming)
	if status := m.correctController(p); status != pdu.StatusSuccess {
		return status
	}
	if status := m.withStreamIO(pl.Address, func(*aem.StreamIO) {}); status != pdu.StatusSuccess {
		return status
	}
	if m.pipeline == nil {
		return pdu.StatusNotImplemented
	}
	if err := m.pipeline.Pause(pl.DescriptorType, pl.DescriptorIndex, pause); err != nil {
		m.logger.Errorf("%s %s %d failed: %v", p.CommandType, pl.DescriptorType, pl.DescriptorIndex, err)
		return pdu.StatusEntityMisbehaving
	}
	return pdu.StatusSuccess
}

func (m *Manager) startStreaming(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	return m.streaming(p, false)
}

func (m *Manager) stopStreaming(p *pdu.PDU, _ net.HardwareAddr) pdu.Status {
	return m.streaming(p, true)
}
