// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aecp

import (
	"testing"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	target     = avtp.EUI64FromUint64(0x001b21fffe0a0b0c)
	controller = avtp.EUI64FromUint64(0x0090e8fffe000001)
)

func command(ct CommandType, payload Payload) *PDU {
	return &PDU{
		MessageType:        AEMCommand,
		TargetEntityID:     target,
		ControllerEntityID: controller,
		SequenceID:         0x1234,
		CommandType:        ct,
		Payload:            payload,
	}
}

func TestPDU_Header(t *testing.T) {
	buf := make([]byte, 128)
	p := command(CmdAcquireEntity, &AcquireEntity{Flags: AcquirePersistent})
	p.MessageType = AEMResponse
	p.Status = StatusEntityAcquired
	p.Unsolicited = true
	n, err := p.Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen+16, n)

	// cdl = 8 controller + 2 seq + 2 type + 16 payload
	assert.Equal(t, []byte{0xfb, 0x01, 0x20, 28}, buf[:4])
	assert.Equal(t, target[:], buf[4:12])
	assert.Equal(t, controller[:], buf[12:20])
	assert.Equal(t, []byte{0x12, 0x34, 0x80, 0x00}, buf[20:24])
	assert.Equal(t, []byte{0, 0, 0, 1}, buf[24:28])
}

func TestPDU_RoundTrip(t *testing.T) {
	aaf := aem.StreamFormat{0x02, 0x05, 0x02, 0x18, 0x02, 0x00, 0x60, 0x00}
	tests := []struct {
		name    string
		ct      CommandType
		payload Payload
	}{
		{"acquire", CmdAcquireEntity, &AcquireEntity{Flags: AcquireRelease, OwnerID: controller}},
		{"lock", CmdLockEntity, &LockEntity{Flags: LockUnlock, LockedID: controller}},
		{"read descriptor", CmdReadDescriptor, &ReadDescriptor{ConfigurationIndex: 1,
			Address: Address{aem.TypeStreamInput, 2}}},
		{"set configuration", CmdSetConfiguration, &Configuration{ConfigurationIndex: 3}},
		{"set stream format", CmdSetStreamFormat, &StreamFormat{Address{aem.TypeStreamOutput, 0}, aaf}},
		{"set stream info", CmdSetStreamInfo, &StreamInfo{Address: Address{aem.TypeStreamInput, 1},
			Flags: StreamInfoConnected | StreamInfoStreamIDValid, Format: aaf,
			StreamID: avtp.EUI64FromUint64(0x1122334455660001), MsrpAccumulatedLatency: 2000000,
			DestMAC: [6]byte{0x91, 0xe0, 0xf0, 0, 0xfe, 1}, MsrpFailureCode: 4,
			MsrpFailureBridgeID: avtp.EUI64FromUint64(77), VlanID: 2}},
		{"set name", CmdSetName, &Name{Address: Address{aem.TypeEntity, 0}, NameIndex: 0,
			Name: aem.NewString64("talker")}},
		{"set sampling rate", CmdSetSamplingRate, &SamplingRate{Address{aem.TypeAudioUnit, 0}, 48000}},
		{"set clock source", CmdSetClockSource, &ClockSource{Address{aem.TypeClockDomain, 0}, 1}},
		{"start streaming", CmdStartStreaming, &Streaming{Address{aem.TypeStreamOutput, 0}}},
		{"register", CmdRegisterUnsolicitedNotification, &Empty{}},
		{"get avb info", CmdGetAvbInfo, &Raw{Data: []byte{0, 9, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 256)
			p := command(tt.ct, tt.payload)
			n, err := p.Marshal(buf)
			require.NoError(t, err)

			got, err := ParseCommand(buf[:n], nil)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestPDU_GetForms(t *testing.T) {
	addr := Address{aem.TypeStreamInput, 1}
	buf := make([]byte, 256)

	// GET 命令只带地址
	p := command(CmdGetStreamInfo, &StreamInfo{Address: addr, Flags: 0xffffffff})
	n, err := p.Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen+4, n)
	got, err := ParseCommand(buf[:n], nil)
	require.NoError(t, err)
	assert.Equal(t, &StreamInfo{Address: addr}, got.Payload)

	n, err = command(CmdGetConfiguration, &Configuration{ConfigurationIndex: 5}).Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen, n)

	// 响应为完整布局
	rsp := p.Response(StatusSuccess)
	n, err = rsp.Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen+48, n)
	got, err = ParseCommand(buf[:n], nil)
	require.NoError(t, err)
	assert.Equal(t, AEMResponse, got.MessageType)
	assert.Equal(t, uint32(0xffffffff), got.Payload.(*StreamInfo).Flags)

	n, err = command(CmdGetCounters, &Counters{Address: Address{aem.TypeAvbInterface, 0}}).
		Response(StatusSuccess).Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen+4+4+128, n)
}

func TestPDU_ControlValues(t *testing.T) {
	kinds := func(index uint16) (aem.ValueKind, bool) {
		switch index {
		case 0:
			return aem.LinearUint8, true
		case 1:
			return aem.LinearInt16, true
		case 2:
			return aem.ValueKind(0x0a), true // SELECTOR_INT8
		}
		return 0, false
	}
	tests := []struct {
		name   string
		index  uint16
		data   []byte
		values []uint64
	}{
		{"uint8", 0, []byte{0, 0x1a, 0, 0, 7, 9}, []uint64{7, 9}},
		{"int16", 1, []byte{0, 0x1a, 0, 1, 0xff, 0xfe, 0x01}, []uint64{0xfffe}},
		{"selector", 2, []byte{0, 0x1a, 0, 2, 1, 2}, nil},
		{"unknown control", 3, []byte{0, 0x1a, 0, 3, 1, 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 128)
			n, err := command(CmdSetControl, &Raw{Data: tt.data}).Marshal(buf)
			require.NoError(t, err)

			got, err := ParseCommand(buf[:n], kinds)
			require.NoError(t, err)
			c := got.Payload.(*Control)
			assert.Equal(t, tt.index, c.DescriptorIndex)
			assert.Equal(t, tt.values, c.Values)
		})
	}

	c := &Control{Address: Address{aem.TypeControl, 1}, Kind: aem.LinearInt16, Values: []uint64{0xfffe}}
	buf := make([]byte, 128)
	n, err := command(CmdSetControl, c).Response(StatusSuccess).Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0x1a, 0, 1, 0xff, 0xfe}, buf[HeaderLen:n])
}

func TestPDU_ReadDescriptorResponse(t *testing.T) {
	entity := aem.NewEntity()
	desc := make([]byte, aem.MaxDescriptorSize)
	dn, err := aem.Encode(entity, desc)
	require.NoError(t, err)

	p := command(CmdReadDescriptor, &ReadDescriptor{Data: desc[:dn]}).Response(StatusSuccess)
	buf := make([]byte, 1024)
	n, err := p.Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen+4+dn, n)

	got, err := ParseCommand(buf[:n], nil)
	require.NoError(t, err)
	rd := got.Payload.(*ReadDescriptor)
	assert.Equal(t, aem.TypeEntity, rd.DescriptorType)
	assert.Equal(t, desc[:dn], rd.Data)

	d, err := aem.Decode(rd.DescriptorType, rd.Data)
	require.NoError(t, err)
	assert.Equal(t, entity, d)
}

func TestPDU_Padding(t *testing.T) {
	buf := make([]byte, MinFrameLen)
	for i := range buf {
		buf[i] = 0xaa
	}
	n, err := command(CmdStopStreaming, &Streaming{Address{aem.TypeStreamOutput, 0}}).Marshal(buf)
	require.NoError(t, err)
	assert.True(t, n < len(buf))

	// 填充字节不计入载荷
	got, err := ParseCommand(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, &Streaming{Address{aem.TypeStreamOutput, 0}}, got.Payload)

	assert.Equal(t, CmdStopStreaming, got.CommandType)
}

func TestPDU_Errors(t *testing.T) {
	buf := make([]byte, 64)
	n, err := command(CmdEntityAvailable, &Empty{}).Marshal(buf)
	require.NoError(t, err)

	_, err = ParseCommand(buf[:10], nil)
	assert.Equal(t, ErrBufferTooSmall, err)

	buf[0] = byte(avtp.SubtypeADP)
	_, err = ParseCommand(buf[:n], nil)
	assert.Equal(t, ErrNotAECP, err)
	buf[0] = byte(avtp.SubtypeAECP)

	buf[3] = 60
	_, err = ParseCommand(buf[:n], nil)
	assert.Equal(t, ErrBadLength, err)
	buf[3] = byte(n - avtp.ControlHdrLen)

	buf[1] = byte(AddressAccessCommand)
	p, err := ParseCommand(buf[:n], nil)
	assert.Equal(t, ErrNotAEM, err)
	assert.Equal(t, controller, p.ControllerEntityID)

	_, err = command(CmdGetAvbInfo, &Raw{Data: make([]byte, 600)}).Marshal(make([]byte, 1024))
	assert.Equal(t, ErrBadLength, err)

	_, err = command(CmdSetName, &Name{}).Marshal(buf[:30])
	assert.Equal(t, ErrBufferTooSmall, err)
}

func TestCommandType(t *testing.T) {
	assert.Equal(t, "GET_STREAM_BACKUP", CmdGetStreamBackup.String())
	assert.Equal(t, "EXPANSION", CmdExpansion.String())
	assert.Equal(t, "COMMAND_0x0100", CommandType(0x100).String())
	assert.True(t, CmdReboot.Known())
	assert.False(t, CommandType(0x4b).Known())

	var c CommandType
	assert.NoError(t, c.UnmarshalText([]byte("set_control")))
	assert.Equal(t, CmdSetControl, c)
	assert.NoError(t, c.UnmarshalText([]byte("0x29")))
	assert.Equal(t, CmdGetCounters, c)
	assert.Error(t, c.UnmarshalText([]byte("nope")))

	assert.Equal(t, "STREAM_IS_RUNNING", StatusStreamIsRunning.String())
	assert.Equal(t, "STATUS_20", Status(20).String())
}

func TestCounters(t *testing.T) {
	var c Counters
	c.Set(CounterFramesRx, 10)
	c.Set(CounterEntitySpecific1, 1)
	c.Set(40, 1)
	assert.Equal(t, uint32(1<<CounterFramesRx|1<<CounterEntitySpecific1), c.Valid)
	v, ok := c.Get(CounterFramesRx)
	assert.True(t, ok)
	assert.Equal(t, uint32(10), v)
	_, ok = c.Get(CounterLinkUp)
	assert.False(t, ok)
}
