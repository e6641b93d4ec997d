// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package avdecc

import (
	"testing"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/network/rawsock"
	aecppdu "github.com/cnotch/avbhub/protos/aecp"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/protos/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noControls(uint16) (aem.ValueKind, bool) { return 0, false }

// aemCall 向上下文发送 AEM 命令并等待对应序号的响应
func aemCall(t *testing.T, sock rawsock.Socket, target avtp.EUI64, seq uint16,
	ct aecppdu.CommandType, payload aecppdu.Payload) *aecppdu.PDU {
	controller := avtp.EntityIDFromMAC(peerMAC, 0xffff)
	cmd := &aecppdu.PDU{
		MessageType:        aecppdu.AEMCommand,
		TargetEntityID:     target,
		ControllerEntityID: controller,
		SequenceID:         seq,
		CommandType:        ct,
		Payload:            payload,
	}
	buf := make([]byte, rawsock.MaxFrameLen)
	h := eth.Header{Dst: localMAC, Src: sock.Addr(), EtherType: avtp.EtherType}
	n, err := h.Encode(buf)
	require.NoError(t, err)
	pn, err := cmd.Marshal(buf[n:])
	require.NoError(t, err)
	require.NoError(t, sock.Send(buf[:n+pn]))

	deadline := time.Now().Add(time.Second)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			t.Fatalf("no response to %v", ct)
		}
		rn, err := sock.Recv(buf, left)
		require.NoError(t, err)
		_, off, err := eth.Parse(buf[:rn])
		require.NoError(t, err)
		rsp, err := aecppdu.ParseCommand(buf[off:rn], noControls)
		if err != nil || rsp.MessageType != aecppdu.AEMResponse || rsp.Unsolicited || rsp.SequenceID != seq {
			continue
		}
		require.Equal(t, ct, rsp.CommandType)
		return rsp
	}
}

func TestContext_EntityCountersOverAECP(t *testing.T) {
	c, hub := newTestContext(t, &Config{}, defaultStreams(t))
	peer := hub.Open(peerMAC, avtp.EtherType)
	require.NoError(t, c.Start())
	id := c.Model().Entity().EntityID

	// 计数器源在状态机处理中读取已注册控制器数
	rsp := aemCall(t, peer, id, 1, aecppdu.CmdGetCounters,
		&aecppdu.Counters{Address: aecppdu.Address{DescriptorType: aem.TypeEntity}})
	require.Equal(t, aecppdu.StatusSuccess, rsp.Status)
	counters := rsp.Payload.(*aecppdu.Counters)
	v, ok := counters.Get(aecppdu.CounterEntitySpecific1 - CounterControllers)
	assert.True(t, ok)
	assert.Zero(t, v)
	_, ok = counters.Get(aecppdu.CounterEntitySpecific1 - CounterStreams)
	assert.True(t, ok)

	rsp = aemCall(t, peer, id, 2, aecppdu.CmdRegisterUnsolicitedNotification, &aecppdu.Empty{})
	require.Equal(t, aecppdu.StatusSuccess, rsp.Status)
	rsp = aemCall(t, peer, id, 3, aecppdu.CmdGetCounters,
		&aecppdu.Counters{Address: aecppdu.Address{DescriptorType: aem.TypeEntity}})
	v, _ = rsp.Payload.(*aecppdu.Counters).Get(aecppdu.CounterEntitySpecific1 - CounterControllers)
	assert.Equal(t, uint32(1), v)

	rsp = aemCall(t, peer, id, 4, aecppdu.CmdReadDescriptor,
		&aecppdu.ReadDescriptor{Address: aecppdu.Address{DescriptorType: aem.TypeEntity}})
	require.Equal(t, aecppdu.StatusSuccess, rsp.Status)
	d, err := aem.Decode(aem.TypeEntity, rsp.Payload.(*aecppdu.ReadDescriptor).Data)
	require.NoError(t, err)
	assert.Equal(t, id, d.(*aem.Entity).EntityID)

	require.NoError(t, c.Stop())
}
