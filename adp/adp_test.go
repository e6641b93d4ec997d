// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adp

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/network/rawsock"
	pdu "github.com/cnotch/avbhub/protos/adp"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/protos/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	localMAC = net.HardwareAddr{0x00, 0x1b, 0x21, 0x0a, 0x0b, 0x0c}
	peerMAC  = net.HardwareAddr{0x00, 0x1b, 0x21, 0x0d, 0x0e, 0x0f}
	localID  = avtp.EntityIDFromMAC(localMAC, 1)
	peerID   = avtp.EntityIDFromMAC(peerMAC, 1)
)

type testbed struct {
	hub   *rawsock.Hub
	model *aem.Model
	m     *Manager
	peer  rawsock.Socket
}

func newTestbed(t *testing.T, cfg *Config, options ...Option) *testbed {
	entity := aem.NewEntity()
	entity.EntityID = localID
	entity.TalkerStreamSources = 1
	model, err := aem.New(entity)
	require.NoError(t, err)

	hub := rawsock.NewHub()
	sock := hub.Open(localMAC, avtp.EtherType)
	peer := hub.Open(peerMAC, avtp.EtherType)
	require.NoError(t, peer.JoinMulticast(avtp.AdpMulticastAddr))

	return &testbed{
		hub:   hub,
		model: model,
		m:     NewManager(cfg, model, sock, nil, options...),
		peer:  peer,
	}
}

// recv 等待下一个 ADPDU
func (tb *testbed) recv(t *testing.T, timeout time.Duration) *pdu.PDU {
	buf := make([]byte, rawsock.MaxFrameLen)
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			t.Fatal("no adpdu received")
		}
		n, err := tb.peer.Recv(buf, left)
		require.NoError(t, err)
		_, off, err := eth.Parse(buf[:n])
		require.NoError(t, err)
		var p pdu.PDU
		if p.Unmarshal(buf[off:n]) == nil {
			return &p
		}
	}
}

func (tb *testbed) send(t *testing.T, p *pdu.PDU) {
	buf := make([]byte, eth.HeaderLen+pdu.PDULen)
	h := eth.Header{Dst: avtp.AdpMulticastAddr, Src: peerMAC, EtherType: avtp.EtherType}
	n, err := h.Encode(buf)
	require.NoError(t, err)
	_, err = p.Marshal(buf[n:])
	require.NoError(t, err)
	require.NoError(t, tb.peer.Send(buf))
}

func TestClampValidTime(t *testing.T) {
	tests := []struct {
		in      int
		out     int
		changed bool
	}{
		{0, 2, true},
		{2, 2, false},
		{7, 6, true},
		{62, 62, false},
		{100, 62, true},
	}
	for _, tt := range tests {
		v, changed := ClampValidTime(tt.in)
		assert.Equal(t, tt.out, v)
		assert.Equal(t, tt.changed, changed)
	}

	assert.Equal(t, time.Second, (&Config{ValidTime: 2}).reannounce())
	assert.Equal(t, 15*time.Second, (&Config{ValidTime: 62}).reannounce())
	assert.Equal(t, uint8(31), (&Config{ValidTime: 62}).units())
}

func TestManager_Advertise(t *testing.T) {
	tb := newTestbed(t, &Config{ValidTime: 2})
	require.NoError(t, tb.m.Start())
	assert.Equal(t, ErrStarted, tb.m.Start())

	// 接口状态机立即通告，实体状态机约 1 秒后再次通告
	start := time.Now()
	first := tb.recv(t, 500*time.Millisecond)
	assert.Equal(t, pdu.EntityAvailable, first.MessageType)
	assert.Equal(t, localID, first.EntityID)
	assert.Equal(t, uint8(1), first.ValidTime)
	assert.Equal(t, uint16(1), first.TalkerStreamSources)
	assert.Equal(t, uint32(0), first.AvailableIndex)

	second := tb.recv(t, 2*time.Second)
	elapsed := time.Since(start)
	assert.Equal(t, uint32(1), second.AvailableIndex)
	assert.True(t, elapsed >= 900*time.Millisecond, "elapsed %v", elapsed)
	assert.True(t, elapsed < 1800*time.Millisecond, "elapsed %v", elapsed)
	assert.Equal(t, uint32(1), tb.model.Entity().AvailableIndex)

	require.NoError(t, tb.m.Stop())
	last := tb.recv(t, time.Second)
	assert.Equal(t, pdu.EntityDeparting, last.MessageType)
	assert.Equal(t, ErrNotStarted, tb.m.Stop())
}

func TestManager_AvailableIndexMonotonic(t *testing.T) {
	tb := newTestbed(t, &Config{ValidTime: 2})
	require.NoError(t, tb.m.Start())
	defer tb.m.Stop()

	prev := tb.recv(t, time.Second).AvailableIndex
	for i := 0; i < 3; i++ {
		// 发现请求也会触发通告
		if i == 1 {
			tb.send(t, &pdu.PDU{MessageType: pdu.EntityDiscover})
		}
		p := tb.recv(t, 2*time.Second)
		assert.True(t, p.AvailableIndex > prev, "%d after %d", p.AvailableIndex, prev)
		prev = p.AvailableIndex
	}
}

func TestManager_Discover(t *testing.T) {
	tb := newTestbed(t, &Config{ValidTime: 62})
	require.NoError(t, tb.m.Start())
	defer tb.m.Stop()

	first := tb.recv(t, time.Second)
	assert.Equal(t, uint32(0), first.AvailableIndex)

	// 面向其他实体的发现请求不应答
	tb.send(t, &pdu.PDU{MessageType: pdu.EntityDiscover, EntityID: peerID})
	_, err := tb.peer.Recv(make([]byte, rawsock.MaxFrameLen), 200*time.Millisecond)
	assert.Equal(t, rawsock.ErrTimeout, err)

	tb.send(t, &pdu.PDU{MessageType: pdu.EntityDiscover, EntityID: localID})
	p := tb.recv(t, 500*time.Millisecond)
	assert.Equal(t, uint32(1), p.AvailableIndex)

	tb.send(t, &pdu.PDU{MessageType: pdu.EntityDiscover})
	p = tb.recv(t, 500*time.Millisecond)
	assert.Equal(t, uint32(2), p.AvailableIndex)
}

func TestManager_Grandmaster(t *testing.T) {
	tb := newTestbed(t, &Config{ValidTime: 62})
	require.NoError(t, tb.m.Start())
	defer tb.m.Stop()
	tb.recv(t, time.Second)

	gm := avtp.EUI64FromUint64(0x0011223344556677)
	tb.m.SetGrandmaster(gm, 5)
	p := tb.recv(t, 500*time.Millisecond)
	assert.Equal(t, gm, p.GptpGrandmasterID)
	assert.Equal(t, uint8(5), p.GptpDomainNumber)
	assert.Equal(t, uint32(1), p.AvailableIndex)

	// 链路恢复时重新通告
	tb.m.SetLinkIsUp(false)
	tb.m.SetLinkIsUp(true)
	p = tb.recv(t, 500*time.Millisecond)
	assert.Equal(t, uint32(2), p.AvailableIndex)
}

func TestManager_Peers(t *testing.T) {
	var mu sync.Mutex
	var connected []avtp.EUI64
	tb := newTestbed(t, &Config{ValidTime: 62, FastConnect: true},
		WithFastConnect(func(peer *pdu.PDU) {
			mu.Lock()
			connected = append(connected, peer.EntityID)
			mu.Unlock()
		}))
	require.NoError(t, tb.m.Start())
	defer tb.m.Stop()

	remote := &pdu.PDU{
		MessageType:         pdu.EntityAvailable,
		ValidTime:           10,
		EntityID:            peerID,
		TalkerStreamSources: 2,
		AvailableIndex:      7,
	}
	tb.send(t, remote)
	remote.AvailableIndex = 8
	tb.send(t, remote)

	// 与本实体相同 entity_id 的通告忽略
	tb.send(t, &pdu.PDU{MessageType: pdu.EntityAvailable, EntityID: localID})

	assert.Eventually(t, func() bool {
		p, ok := tb.m.Peers().Get(peerID)
		return ok && p.AvailableIndex == 8
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, tb.m.Peers().Count())

	mu.Lock()
	assert.Equal(t, []avtp.EUI64{peerID}, connected)
	mu.Unlock()

	remote.MessageType = pdu.EntityDeparting
	tb.send(t, remote)
	assert.Eventually(t, func() bool {
		return tb.m.Peers().Count() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPeers_Expire(t *testing.T) {
	ps := NewPeers()
	now := time.Now()
	_, isNew := ps.Update(&pdu.PDU{EntityID: peerID, ValidTime: 1, AvailableIndex: 3}, peerMAC, now)
	assert.True(t, isNew)
	_, isNew = ps.Update(&pdu.PDU{EntityID: peerID, ValidTime: 1, AvailableIndex: 4}, peerMAC, now)
	assert.False(t, isNew)
	// available_index 回退视为重启
	_, isNew = ps.Update(&pdu.PDU{EntityID: peerID, ValidTime: 1, AvailableIndex: 0}, peerMAC, now)
	assert.True(t, isNew)

	ps.Update(&pdu.PDU{EntityID: localID, ValidTime: 31}, localMAC, now)
	list := ps.List()
	require.Len(t, list, 2)
	assert.Equal(t, localID, list[0].EntityID)
	assert.Equal(t, peerMAC.String(), list[1].MAC)

	expired := ps.Expire(now.Add(3 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, peerID, expired[0].EntityID)
	assert.True(t, expired[0].Expired)
	assert.Nil(t, ps.Remove(peerID))
	assert.NotNil(t, ps.Remove(localID))
}
