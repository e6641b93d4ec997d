// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cnotch/avbhub/network/rawsock"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/protos/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	talkerMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	listenMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	groupMAC  = net.HardwareAddr{0x91, 0xe0, 0xf0, 0x00, 0xfe, 0x01}
	streamID  = avtp.StreamIDFrom(talkerMAC, 1)
)

// fixedMapper 发送固定负载，记录收到的序号
type fixedMapper struct {
	ready bool
	rx    []uint8
	ts    []uint32
}

func (m *fixedMapper) Subtype() avtp.Subtype { return avtp.SubtypeAAF }
func (m *fixedMapper) MaxDataSize() int      { return avtp.StreamHdrLen + 8 }

func (m *fixedMapper) TxCB(pdu []byte) (int, bool) {
	_ = avtp.SetField(pdu, avtp.FieldStreamDataLen, 8)
	return m.MaxDataSize(), m.ready
}

func (m *fixedMapper) RxCB(pdu []byte) bool {
	seq, _ := avtp.GetField(pdu, avtp.FieldSeqNum)
	ts, _ := avtp.GetField(pdu, avtp.FieldTimestamp)
	m.rx = append(m.rx, uint8(seq))
	m.ts = append(m.ts, uint32(ts))
	return true
}

func testConfig() *Config {
	return &Config{Name: "test", StreamID: streamID, DestMAC: groupMAC}
}

// rawFrame 构造一个流数据单元帧
func rawFrame(t *testing.T, subtype uint8, version uint8, seq uint8, id avtp.EUI64) []byte {
	frame := make([]byte, eth.HeaderLen+avtp.StreamHdrLen+8)
	h := eth.Header{Dst: groupMAC, Src: talkerMAC, EtherType: avtp.EtherType}
	_, err := h.Encode(frame)
	require.NoError(t, err)
	pdu := frame[eth.HeaderLen:]
	pdu[0] = subtype
	require.NoError(t, avtp.SetField(pdu, avtp.FieldSV, 1))
	require.NoError(t, avtp.SetField(pdu, avtp.FieldVersion, uint64(version)))
	require.NoError(t, avtp.SetField(pdu, avtp.FieldSeqNum, uint64(seq)))
	require.NoError(t, avtp.SetField(pdu, avtp.FieldStreamID, id.Uint64()))
	return frame
}

func TestOpen(t *testing.T) {
	hub := rawsock.NewHub()
	_, err := OpenTx(&Config{Name: "bad"}, hub.Open(talkerMAC, avtp.EtherType), nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	_, err = OpenRx(nil, hub.Open(listenMAC, avtp.EtherType), nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	tx, err := OpenTx(testConfig(), hub.Open(talkerMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	_, err = tx.Rx(&fixedMapper{}, time.Millisecond)
	assert.True(t, errors.Is(err, ErrDirection))

	rx, err := OpenRx(testConfig(), hub.Open(listenMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	_, err = rx.Tx(&fixedMapper{})
	assert.True(t, errors.Is(err, ErrDirection))
}

func TestTxRx(t *testing.T) {
	hub := rawsock.NewHub()
	tx, err := OpenTx(testConfig(), hub.Open(talkerMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	rx, err := OpenRx(testConfig(), hub.Open(listenMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	defer tx.Close()
	defer rx.Close()

	out, in := &fixedMapper{ready: true}, &fixedMapper{}

	sent, err := tx.Tx(out)
	require.NoError(t, err)
	assert.True(t, sent)

	// 映射模块未就绪时不发送也不推进序号
	out.ready = false
	sent, err = tx.Tx(out)
	require.NoError(t, err)
	assert.False(t, sent)

	// 暂停时不发送也不推进序号
	out.ready = true
	tx.Pause(true)
	assert.True(t, tx.Paused())
	sent, err = tx.Tx(out)
	require.NoError(t, err)
	assert.False(t, sent)
	tx.Pause(false)

	sent, err = tx.Tx(out)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, uint8(2), tx.State().Seq)

	for i := 0; i < 2; i++ {
		complete, err := rx.Rx(in, time.Second)
		require.NoError(t, err)
		assert.True(t, complete)
	}
	assert.Equal(t, []uint8{0, 1}, in.rx)
	assert.Equal(t, uint32(0), rx.Lost())
	assert.Equal(t, uint64(2*out.MaxDataSize()), tx.Bytes())
	assert.Equal(t, uint64(0), tx.Bytes(), "read resets")

	complete, err := rx.Rx(in, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, complete, "timeout")
}

func TestSequenceLoss(t *testing.T) {
	hub := rawsock.NewHub()
	talker := hub.Open(talkerMAC, avtp.EtherType)
	rx, err := OpenRx(testConfig(), hub.Open(listenMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	defer rx.Close()

	tests := []struct {
		name string
		seq  uint8
		lost uint32
	}{
		{"first frame is exempt", 200, 0},
		{"in order", 201, 0},
		{"gap of 3", 205, 3},
		{"in order after gap", 206, 0},
		{"wrap", 2, 51},
		{"duplicate", 2, 255},
	}
	in := &fixedMapper{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, talker.Send(rawFrame(t, 0x02, 0, tt.seq, streamID)))
			complete, err := rx.Rx(in, time.Second)
			require.NoError(t, err)
			assert.True(t, complete)
			assert.Equal(t, tt.lost, rx.Lost())
		})
	}
}

func TestRxDrops(t *testing.T) {
	hub := rawsock.NewHub()
	talker := hub.Open(talkerMAC, avtp.EtherType)
	rx, err := OpenRx(testConfig(), hub.Open(listenMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	defer rx.Close()

	tests := []struct {
		name  string
		frame []byte
	}{
		{"control", rawFrame(t, 0xfb, 0, 0, streamID)},
		{"version", rawFrame(t, 0x02, 1, 0, streamID)},
		{"subtype", rawFrame(t, 0x03, 0, 0, streamID)},
		{"stream id", rawFrame(t, 0x02, 0, 0, avtp.StreamIDFrom(talkerMAC, 9))},
	}
	in := &fixedMapper{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, talker.Send(tt.frame))
			complete, err := rx.Rx(in, time.Second)
			require.NoError(t, err)
			assert.False(t, complete)
		})
	}
	assert.Empty(t, in.rx)
	assert.False(t, rx.State().Started)
}

func TestRxTimeout(t *testing.T) {
	assert.Equal(t, MaxRxTimeout, RxTimeout(0, false))
	assert.Equal(t, MaxRxTimeout, RxTimeout(5*time.Second, true))
	assert.Equal(t, 20*time.Millisecond, RxTimeout(20*time.Millisecond, true))
	assert.Equal(t, MinRxTimeout, RxTimeout(0, true))
	assert.Equal(t, MinRxTimeout, RxTimeout(time.Microsecond, true))
}

func TestStateWhileRunning(t *testing.T) {
	hub := rawsock.NewHub()
	tx, err := OpenTx(testConfig(), hub.Open(talkerMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	rx, err := OpenRx(testConfig(), hub.Open(listenMAC, avtp.EtherType), nil)
	require.NoError(t, err)
	defer tx.Close()
	defer rx.Close()

	const frames = 300
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out := &fixedMapper{ready: true}
		for i := 0; i < frames; i++ {
			_, _ = tx.Tx(out)
		}
	}()
	go func() {
		defer wg.Done()
		in := &fixedMapper{}
		for {
			complete, err := rx.Rx(in, 50*time.Millisecond)
			if err != nil || !complete {
				return
			}
		}
	}()

	// 运行协程收发的同时读取状态
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			_ = tx.State()
			_ = rx.State()
		}
	}

	assert.Equal(t, uint8(frames%256), tx.State().Seq)
	assert.True(t, rx.State().Started)
	assert.False(t, tx.State().Started)
}
