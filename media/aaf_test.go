// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

import (
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/pixelbender/go-sdp/sdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stereo16 = aem.AAFFormat{
	Nsr:              avtp.Nsr48KHz,
	Format:           avtp.AAFFormatInt16,
	BitDepth:         16,
	ChannelsPerFrame: 2,
	SamplesPerFrame:  6,
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func TestNewAAF(t *testing.T) {
	m, err := NewAAF(stereo16, NewQueue(0))
	require.NoError(t, err)
	assert.Equal(t, 24, m.PayloadSize())
	assert.Equal(t, avtp.StreamHdrLen+24, m.MaxDataSize())
	assert.Equal(t, 125*time.Microsecond, m.FrameInterval())

	bad := stereo16
	bad.Format = avtp.AAFFormatUser
	_, err = NewAAF(bad, NewQueue(0))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	bad = stereo16
	bad.SamplesPerFrame = 1000
	_, err = NewAAF(bad, NewQueue(0))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestAAFMapping(t *testing.T) {
	clock := &fixedClock{t: time.Unix(100, 0)}
	txq, rxq := NewQueue(0), NewQueue(0)
	tx, err := NewAAF(stereo16, txq, WithClock(clock.now), WithTransit(time.Millisecond))
	require.NoError(t, err)
	rx, err := NewAAF(stereo16, rxq, WithClock(clock.now), WithTransit(0))
	require.NoError(t, err)

	pdu := make([]byte, tx.MaxDataSize())
	require.NoError(t, avtp.AAFInit(pdu))

	_, ready := tx.TxCB(pdu)
	assert.False(t, ready, "empty queue")

	data := make([]byte, 24)
	for i := range data {
		data[i] = byte(i)
	}
	txq.Push(&Item{Data: data, Time: clock.t.Add(time.Millisecond)})
	_, ready = tx.TxCB(pdu)
	assert.False(t, ready, "not due")

	clock.t = clock.t.Add(time.Millisecond)
	n, ready := tx.TxCB(pdu)
	require.True(t, ready)
	assert.Equal(t, len(pdu), n)
	tv, _ := avtp.GetField(pdu, avtp.FieldTV)
	assert.Equal(t, uint64(1), tv)
	ts, _ := avtp.GetField(pdu, avtp.FieldTimestamp)
	assert.Equal(t, uint64(uint32(clock.t.Add(time.Millisecond).UnixNano())), ts)
	dl, _ := avtp.GetField(pdu, avtp.FieldStreamDataLen)
	assert.Equal(t, uint64(24), dl)

	assert.True(t, rx.RxCB(pdu))
	it := rxq.PopDue(clock.t)
	require.NotNil(t, it)
	assert.Equal(t, data, it.Data)
	assert.True(t, it.TSValid)
	assert.Equal(t, uint32(ts), it.Timestamp)

	// 声道数不符
	_ = avtp.SetField(pdu, avtp.FieldAAFChanPerFrame, 8)
	assert.False(t, rx.RxCB(pdu))
	assert.Equal(t, uint32(1), rx.Unsupported())

	// 数据长度超出帧
	_ = avtp.SetField(pdu, avtp.FieldAAFChanPerFrame, 2)
	_ = avtp.SetField(pdu, avtp.FieldStreamDataLen, 100)
	assert.False(t, rx.RxCB(pdu))
}

func TestSamples(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		samples []int
	}{
		{"int16", 2, []int{0, 1, -1, 32767, -32768}},
		{"int24", 3, []int{0, 1, -1, 8388607, -8388608}},
		{"int32", 4, []int{0, -2, 2147483647, -2147483648}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, len(tt.samples)*tt.size)
			assert.Equal(t, len(buf), PutSamples(buf, tt.samples, tt.size))
			assert.Equal(t, tt.samples, Samples(buf, tt.size, nil))
		})
	}
}

func TestWAV(t *testing.T) {
	clock := &fixedClock{t: time.Unix(100, 0)}
	path := filepath.Join(t.TempDir(), "tone.wav")

	m, err := NewAAF(stereo16, NewQueue(0), WithClock(clock.now))
	require.NoError(t, err)

	rec, err := CreateWAVRecorder(path, m)
	require.NoError(t, err)
	q := NewQueue(0)
	var frames [][]byte
	for i := 0; i < 4; i++ {
		data := make([]byte, m.PayloadSize())
		PutSamples(data, []int{i, -i, i * 100, -i * 100, 7, -7, 0, 1, 2, 3, 4, 5}, 2)
		frames = append(frames, data)
		q.Push(&Item{Data: data, Time: clock.t})
	}
	require.NoError(t, rec.RxCB(q))
	assert.Equal(t, 0, q.Len())
	require.NoError(t, rec.Close())

	src, err := OpenWAVSource(path, m, false)
	require.NoError(t, err)
	defer src.Close()

	// 文件只有 4 帧，一次补充就读到结尾
	err = src.TxCB(q)
	assert.Equal(t, io.EOF, err)
	require.Equal(t, 4, q.Len())
	for _, data := range frames {
		assert.Equal(t, data, q.Pop().Data)
	}
}

func TestDescribe(t *testing.T) {
	dst := &net.UDPAddr{IP: net.ParseIP("239.1.1.1"), Port: 5004}
	raw, err := Describe("mic", dst, DefaultPayloadType, stereo16)
	require.NoError(t, err)

	s, err := sdp.ParseString(raw)
	require.NoError(t, err)
	require.Len(t, s.Media, 1)
	assert.Equal(t, "audio", s.Media[0].Type)
	assert.Equal(t, 5004, s.Media[0].Port)
	require.NotEmpty(t, s.Media[0].Format)
	assert.Equal(t, "L16", s.Media[0].Format[0].Name)
	assert.Equal(t, 48000, s.Media[0].Format[0].ClockRate)
	assert.Equal(t, 2, s.Media[0].Format[0].Channels)

	f := stereo16
	f.Format = avtp.AAFFormatFloat32
	_, err = Describe("mic", dst, DefaultPayloadType, f)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestRTPBridge(t *testing.T) {
	clock := &fixedClock{t: time.Unix(100, 0)}
	m, err := NewAAF(stereo16, NewQueue(0), WithClock(clock.now))
	require.NoError(t, err)

	src, err := ListenRTP("127.0.0.1:0", m)
	require.NoError(t, err)
	defer src.Close()
	sink, err := DialRTP(src.LocalAddr().String(), DefaultPayloadType, m)
	require.NoError(t, err)
	defer sink.Close()

	out := NewQueue(0)
	data := make([]byte, m.PayloadSize())
	for i := range data {
		data[i] = byte(i + 1)
	}
	out.Push(&Item{Data: data, Time: clock.t})
	out.Push(&Item{Data: data, Time: clock.t})
	require.NoError(t, sink.RxCB(out))

	in := NewQueue(0)
	deadline := time.Now().Add(time.Second)
	for in.Len() < 2 && time.Now().Before(deadline) {
		require.NoError(t, src.TxCB(in))
	}
	require.Equal(t, 2, in.Len())
	assert.Equal(t, data, in.Pop().Data)
	assert.Equal(t, uint32(0), src.Lost())
}
