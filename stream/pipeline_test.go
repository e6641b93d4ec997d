// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/media"
	"github.com/cnotch/avbhub/network/rawsock"
	"github.com/cnotch/avbhub/protos/avtp"
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

// memSource 产生 frames 帧后结束
type memSource struct {
	frames  int
	payload int
	sent    int
}

func (s *memSource) TxCB(q *media.Queue) error {
	for s.sent < s.frames && q.Len() < q.Cap() {
		data := make([]byte, s.payload)
		data[0] = byte(s.sent)
		q.Push(&media.Item{Data: data, Time: time.Now()})
		s.sent++
	}
	if s.sent == s.frames {
		return io.EOF
	}
	return nil
}

func (s *memSource) Close() error { return nil }

type memSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *memSink) RxCB(q *media.Queue) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for it := q.PopDue(now); it != nil; it = q.PopDue(now) {
		s.frames = append(s.frames, it.Data)
	}
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newPair(t *testing.T, hub *rawsock.Hub, frames int) (*Runner, *Runner, *memSink) {
	txCfg, rxCfg := testConfig(), testConfig()
	txCfg.Name, rxCfg.Name = "talker", "listener"

	txMapper, err := media.NewAAF(stereo16, media.NewQueue(0))
	require.NoError(t, err)
	talker, err := NewTalker(txCfg, 0, hub.Open(talkerMAC, avtp.EtherType), txMapper,
		&memSource{frames: frames, payload: txMapper.PayloadSize()}, nil)
	require.NoError(t, err)

	rxMapper, err := media.NewAAF(stereo16, media.NewQueue(0))
	require.NoError(t, err)
	sink := &memSink{}
	listener, err := NewListener(rxCfg, 0, hub.Open(listenMAC, avtp.EtherType), rxMapper, sink, nil)
	require.NoError(t, err)
	return talker, listener, sink
}

func TestPipeline(t *testing.T) {
	hub := rawsock.NewHub()
	talker, listener, sink := newPair(t, hub, 10)

	p := NewPipeline(nil, nil)
	require.NoError(t, p.Add(listener))
	p.Start()
	require.NoError(t, p.Add(talker))
	assert.True(t, errors.Is(p.Add(talker), ErrDuplicate))

	deadline := time.Now().Add(2 * time.Second)
	for sink.Len() < 10 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 10, sink.Len())
	for i, data := range sink.frames {
		assert.Equal(t, byte(i), data[0])
	}

	st, err := p.StreamState(aem.TypeStreamInput, 0)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.True(t, st.Connected)
	assert.Equal(t, uint32(10), st.FramesRx)
	assert.Equal(t, uint32(1), st.MediaLocked)
	assert.Equal(t, uint32(0), st.SeqMismatch)
	assert.Equal(t, stereo16.StreamFormat(), st.Format)
	assert.Equal(t, streamID, st.StreamID)

	st, err = p.StreamState(aem.TypeStreamOutput, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), st.FramesTx)

	_, err = p.StreamState(aem.TypeStreamInput, 5)
	assert.Equal(t, aem.ErrNotAvailable, err)

	sample := p.Flow().GetSample()
	assert.Equal(t, int64(10), sample.OutFrames)
	assert.Equal(t, int64(10), sample.InFrames)

	infos := p.Infos()
	require.Len(t, infos, 2)
	assert.False(t, infos[0].Talker)

	require.NoError(t, p.Pause(aem.TypeStreamOutput, 0, true))
	st, _ = p.StreamState(aem.TypeStreamOutput, 0)
	assert.True(t, st.Paused)
	assert.Equal(t, ErrNotFound, p.Pause(aem.TypeStreamOutput, 3, true))
	assert.Equal(t, ErrNotFound, p.PauseByName("nothing", true))

	p.Stop()
	assert.Empty(t, p.Runners())
	assert.False(t, listener.State().Running)
	assert.False(t, talker.State().Running)
}

func TestPipelineGrandmaster(t *testing.T) {
	p := NewPipeline(nil, nil)
	_, _, err := p.Grandmaster()
	assert.Equal(t, aem.ErrNotAvailable, err)

	gm := avtp.EUI64FromUint64(0x0011223344556677)
	p.SetGrandmaster(gm, 3)
	id, domain, err := p.Grandmaster()
	require.NoError(t, err)
	assert.Equal(t, gm, id)
	assert.Equal(t, uint8(3), domain)
}
