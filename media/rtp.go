// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

import (
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/pion/rtp"
)

// DefaultPayloadType RTP 动态负载类型
const DefaultPayloadType = 96

// EncodingName AAF 格式对应的 RTP 编码名(RFC 3190/3551)，不支持时返回空
func EncodingName(f avtp.AAFFormat) string {
	switch f {
	case avtp.AAFFormatInt16:
		return "L16"
	case avtp.AAFFormatInt24:
		return "L24"
	}
	return ""
}

// RTPSink 将到期的 AAF 负载转为 RTP 包发往 UDP 地址的 Sink。
// L16/L24 与 AAF 整数格式一样是网络字节序，负载不需要转换。
type RTPSink struct {
	conn     net.Conn
	format   aem.AAFFormat
	frameLen int // 一个采样帧(所有声道)的字节数
	now      func() time.Time
	header   rtp.Header
}

// DialRTP 创建 RTP 桥接
func DialRTP(addr string, pt uint8, m *AAF) (*RTPSink, error) {
	f := m.Format()
	if EncodingName(f.Format) == "" {
		return nil, fmt.Errorf("%w: rtp bridge needs 16 or 24 bit samples", ErrUnsupportedFormat)
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	return &RTPSink{
		conn:     conn,
		format:   f,
		frameLen: m.sampleSize * int(f.ChannelsPerFrame),
		now:      m.now,
		header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: uint16(rand.Uint32()),
			Timestamp:      rand.Uint32(),
			SSRC:           rand.Uint32(),
		},
	}, nil
}

// RemoteAddr 目的地址
func (s *RTPSink) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// RxCB 发送所有到期的单元
func (s *RTPSink) RxCB(q *Queue) error {
	now := s.now()
	for it := q.PopDue(now); it != nil; it = q.PopDue(now) {
		pkt := &rtp.Packet{Header: s.header, Payload: it.Data}
		b, err := pkt.Marshal()
		if err != nil {
			return err
		}
		if _, err = s.conn.Write(b); err != nil {
			return err
		}
		s.header.SequenceNumber++
		s.header.Timestamp += uint32(len(it.Data) / s.frameLen)
	}
	return nil
}

// Close 关闭连接
func (s *RTPSink) Close() error {
	return s.conn.Close()
}

// RTPSource 从 UDP 接收 L16/L24 RTP 包的 Source
type RTPSource struct {
	conn    net.PacketConn
	payload int
	now     func() time.Time
	buf     []byte
	pending []byte
	lost    uint32
	lastSeq uint16
	started bool
}

// ListenRTP 监听 UDP 地址
func ListenRTP(addr string, m *AAF) (*RTPSource, error) {
	if EncodingName(m.Format().Format) == "" {
		return nil, fmt.Errorf("%w: rtp bridge needs 16 or 24 bit samples", ErrUnsupportedFormat)
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &RTPSource{
		conn:    conn,
		payload: m.PayloadSize(),
		now:     m.now,
		buf:     make([]byte, 2048),
	}, nil
}

// LocalAddr 监听地址
func (s *RTPSource) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Lost 按 RTP 序号统计的丢包数
func (s *RTPSource) Lost() uint32 { return s.lost }

// TxCB 读取已到达的 RTP 包，按 AAF 负载长度切分入列
func (s *RTPSource) TxCB(q *Queue) error {
	for q.Len() < q.Cap() {
		s.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, _, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return err
		}

		var pkt rtp.Packet
		if err = pkt.Unmarshal(s.buf[:n]); err != nil {
			continue
		}
		if s.started && pkt.SequenceNumber != s.lastSeq+1 {
			s.lost += uint32(pkt.SequenceNumber - s.lastSeq - 1)
		}
		s.started = true
		s.lastSeq = pkt.SequenceNumber

		s.pending = append(s.pending, pkt.Payload...)
		now := s.now()
		for len(s.pending) >= s.payload {
			data := make([]byte, s.payload)
			copy(data, s.pending)
			s.pending = s.pending[s.payload:]
			if !q.Push(&Item{Data: data, Time: now}) {
				break
			}
		}
	}
	return nil
}

// Close 关闭连接
func (s *RTPSource) Close() error {
	return s.conn.Close()
}
