// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
)

// 错误定义
var (
	ErrUnsupportedFormat = errors.New("media: unsupported stream format")
)

// maxPayload 单帧负载上限(以太网 MTU 减去 AVTP 流头)
const maxPayload = 1500 - avtp.StreamHdrLen

// AAF AVTP 音频格式映射模块
type AAF struct {
	q           *Queue
	format      aem.AAFFormat
	sampleSize  int
	payload     int
	transit     time.Duration
	now         func() time.Time
	unsupported uint32
}

// AAFOption AAF 映射选项
type AAFOption interface {
	apply(*AAF)
}

type aafOptionFunc func(*AAF)

func (f aafOptionFunc) apply(m *AAF) {
	f(m)
}

// WithTransit 最大传输时间：发送时加到时间戳上，接收时延后呈现
func WithTransit(d time.Duration) AAFOption {
	return aafOptionFunc(func(m *AAF) {
		m.transit = d
	})
}

// WithClock 本地时钟，测试时替换
func WithClock(now func() time.Time) AAFOption {
	return aafOptionFunc(func(m *AAF) {
		m.now = now
	})
}

// NewAAF 创建 AAF 映射，f 必须是整数 PCM 格式
func NewAAF(f aem.AAFFormat, q *Queue, options ...AAFOption) (*AAF, error) {
	size := f.Format.SampleSize()
	if f.Nsr.Rate() == 0 || size == 0 || f.ChannelsPerFrame == 0 || f.SamplesPerFrame == 0 {
		return nil, fmt.Errorf("%w: %+v", ErrUnsupportedFormat, f)
	}
	payload := int(f.SamplesPerFrame) * int(f.ChannelsPerFrame) * size
	if payload > maxPayload {
		return nil, fmt.Errorf("%w: payload %d exceeds %d", ErrUnsupportedFormat, payload, maxPayload)
	}

	m := &AAF{
		q:          q,
		format:     f,
		sampleSize: size,
		payload:    payload,
		transit:    2 * time.Millisecond,
		now:        time.Now,
	}
	for _, option := range options {
		option.apply(m)
	}
	return m, nil
}

// Subtype AVTP 子类型
func (m *AAF) Subtype() avtp.Subtype { return avtp.SubtypeAAF }

// MaxDataSize AVTP 数据单元的最大长度
func (m *AAF) MaxDataSize() int { return avtp.StreamHdrLen + m.payload }

// PayloadSize 每帧负载字节数
func (m *AAF) PayloadSize() int { return m.payload }

// Queue 媒体队列
func (m *AAF) Queue() *Queue { return m.q }

// Format 音频格式
func (m *AAF) Format() aem.AAFFormat { return m.format }

// FrameInterval 每帧的时长
func (m *AAF) FrameInterval() time.Duration {
	return time.Duration(m.format.SamplesPerFrame) * time.Second / time.Duration(m.format.Nsr.Rate())
}

// Unsupported 收到的格式不符的帧数
func (m *AAF) Unsupported() uint32 { return atomic.LoadUint32(&m.unsupported) }

// TxCB 取出到期的媒体单元填充数据单元；没有到期单元时 ready 为 false
func (m *AAF) TxCB(pdu []byte) (n int, ready bool) {
	if len(pdu) < m.MaxDataSize() {
		return 0, false
	}
	it := m.q.PopDue(m.now())
	if it == nil {
		return 0, false
	}

	size := len(it.Data)
	if size > m.payload {
		size = m.payload
	}
	ts := uint32(it.Time.Add(m.transit).UnixNano())
	if it.TSValid {
		ts = it.Timestamp
	}

	setField(pdu, avtp.FieldAAFFormat, uint64(m.format.Format))
	setField(pdu, avtp.FieldAAFNsr, uint64(m.format.Nsr))
	setField(pdu, avtp.FieldAAFChanPerFrame, uint64(m.format.ChannelsPerFrame))
	setField(pdu, avtp.FieldAAFBitDepth, uint64(m.format.BitDepth))
	setField(pdu, avtp.FieldStreamDataLen, uint64(size))
	setField(pdu, avtp.FieldAAFSP, 0)
	setField(pdu, avtp.FieldTV, 1)
	setField(pdu, avtp.FieldTimestamp, uint64(ts))
	copy(pdu[avtp.StreamHdrLen:], it.Data[:size])
	return avtp.StreamHdrLen + size, true
}

// RxCB 校验格式后将负载放入媒体队列
func (m *AAF) RxCB(pdu []byte) bool {
	if len(pdu) < avtp.StreamHdrLen {
		return false
	}
	if !m.matches(pdu) {
		atomic.AddUint32(&m.unsupported, 1)
		return false
	}

	size := int(getField(pdu, avtp.FieldStreamDataLen))
	if avtp.StreamHdrLen+size > len(pdu) {
		return false
	}

	data := make([]byte, size)
	copy(data, pdu[avtp.StreamHdrLen:])
	return m.q.Push(&Item{
		Data:      data,
		Time:      m.now().Add(m.transit),
		Timestamp: uint32(getField(pdu, avtp.FieldTimestamp)),
		TSValid:   getField(pdu, avtp.FieldTV) == 1,
	})
}

func (m *AAF) matches(pdu []byte) bool {
	return avtp.Subtype(getField(pdu, avtp.FieldSubtype)) == avtp.SubtypeAAF &&
		avtp.AAFFormat(getField(pdu, avtp.FieldAAFFormat)) == m.format.Format &&
		avtp.Nsr(getField(pdu, avtp.FieldAAFNsr)) == m.format.Nsr &&
		uint16(getField(pdu, avtp.FieldAAFChanPerFrame)) == m.format.ChannelsPerFrame &&
		uint8(getField(pdu, avtp.FieldAAFBitDepth)) == m.format.BitDepth
}

// 调用方已保证 pdu 长度覆盖流头
func setField(pdu []byte, f avtp.Field, v uint64) {
	_ = avtp.SetField(pdu, f, v)
}

func getField(pdu []byte, f avtp.Field) uint64 {
	v, _ := avtp.GetField(pdu, f)
	return v
}

// PutSamples 将采样按大端写入 dst，返回写入的字节数
func PutSamples(dst []byte, samples []int, size int) int {
	n := 0
	for _, s := range samples {
		if n+size > len(dst) {
			break
		}
		for i := size - 1; i >= 0; i-- {
			dst[n+i] = byte(s)
			s >>= 8
		}
		n += size
	}
	return n
}

// Samples 从大端负载读取有符号采样
func Samples(src []byte, size int, samples []int) []int {
	shift := uint(64 - size*8)
	for n := 0; n+size <= len(src); n += size {
		var v int64
		for i := 0; i < size; i++ {
			v = v<<8 | int64(src[n+i])
		}
		samples = append(samples, int(v<<shift>>shift))
	}
	return samples
}
