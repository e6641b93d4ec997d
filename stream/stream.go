// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stream AVTP 流数据单元的收发引擎。
// Stream 负责公共头、序号和丢包统计，格式相关的字段交给 Mapper 填写和解析。
package stream

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/cnotch/avbhub/network/rawsock"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/protos/eth"
	"github.com/cnotch/xlog"
)

// 错误定义
var (
	ErrInvalidConfig = errors.New("stream: invalid config")
	ErrDirection     = errors.New("stream: wrong direction")
)

// 接收等待的上下限
const (
	MaxRxTimeout = time.Second
	MinRxTimeout = time.Millisecond
)

// Mapper 格式映射模块
type Mapper interface {
	Subtype() avtp.Subtype
	// MaxDataSize 数据单元(不含以太网头)的最大长度
	MaxDataSize() int
	// TxCB 填写格式相关字段和负载，返回数据单元长度；ready 为 false 时不发送
	TxCB(pdu []byte) (n int, ready bool)
	// RxCB 解析收到的数据单元
	RxCB(pdu []byte) bool
}

// Config 流的网络参数
type Config struct {
	Name     string           `json:"name"`
	StreamID avtp.EUI64       `json:"stream_id"`
	DestMAC  net.HardwareAddr `json:"dest_mac"`
	VlanID   uint16           `json:"vlan_id"`
	VlanPCP  uint8            `json:"vlan_pcp"`
	TSEval   *TSEvalConfig    `json:"tseval,omitempty"`
}

// State 流的当前状态
type State struct {
	Talker  bool   `json:"talker"`
	Seq     uint8  `json:"seq"`
	Started bool   `json:"started"` // listener 已收到第一帧
	Paused  bool   `json:"paused"`
	Lost    uint32 `json:"lost"`
	Bytes   uint64 `json:"bytes"`
}

// Stream 一个 AVTP 流的收发端
type Stream struct {
	cfg    Config
	tx     bool
	sock   rawsock.Socket
	logger *xlog.Logger

	hdrLen   int
	buf      []byte
	expected uint8
	tsEval   *TSEval

	// 以下字段由运行协程写入，State 并发读取
	seq     uint32 // 低 8 位为下一个发送序号
	started int32
	lost    uint32
	bytes   uint64
	paused  int32
}

// OpenTx 打开发送流
func OpenTx(cfg *Config, sock rawsock.Socket, logger *xlog.Logger) (*Stream, error) {
	return open(cfg, sock, logger, true)
}

// OpenRx 打开接收流，加入目的组播
func OpenRx(cfg *Config, sock rawsock.Socket, logger *xlog.Logger) (*Stream, error) {
	return open(cfg, sock, logger, false)
}

func open(cfg *Config, sock rawsock.Socket, logger *xlog.Logger, tx bool) (*Stream, error) {
	if cfg == nil || sock == nil {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = xlog.L()
	}
	s := &Stream{
		cfg:    *cfg,
		tx:     tx,
		sock:   sock,
		logger: logger,
	}
	if cfg.TSEval != nil {
		s.tsEval = NewTSEval(*cfg.TSEval, func(r TSReport) {
			s.logger.Infof("tseval: %s", r)
		})
	}
	if err := s.openSock(tx); err != nil {
		return nil, err
	}
	return s, nil
}

// openSock 发送端预先写好以太网头，接收端加入组播
func (s *Stream) openSock(tx bool) error {
	if len(s.cfg.DestMAC) != 6 {
		return fmt.Errorf("%w: dest mac %q", ErrInvalidConfig, s.cfg.DestMAC)
	}

	if !tx {
		if s.cfg.DestMAC[0]&0x01 != 0 {
			if err := s.sock.JoinMulticast(s.cfg.DestMAC); err != nil {
				return fmt.Errorf("stream %s: join %s: %w", s.cfg.Name, s.cfg.DestMAC, err)
			}
		}
		s.buf = make([]byte, rawsock.MaxFrameLen)
		return nil
	}

	hdr := eth.Header{
		Dst:       s.cfg.DestMAC,
		Src:       s.sock.Addr(),
		VLAN:      s.cfg.VlanID != 0,
		VID:       s.cfg.VlanID,
		PCP:       s.cfg.VlanPCP,
		EtherType: avtp.EtherType,
	}
	s.buf = make([]byte, rawsock.MaxFrameLen)
	n, err := hdr.Encode(s.buf)
	if err != nil {
		return err
	}
	s.hdrLen = n
	return nil
}

// Config 流配置
func (s *Stream) Config() Config { return s.cfg }

// Tx 生成并发送一个数据单元。
// 映射模块没有数据或流已暂停时不发送，也不推进序号。
func (s *Stream) Tx(m Mapper) (sent bool, err error) {
	if !s.tx {
		return false, ErrDirection
	}
	size := m.MaxDataSize()
	if s.hdrLen+size > len(s.buf) {
		return false, fmt.Errorf("%w: data unit of %d bytes", ErrInvalidConfig, size)
	}

	pdu := s.buf[s.hdrLen : s.hdrLen+size]
	for i := 0; i < avtp.StreamHdrLen && i < len(pdu); i++ {
		pdu[i] = 0
	}
	// cd=0，version=0
	setField(pdu, avtp.FieldSubtype, uint64(m.Subtype()))
	setField(pdu, avtp.FieldSV, 1)
	setField(pdu, avtp.FieldSeqNum, uint64(uint8(atomic.LoadUint32(&s.seq))))
	setField(pdu, avtp.FieldStreamID, s.cfg.StreamID.Uint64())

	n, ready := m.TxCB(pdu)
	if !ready || s.Paused() {
		return false, nil
	}

	if s.tsEval != nil {
		s.evalTimestamp(pdu[:n])
	}
	if err = s.sock.Send(s.buf[:s.hdrLen+n]); err != nil {
		return false, err
	}
	atomic.AddUint32(&s.seq, 1)
	atomic.AddUint64(&s.bytes, uint64(n))
	return true, nil
}

// Rx 接收一个数据单元并交给映射模块，complete 表示收到了本流的有效数据单元
func (s *Stream) Rx(m Mapper, timeout time.Duration) (complete bool, err error) {
	if s.tx {
		return false, ErrDirection
	}
	n, err := s.sock.Recv(s.buf, timeout)
	if err == rawsock.ErrTimeout {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	h, off, err := eth.Parse(s.buf[:n])
	if err != nil || h.EtherType != avtp.EtherType {
		return false, nil
	}
	pdu := s.buf[off:n]
	if len(pdu) < avtp.StreamHdrLen {
		return false, nil
	}
	// 控制数据单元和未知版本直接丢弃
	if avtp.Subtype(pdu[0]).IsControl() || getField(pdu, avtp.FieldVersion) != 0 {
		return false, nil
	}
	if avtp.Subtype(pdu[0]) != m.Subtype() {
		return false, nil
	}
	if !s.cfg.StreamID.IsZero() && getField(pdu, avtp.FieldStreamID) != s.cfg.StreamID.Uint64() {
		return false, nil
	}

	seq := uint8(getField(pdu, avtp.FieldSeqNum))
	if atomic.LoadInt32(&s.started) == 1 && seq != s.expected {
		lost := uint32(seq - s.expected)
		atomic.AddUint32(&s.lost, lost)
		s.logger.Debugf("stream %s: sequence %d, expected %d", s.cfg.Name, seq, s.expected)
	}
	atomic.StoreInt32(&s.started, 1)
	s.expected = seq + 1
	atomic.AddUint64(&s.bytes, uint64(len(pdu)))

	if s.tsEval != nil {
		s.evalTimestamp(pdu)
	}
	m.RxCB(pdu)
	return true, nil
}

// evalTimestamp 评估 tv=1 且 tu=0 的时间戳，平滑时回写
func (s *Stream) evalTimestamp(pdu []byte) {
	if getField(pdu, avtp.FieldTV) != 1 || getField(pdu, avtp.FieldTU) != 0 {
		return
	}
	ts := uint32(getField(pdu, avtp.FieldTimestamp))
	if out := s.tsEval.Eval(ts); out != ts {
		setField(pdu, avtp.FieldTimestamp, uint64(out))
	}
}

// Lost 读取并清零丢失的数据单元数
func (s *Stream) Lost() uint32 { return atomic.SwapUint32(&s.lost, 0) }

// Bytes 读取并清零收发的字节数
func (s *Stream) Bytes() uint64 { return atomic.SwapUint64(&s.bytes, 0) }

// Pause 暂停或恢复，暂停的发送端不发送数据单元
func (s *Stream) Pause(pause bool) {
	var v int32
	if pause {
		v = 1
	}
	if atomic.SwapInt32(&s.paused, v) != v {
		s.logger.Infof("stream %s paused=%v", s.cfg.Name, pause)
	}
}

// Paused 是否暂停
func (s *Stream) Paused() bool { return atomic.LoadInt32(&s.paused) == 1 }

// State 当前状态，不清零计数
func (s *Stream) State() State {
	return State{
		Talker:  s.tx,
		Seq:     uint8(atomic.LoadUint32(&s.seq)),
		Started: atomic.LoadInt32(&s.started) == 1,
		Paused:  s.Paused(),
		Lost:    atomic.LoadUint32(&s.lost),
		Bytes:   atomic.LoadUint64(&s.bytes),
	}
}

// Close 关闭套接字
func (s *Stream) Close() error {
	return s.sock.Close()
}

// RxTimeout 接收等待时长：媒体队列有待呈现单元时等到它的呈现时间，
// 否则等待 MaxRxTimeout；结果不小于 MinRxTimeout
func RxTimeout(tillTail time.Duration, pending bool) time.Duration {
	d := MaxRxTimeout
	if pending && tillTail < d {
		d = tillTail
	}
	if d < MinRxTimeout {
		d = MinRxTimeout
	}
	return d
}

func setField(pdu []byte, f avtp.Field, v uint64) {
	_ = avtp.SetField(pdu, f, v)
}

func getField(pdu []byte, f avtp.Field) uint64 {
	v, _ := avtp.GetField(pdu, f)
	return v
}
