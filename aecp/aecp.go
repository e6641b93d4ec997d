// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package aecp AEM 实体端的命令处理状态机。
// 接收例程按目标实体过滤命令并放入 FIFO，状态机例程按序处理并原地应答。
package aecp

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/events"
	"github.com/cnotch/avbhub/network/rawsock"
	pdu "github.com/cnotch/avbhub/protos/aecp"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/protos/eth"
	"github.com/cnotch/queue"
	"github.com/cnotch/xlog"
	"github.com/kelindar/rate"
)

// 错误定义
var (
	ErrStarted    = errors.New("aecp: already started")
	ErrNotStarted = errors.New("aecp: not started")
)

// MaxUnsolicited 可注册非请求通知的控制器上限
const MaxUnsolicited = 16

// Pipeline 流的启停
type Pipeline interface {
	Pause(t aem.DescriptorType, index uint16, pause bool) error
}

// InterfaceCounters AVB_INTERFACE 计数
type InterfaceCounters struct {
	LinkUp    uint32
	LinkDown  uint32
	FramesTx  uint32
	FramesRx  uint32
	GmChanged uint32
}

// ClockDomainCounters CLOCK_DOMAIN 计数
type ClockDomainCounters struct {
	Locked   uint32
	Unlocked uint32
}

// CounterSource GET_COUNTERS 的数据来源，每项独立获取
type CounterSource interface {
	// EntityCounter ENTITY_SPECIFIC_1..8，i 从 0 开始
	EntityCounter(i int) (uint32, error)
	InterfaceCounters(index uint16) (InterfaceCounters, error)
	ClockDomainCounters(index uint16) (ClockDomainCounters, error)
}

// command 待处理的命令
type command struct {
	pdu *pdu.PDU
	src net.HardwareAddr
}

// wakeup 唤醒状态机的占位元素
type wakeup struct{}

type registration struct {
	controller avtp.EUI64
	mac        net.HardwareAddr
}

// Manager AECP 实体状态机
type Manager struct {
	model    *aem.Model
	sock     rawsock.Socket
	logger   *xlog.Logger
	events   events.Publisher
	pipeline Pipeline
	counters CounterSource
	handlers map[pdu.CommandType]handler
	limit    *rate.Limiter

	cmdQueue *queue.SyncQueue

	mu           sync.Mutex // 状态机锁，处理命令时持有
	started      bool
	terminate    bool
	entityID     avtp.EUI64
	pending      []*unsolicited
	unsolicitSeq uint16

	// 注册表单独加锁，计数器源在状态机锁内回调 Registered。
	// 加锁顺序为 mu 然后 regMu
	regMu      sync.RWMutex
	registered []registration

	wg sync.WaitGroup
}

// NewManager 创建 AECP 状态机
func NewManager(model *aem.Model, sock rawsock.Socket, logger *xlog.Logger, options ...Option) *Manager {
	if logger == nil {
		logger = xlog.L()
	}
	m := &Manager{
		model:    model,
		sock:     sock,
		logger:   logger.With(xlog.Fields(xlog.F("module", "aecp"))),
		events:   events.Discard,
		limit:    rate.New(10, time.Second),
		cmdQueue: queue.NewSyncQueue(),
	}
	m.handlers = m.commandHandlers()
	for _, option := range options {
		option.apply(m)
	}
	return m
}

// Start 启动接收例程和状态机例程
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrStarted
	}
	m.entityID = m.model.Entity().EntityID
	m.terminate = false
	m.started = true

	m.wg.Add(2)
	go m.receive()
	go m.run()
	m.logger.Infof("aecp started, entity %s", m.entityID)
	return nil
}

// Stop 停止状态机，关闭套接字并等待例程退出
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.terminate = true
	m.mu.Unlock()

	m.cmdQueue.Push(wakeup{})
	err := m.sock.Close()
	m.wg.Wait()
	m.cmdQueue.Reset()

	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	m.logger.Info("aecp stopped")
	return err
}

// Registered 已注册非请求通知的控制器
func (m *Manager) Registered() []avtp.EUI64 {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	ids := make([]avtp.EUI64, len(m.registered))
	for i, r := range m.registered {
		ids[i] = r.controller
	}
	return ids
}

func (m *Manager) recoverRoutine(name string) {
	if r := recover(); r != nil {
		m.logger.Errorf("%s routine panic; r = %v \n %s", name, r, debug.Stack())
	}
}

// valueKind SET_CONTROL 解析时查找控制值种类
func (m *Manager) valueKind(index uint16) (kind aem.ValueKind, ok bool) {
	m.model.With(aem.TypeControl, index, func(d aem.Descriptor) {
		if c, is := d.(*aem.Control); is {
			kind, ok = c.ValueType.Kind(), true
		}
	})
	return
}

// receive 接收例程
func (m *Manager) receive() {
	defer m.wg.Done()
	defer m.recoverRoutine("aecp receive")

	own := m.sock.Addr()
	buf := make([]byte, rawsock.MaxFrameLen)
	for {
		n, err := m.sock.Recv(buf, 0)
		if err == rawsock.ErrTimeout {
			continue
		}
		if err != nil {
			if err != rawsock.ErrClosed {
				m.logger.Errorf("receive failed: %v", err)
			}
			return
		}

		h, off, err := eth.Parse(buf[:n])
		if err != nil || h.EtherType != avtp.EtherType || bytes.Equal(h.Src, own) {
			continue
		}
		if off >= n || avtp.Subtype(buf[off]) != avtp.SubtypeAECP {
			continue
		}

		p, err := pdu.ParseCommand(buf[off:n], m.valueKind)
		switch {
		case err == pdu.ErrNotAEM:
			if p.TargetEntityID == m.entityID && !p.MessageType.IsResponse() {
				m.notImplemented(buf[off:n], h.Src)
			}
			continue
		case err != nil:
			m.dropf("drop malformed aecpdu from %s: %v", h.Src, err)
			continue
		case p.MessageType != pdu.AEMCommand:
			continue
		case p.TargetEntityID != m.entityID:
			m.dropf("drop command %s for foreign entity %s", p.CommandType, p.TargetEntityID)
			continue
		}

		m.cmdQueue.Push(&command{
			pdu: p,
			src: append(net.HardwareAddr(nil), h.Src...),
		})
	}
}

func (m *Manager) dropf(format string, args ...interface{}) {
	if !m.limit.Limit() {
		m.logger.Warnf(format, args...)
	}
}

// run 状态机例程
func (m *Manager) run() {
	defer m.wg.Done()
	defer m.recoverRoutine("aecp state machine")

	for {
		// WAITING
		item := m.cmdQueue.Pop()

		m.mu.Lock()
		if m.terminate {
			m.mu.Unlock()
			return
		}
		if cmd, ok := item.(*command); ok {
			m.receivedCommand(cmd)
		}
		if len(m.pending) > 0 {
			m.unsolicitedResponse()
		}
		m.mu.Unlock()
	}
}

// receivedCommand RECEIVED_COMMAND 状态，持有 m.mu
func (m *Manager) receivedCommand(cmd *command) {
	p := cmd.pdu
	if p.TargetEntityID != m.entityID {
		return
	}

	var status pdu.Status
	switch p.CommandType {
	case pdu.CmdAcquireEntity:
		status = m.acquireEntity(p)
	case pdu.CmdLockEntity:
		status = m.lockEntity(p)
	default:
		status = m.processCommand(p, cmd.src)
	}

	rsp := p.Response(status)
	m.send(rsp, cmd.src)
	m.logger.Debugf("%s", rsp)
	m.events.Publish(events.TopicAECP, rsp)

	if status == pdu.StatusSuccess && notifies(p.CommandType) {
		m.queueUnsolicited(rsp)
	}
}

// send 发送 AEM 响应
func (m *Manager) send(p *pdu.PDU, dst net.HardwareAddr) {
	buf := make([]byte, eth.HeaderLen+pdu.HeaderLen+pdu.MaxControlDataLength)
	h := eth.Header{Dst: dst, Src: m.sock.Addr(), EtherType: avtp.EtherType}
	n, err := h.Encode(buf)
	if err != nil {
		m.logger.Errorf("encode header failed: %v", err)
		return
	}
	pn, err := p.Marshal(buf[n:])
	if err != nil {
		m.logger.Errorf("encode %s failed: %v", p, err)
		return
	}
	if err = m.sock.Send(buf[:n+pn]); err != nil {
		m.logger.Errorf("send %s failed: %v", p, err)
	}
}

// notImplemented 非 AEM 命令原样返回 NOT_IMPLEMENTED
func (m *Manager) notImplemented(frame []byte, dst net.HardwareAddr) {
	buf := make([]byte, eth.HeaderLen+len(frame))
	h := eth.Header{Dst: dst, Src: m.sock.Addr(), EtherType: avtp.EtherType}
	n, err := h.Encode(buf)
	if err != nil {
		return
	}
	copy(buf[n:], frame)
	buf[n+1] = buf[n+1]&0xf0 | (buf[n+1]+1)&0x0f
	buf[n+2] = buf[n+2]&0x07 | byte(pdu.StatusNotImplemented)<<3
	if err = m.sock.Send(buf); err != nil {
		m.logger.Errorf("send NOT_IMPLEMENTED failed: %v", err)
	}
}

// Option 配置 Manager 的选项接口
type Option interface {
	apply(*Manager)
}

type optionFunc func(*Manager)

func (f optionFunc) apply(m *Manager) {
	f(m)
}

// WithPipeline 设置流启停接口
func WithPipeline(p Pipeline) Option {
	return optionFunc(func(m *Manager) {
		m.pipeline = p
	})
}

// WithCounters 设置计数来源
func WithCounters(c CounterSource) Option {
	return optionFunc(func(m *Manager) {
		m.counters = c
	})
}

// WithPublisher 设置事件发布者
func WithPublisher(p events.Publisher) Option {
	return optionFunc(func(m *Manager) {
		if p != nil {
			m.events = p
		}
	})
}

func (c *command) String() string {
	return fmt.Sprintf("%s from %s", c.pdu, c.src)
}
