// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adp 实体发现(ADP)的通告状态机。
// Advertise-Interface 负责收发，Advertise-Entity 负责周期通告和 available_index。
package adp

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/events"
	"github.com/cnotch/avbhub/network/rawsock"
	pdu "github.com/cnotch/avbhub/protos/adp"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/protos/eth"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

// valid_time 范围(秒)
const (
	MinValidTime     = 2
	MaxValidTime     = 62
	DefaultValidTime = 62
)

// 错误定义
var (
	ErrStarted    = errors.New("adp: already started")
	ErrNotStarted = errors.New("adp: not started")
)

// Config ADP 配置
type Config struct {
	// ValidTime 通告有效期，秒，2~62 的偶数
	ValidTime int `json:"valid_time"`
	// FastConnect 发现 talker 时调用快速连接
	FastConnect bool `json:"fast_connect"`
	// InterfaceIndex 通告的 AVB_INTERFACE 索引
	InterfaceIndex uint16 `json:"interface_index"`
}

// ClampValidTime 将 valid_time 约束到合法范围，changed 表示值被修改
func ClampValidTime(seconds int) (v int, changed bool) {
	v = seconds
	if v < MinValidTime {
		v = MinValidTime
	}
	if v > MaxValidTime {
		v = MaxValidTime
	}
	v &^= 1
	return v, v != seconds
}

// units valid_time 的线上值，2 秒为单位
func (c *Config) units() uint8 {
	v, _ := ClampValidTime(c.ValidTime)
	return uint8(v / 2)
}

// reannounce 周期通告间隔 max(1s, valid_time/2)
func (c *Config) reannounce() time.Duration {
	d := time.Duration(c.units()/2) * time.Second
	if d < time.Second {
		d = time.Second
	}
	return d
}

// FastConnectFunc 发现带有 talker 的实体时调用
type FastConnectFunc func(peer *pdu.PDU)

// Manager ADP 管理器
type Manager struct {
	cfg    Config
	model  *aem.Model
	sock   rawsock.Socket
	logger *xlog.Logger
	events events.Publisher
	fast   FastConnectFunc
	peers  *Peers

	mu             sync.Mutex
	cond           *sync.Cond
	started        bool
	terminate      bool
	needsAdvertise bool
	doAdvertise    bool
	rcvdDiscover   bool
	discoverTarget avtp.EUI64
	linkIsUp       bool
	linkChanged    bool
	gm             avtp.EUI64
	gmDomain       uint8
	advertisedGM   avtp.EUI64
	info           pdu.PDU // entityInfo

	fsmWG  sync.WaitGroup
	rxWG   sync.WaitGroup
	jobTag string
}

// NewManager 创建 ADP 管理器
func NewManager(cfg *Config, model *aem.Model, sock rawsock.Socket, logger *xlog.Logger, options ...Option) *Manager {
	if logger == nil {
		logger = xlog.L()
	}
	m := &Manager{
		cfg:      *cfg,
		model:    model,
		sock:     sock,
		logger:   logger.With(xlog.Fields(xlog.F("module", "adp"))),
		events:   events.Discard,
		peers:    NewPeers(),
		linkIsUp: true,
	}
	m.cond = sync.NewCond(&m.mu)
	for _, option := range options {
		option.apply(m)
	}
	return m
}

// Start 启动 ADP：构造实体信息，加入组播，启动接收和两个状态机
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrStarted
	}

	if err := m.sock.JoinMulticast(avtp.AdpMulticastAddr); err != nil {
		return fmt.Errorf("adp: join multicast: %w", err)
	}

	m.buildInfo()
	m.terminate = false
	m.started = true

	m.rxWG.Add(1)
	go m.receive()

	m.fsmWG.Add(2)
	go m.runInterface()
	go m.runEntity()

	m.jobTag = fmt.Sprintf("adp peer expiry(%s)", m.info.EntityID)
	scheduler.PeriodFunc(time.Second, time.Second, func() {
		for _, p := range m.peers.Expire(time.Now()) {
			m.logger.Infof("entity %s timed out", p.EntityID)
			m.events.Publish(events.TopicPeer, p)
		}
	}, m.jobTag)

	m.logger.Infof("adp started, entity %s valid_time %ds", m.info.EntityID, int(m.info.ValidTime)*2)
	return nil
}

// Stop 停止状态机(发送 DEPARTING)，关闭套接字并等待退出
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.terminate = true
	m.cond.Broadcast()
	m.mu.Unlock()

	m.fsmWG.Wait()
	err := m.sock.Close()
	m.rxWG.Wait()

	for _, job := range scheduler.Jobs() {
		if job.Tag() == m.jobTag {
			job.Cancel()
		}
	}

	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	m.logger.Info("adp stopped")
	return err
}

// buildInfo 由 ENTITY 描述符构造通告内容
func (m *Manager) buildInfo() {
	e := m.model.Entity()
	m.info = pdu.PDU{
		MessageType:            pdu.EntityAvailable,
		ValidTime:              m.cfg.units(),
		EntityID:               e.EntityID,
		EntityModelID:          e.EntityModelID,
		EntityCapabilities:     e.EntityCapabilities,
		TalkerStreamSources:    e.TalkerStreamSources,
		TalkerCapabilities:     e.TalkerCapabilities,
		ListenerStreamSinks:    e.ListenerStreamSinks,
		ListenerCapabilities:   e.ListenerCapabilities,
		ControllerCapabilities: e.ControllerCapabilities,
		AvailableIndex:         0,
		GptpGrandmasterID:      m.gm,
		GptpDomainNumber:       m.gmDomain,
		InterfaceIndex:         m.cfg.InterfaceIndex,
		AssociationID:          e.AssociationID,
	}
	m.advertisedGM = m.gm
}

// Info 当前通告的实体信息
func (m *Manager) Info() pdu.PDU {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// AvailableIndex 当前 available_index
func (m *Manager) AvailableIndex() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info.AvailableIndex
}

// Peers 已发现的远端实体
func (m *Manager) Peers() *Peers {
	return m.peers
}

// SetNeedsAdvertise 请求实体状态机尽快重新通告
func (m *Manager) SetNeedsAdvertise() {
	m.signal(func() { m.needsAdvertise = true })
}

// SetDoAdvertise 请求接口状态机立即发送 ENTITY_AVAILABLE
func (m *Manager) SetDoAdvertise() {
	m.signal(func() { m.doAdvertise = true })
}

// SetRcvdDiscover 收到发现请求
func (m *Manager) SetRcvdDiscover(target avtp.EUI64) {
	m.signal(func() {
		m.rcvdDiscover = true
		m.discoverTarget = target
	})
}

// SetLinkIsUp 网口链路状态
func (m *Manager) SetLinkIsUp(up bool) {
	m.signal(func() {
		if m.linkIsUp != up {
			m.linkIsUp = up
			m.linkChanged = true
		}
	})
}

// SetGrandmaster 设置 gPTP 主时钟
func (m *Manager) SetGrandmaster(id avtp.EUI64, domain uint8) {
	m.signal(func() {
		m.gm = id
		m.gmDomain = domain
	})
}

func (m *Manager) signal(fn func()) {
	m.mu.Lock()
	fn()
	m.cond.Broadcast()
	m.mu.Unlock()
}

// waitUntil 在持有 m.mu 时等待 pred 成立或到达 deadline，返回 pred 的结果
func (m *Manager) waitUntil(deadline time.Time, pred func() bool) bool {
	if pred() {
		return true
	}
	timer := time.AfterFunc(time.Until(deadline), func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()

	for !pred() {
		if !time.Now().Before(deadline) {
			return false
		}
		m.cond.Wait()
	}
	return true
}

func (m *Manager) recoverRoutine(name string) {
	if r := recover(); r != nil {
		m.logger.Errorf("%s routine panic; r = %v \n %s", name, r, debug.Stack())
	}
}

// send 在持有 m.mu 时发送一个 ADPDU
func (m *Manager) send(msgType pdu.MessageType) {
	// 发送前刷新主时钟
	if live := m.model.Live(); live != nil {
		if gm, domain, err := live.Grandmaster(); err == nil && gm != m.info.GptpGrandmasterID {
			m.gm, m.gmDomain = gm, domain
		}
	}
	if m.gm != m.info.GptpGrandmasterID || m.gmDomain != m.info.GptpDomainNumber {
		m.info.GptpGrandmasterID = m.gm
		m.info.GptpDomainNumber = m.gmDomain
		m.advertisedGM = m.gm
	}

	p := m.info
	p.MessageType = msgType
	if msgType == pdu.EntityDeparting {
		p.ValidTime = 0
	}

	h := eth.Header{
		Dst:       avtp.AdpMulticastAddr,
		Src:       m.sock.Addr(),
		EtherType: avtp.EtherType,
	}
	buf := make([]byte, eth.HeaderLen+pdu.PDULen)
	n, err := h.Encode(buf)
	if err == nil {
		_, err = p.Marshal(buf[n:])
	}
	if err == nil {
		err = m.sock.Send(buf)
	}
	if err != nil {
		m.logger.Errorf("send %s failed: %v", msgType, err)
		return
	}

	m.logger.Debugf("tx %s", &p)
	m.events.Publish(events.TopicADP, &p)
}

// Option 配置 Manager 的选项接口
type Option interface {
	apply(*Manager)
}

type optionFunc func(*Manager)

func (f optionFunc) apply(m *Manager) {
	f(m)
}

// WithFastConnect 设置快速连接回调
func WithFastConnect(fn FastConnectFunc) Option {
	return optionFunc(func(m *Manager) {
		m.fast = fn
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
