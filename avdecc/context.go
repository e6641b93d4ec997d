// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package avdecc 组装实体：由配置和流表构造实体模型，
// 并把 ADP、AECP 和 AVTP 流连接到同一个网口上。
package avdecc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cnotch/avbhub/adp"
	"github.com/cnotch/avbhub/aecp"
	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/events"
	"github.com/cnotch/avbhub/media"
	"github.com/cnotch/avbhub/network/rawsock"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/provider/streams"
	"github.com/cnotch/avbhub/stats"
	"github.com/cnotch/avbhub/stream"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

// 错误定义
var (
	ErrStarted      = errors.New("avdecc: already started")
	ErrNotStarted   = errors.New("avdecc: not started")
	ErrNoSuchStream = errors.New("avdecc: no such stream")
	ErrNotRTP       = errors.New("avdecc: stream is not bridged to rtp")
)

const linkPollInterval = time.Second

// Opener 打开网口上指定以太类型的原始套接字
type Opener func(ifname string, ethertype uint16) (rawsock.Socket, error)

// Context 实体上下文
type Context struct {
	cfg    Config
	rtp    RTPConfig
	logger *xlog.Logger
	events events.Publisher
	tap    rawsock.TapFunc
	open   Opener

	mac      net.HardwareAddr
	model    *aem.Model
	streams  map[string]*streams.Stream
	pipeline *stream.Pipeline
	adp      *adp.Manager
	aecp     *aecp.Manager
	socks    []rawsock.Socket
	flow     stats.Flow // 网口帧计数

	linkUpCount   uint32
	linkDownCount uint32
	gmChanged     uint32
	locked        uint32
	unlocked      uint32

	mu      sync.Mutex
	started bool
	stopped bool
	linkUp  bool
	gm      avtp.EUI64
	jobTag  string
}

// New 创建实体上下文，打开所有套接字
func New(cfg *Config, list []*streams.Stream, logger *xlog.Logger, options ...Option) (*Context, error) {
	if logger == nil {
		logger = xlog.L()
	}
	c := &Context{
		cfg:     *cfg,
		logger:  logger,
		events:  events.Discard,
		open:    rawsock.Open,
		streams: make(map[string]*streams.Stream),
		flow:    stats.NewFlow(),
		linkUp:  true,
		gm:      cfg.Grandmaster,
	}
	for _, option := range options {
		option.apply(c)
	}
	c.cfg.init()
	c.rtp.init()
	if v, changed := adp.ClampValidTime(c.cfg.ValidTime); changed {
		c.logger.Warnf("valid_time %d out of range, use %d", c.cfg.ValidTime, v)
		c.cfg.ValidTime = v
	}

	adpSock, err := c.openSock()
	if err != nil {
		return nil, err
	}
	c.mac = adpSock.Addr()

	model, indexes, err := buildModel(&c.cfg, c.mac, list)
	if err != nil {
		adpSock.Close()
		return nil, err
	}
	c.model = model
	c.jobTag = fmt.Sprintf("avdecc link(%s)", model.Entity().EntityID)

	c.pipeline = stream.NewPipeline(logger, c.events)
	if !c.cfg.Grandmaster.IsZero() {
		c.pipeline.SetGrandmaster(c.cfg.Grandmaster, c.cfg.GrandmasterDomain)
		c.locked++
	}
	model.SetLive(c.pipeline)

	for _, s := range list {
		r, err := c.newRunner(s, indexes[s.Name])
		if err == nil {
			if err = c.pipeline.Add(r); err != nil {
				r.Stop()
			}
		}
		if err != nil {
			c.pipeline.Stop()
			adpSock.Close()
			return nil, fmt.Errorf("avdecc: stream %s: %w", s.Name, err)
		}
		c.streams[s.Name] = s
	}

	aecpSock, err := c.openSock()
	if err != nil {
		c.pipeline.Stop()
		adpSock.Close()
		return nil, err
	}

	c.socks = []rawsock.Socket{adpSock, aecpSock}

	adpOptions := []adp.Option{adp.WithPublisher(c.events)}
	if c.cfg.FastConnect {
		adpOptions = append(adpOptions, adp.WithFastConnect(c.pipeline.FastConnect))
	}
	c.adp = adp.NewManager(&adp.Config{
		ValidTime:   c.cfg.ValidTime,
		FastConnect: c.cfg.FastConnect,
	}, model, adpSock, logger, adpOptions...)
	c.aecp = aecp.NewManager(model, aecpSock, logger,
		aecp.WithPipeline(c.pipeline),
		aecp.WithCounters(c),
		aecp.WithPublisher(c.events))
	return c, nil
}

func (c *Context) openSock() (rawsock.Socket, error) {
	s, err := c.open(c.cfg.IfName, avtp.EtherType)
	if err != nil {
		return nil, fmt.Errorf("avdecc: open %s: %w", c.cfg.IfName, err)
	}
	return rawsock.Wrap(s, c.tap, c.flow), nil
}

// newRunner 按流配置创建 AAF 映射、数据源或目的，以及流例程
func (c *Context) newRunner(s *streams.Stream, index uint16) (*stream.Runner, error) {
	mapper, err := media.NewAAF(s.Format(), media.NewQueue(media.DefaultQueueLen))
	if err != nil {
		return nil, err
	}
	sock, err := c.openSock()
	if err != nil {
		return nil, err
	}
	cfg := s.Config(c.mac, c.cfg.VlanID, c.cfg.VlanPCP)

	if s.Talker() {
		source, err := c.newSource(s, mapper)
		if err != nil {
			sock.Close()
			return nil, err
		}
		r, err := stream.NewTalker(cfg, index, sock, mapper, source, c.logger)
		if err != nil {
			source.Close()
			sock.Close()
		}
		return r, err
	}

	sink, err := c.newSink(s, mapper)
	if err != nil {
		sock.Close()
		return nil, err
	}
	r, err := stream.NewListener(cfg, index, sock, mapper, sink, c.logger)
	if err != nil {
		if sink != nil {
			sink.Close()
		}
		sock.Close()
	}
	return r, err
}

func (c *Context) newSource(s *streams.Stream, mapper *media.AAF) (media.Source, error) {
	kind, addr := streams.Endpoint(s.Source)
	switch kind {
	case "wav":
		return media.OpenWAVSource(addr, mapper, s.Loop)
	case "rtp":
		return media.ListenRTP(addr, mapper)
	case "":
		return nil, errors.New("talker has no source")
	}
	return nil, fmt.Errorf("unknown source %q", s.Source)
}

func (c *Context) newSink(s *streams.Stream, mapper *media.AAF) (media.Sink, error) {
	kind, addr := streams.Endpoint(s.Sink)
	switch kind {
	case "wav":
		return media.CreateWAVRecorder(addr, mapper)
	case "rtp":
		if addr == "" {
			addr = c.rtp.Dest
		}
		return media.DialRTP(addr, c.rtp.PayloadType, mapper)
	case "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown sink %q", s.Sink)
}

// Start 启动流、ADP 和 AECP，失败时停止已经启动的部分。
// 停止后的上下文不能再次启动。
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return ErrStarted
	}

	c.pipeline.Start()
	if !c.gm.IsZero() {
		c.adp.SetGrandmaster(c.gm, c.cfg.GrandmasterDomain)
	}
	if err := c.adp.Start(); err != nil {
		c.pipeline.Stop()
		return err
	}
	if err := c.aecp.Start(); err != nil {
		c.adp.Stop()
		c.pipeline.Stop()
		return err
	}

	if c.cfg.IfName != "" {
		scheduler.PeriodFunc(linkPollInterval, linkPollInterval, func() {
			c.SetLinkIsUp(rawsock.LinkIsUp(c.cfg.IfName))
		}, c.jobTag)
	}
	c.started = true
	c.logger.Infof("entity %s started on %s(%s), %d streams",
		c.model.Entity().EntityID, c.cfg.IfName, c.mac, len(c.streams))
	return nil
}

// Stop 停止 AECP、ADP 和所有流
func (c *Context) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.started = false
	c.stopped = true
	c.mu.Unlock()

	for _, job := range scheduler.Jobs() {
		if job.Tag() == c.jobTag {
			job.Cancel()
		}
	}

	err := c.aecp.Stop()
	if err2 := c.adp.Stop(); err == nil {
		err = err2
	}
	c.pipeline.Stop()
	c.logger.Infof("entity %s stopped", c.model.Entity().EntityID)
	return err
}

// Close 释放上下文；已启动时等同 Stop，未启动时关闭套接字和所有流
func (c *Context) Close() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return c.Stop()
	}
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	var err error
	for _, s := range c.socks {
		if err2 := s.Close(); err == nil {
			err = err2
		}
	}
	c.pipeline.Stop()
	return err
}

// SetLinkIsUp 网口状态变化时通知 ADP 并计数
func (c *Context) SetLinkIsUp(up bool) {
	c.mu.Lock()
	changed := c.linkUp != up
	c.linkUp = up
	c.mu.Unlock()
	if !changed {
		return
	}

	if up {
		atomic.AddUint32(&c.linkUpCount, 1)
		c.logger.Infof("link %s up", c.cfg.IfName)
	} else {
		atomic.AddUint32(&c.linkDownCount, 1)
		c.logger.Warnf("link %s down", c.cfg.IfName)
	}
	c.adp.SetLinkIsUp(up)
	c.events.Publish(events.TopicADP, linkEvent{IfName: c.cfg.IfName, Up: up})
}

type linkEvent struct {
	IfName string `json:"ifname"`
	Up     bool   `json:"up"`
}

// SetGrandmaster 更新 gPTP 主时钟；为 0 表示失去主时钟
func (c *Context) SetGrandmaster(gm avtp.EUI64, domain uint8) {
	c.mu.Lock()
	prev := c.gm
	c.gm = gm
	c.mu.Unlock()
	if prev == gm {
		return
	}

	atomic.AddUint32(&c.gmChanged, 1)
	switch {
	case gm.IsZero():
		atomic.AddUint32(&c.unlocked, 1)
	case prev.IsZero():
		atomic.AddUint32(&c.locked, 1)
	}
	c.pipeline.SetGrandmaster(gm, domain)
	c.adp.SetGrandmaster(gm, domain)
	c.logger.Infof("grandmaster changed to %s", gm)
}

// Model 实体模型
func (c *Context) Model() *aem.Model { return c.model }

// Pipeline 所有流
func (c *Context) Pipeline() *stream.Pipeline { return c.pipeline }

// ADP ADP 管理器
func (c *Context) ADP() *adp.Manager { return c.adp }

// AECP AECP 状态机
func (c *Context) AECP() *aecp.Manager { return c.aecp }

// MAC 网口地址
func (c *Context) MAC() net.HardwareAddr { return c.mac }

// Config 实体配置
func (c *Context) Config() Config { return c.cfg }

// Flow 网口帧计数
func (c *Context) Flow() stats.Flow { return c.flow }

// SDP 桥接到 RTP 的 listener 的会话描述
func (c *Context) SDP(name string) (string, error) {
	s, ok := c.streams[name]
	if !ok {
		return "", ErrNoSuchStream
	}
	kind, addr := streams.Endpoint(s.Sink)
	if s.Talker() || kind != "rtp" {
		return "", ErrNotRTP
	}
	if addr == "" {
		addr = c.rtp.Dest
	}
	dst, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return "", err
	}
	return media.Describe(name, dst, c.rtp.PayloadType, s.Format())
}

// Option 上下文选项
type Option interface {
	apply(*Context)
}

type optionFunc func(*Context)

func (f optionFunc) apply(c *Context) {
	f(c)
}

// WithPublisher 发布 ADP、AECP 和流事件
func WithPublisher(p events.Publisher) Option {
	return optionFunc(func(c *Context) {
		c.events = p
	})
}

// WithTap 监听网口收发的每一帧
func WithTap(tap rawsock.TapFunc) Option {
	return optionFunc(func(c *Context) {
		c.tap = tap
	})
}

// WithOpener 指定套接字的打开方式
func WithOpener(open Opener) Option {
	return optionFunc(func(c *Context) {
		c.open = open
	})
}

// WithRTP RTP 桥接配置
func WithRTP(cfg RTPConfig) Option {
	return optionFunc(func(c *Context) {
		c.rtp = cfg
	})
}
