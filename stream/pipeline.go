// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/events"
	adppdu "github.com/cnotch/avbhub/protos/adp"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/stats"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

// 错误定义
var (
	ErrNotFound  = errors.New("stream: not found")
	ErrDuplicate = errors.New("stream: duplicate stream")
)

var _ aem.Live = (*Pipeline)(nil)

// sampleInterval 流统计事件的发布周期
const sampleInterval = 5 * time.Second

type streamKey struct {
	t     aem.DescriptorType
	index uint16
}

// Info 流的概要信息
type Info struct {
	Name            string           `json:"name"`
	Talker          bool             `json:"talker"`
	DescriptorIndex uint16           `json:"descriptor_index"`
	Config          Config           `json:"config"`
	State           aem.StreamState  `json:"state"`
	Stream          State            `json:"stream"`
	Flow            stats.FlowSample `json:"flow"`
}

// Pipeline 实体上所有流的集合。
// 它为 AECP 提供流的启停，为实体模型提供运行时状态。
type Pipeline struct {
	mu      sync.RWMutex
	runners map[streamKey]*Runner
	byName  map[string]*Runner
	gm      avtp.EUI64
	domain  uint8
	gmValid bool
	started bool
	jobTag  string

	flow   stats.Flow
	events events.Publisher
	logger *xlog.Logger
}

// NewPipeline 创建流集合，publisher 可以为 nil
func NewPipeline(logger *xlog.Logger, publisher events.Publisher) *Pipeline {
	if logger == nil {
		logger = xlog.L()
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &Pipeline{
		runners: make(map[streamKey]*Runner),
		byName:  make(map[string]*Runner),
		flow:    stats.NewFlow(),
		events:  publisher,
		logger:  logger,
		jobTag:  "stream stats",
	}
}

// Add 加入流；集合已启动时立即启动它
func (p *Pipeline) Add(r *Runner) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := streamKey{r.DescriptorType(), r.DescriptorIndex()}
	if _, ok := p.runners[key]; ok {
		return ErrDuplicate
	}
	if _, ok := p.byName[r.Name()]; ok {
		return ErrDuplicate
	}
	r.flow = stats.NewChildFlow(p.flow)
	r.events = p.events
	p.runners[key] = r
	p.byName[r.Name()] = r
	if p.started {
		r.Start()
	}
	return nil
}

// Remove 停止并移除流
func (p *Pipeline) Remove(name string) error {
	p.mu.Lock()
	r, ok := p.byName[name]
	if ok {
		delete(p.byName, name)
		delete(p.runners, streamKey{r.DescriptorType(), r.DescriptorIndex()})
	}
	p.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	r.Stop()
	return nil
}

// Get 按名称查找
func (p *Pipeline) Get(name string) *Runner {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byName[name]
}

// Runners 按名称排序的所有流
func (p *Pipeline) Runners() []*Runner {
	p.mu.RLock()
	runners := make([]*Runner, 0, len(p.byName))
	for _, r := range p.byName {
		runners = append(runners, r)
	}
	p.mu.RUnlock()

	sort.Slice(runners, func(i, j int) bool { return runners[i].Name() < runners[j].Name() })
	return runners
}

// Infos 所有流的概要
func (p *Pipeline) Infos() []Info {
	runners := p.Runners()
	infos := make([]Info, 0, len(runners))
	for _, r := range runners {
		infos = append(infos, r.Info())
	}
	return infos
}

// Info 流的概要
func (r *Runner) Info() Info {
	return Info{
		Name:            r.Name(),
		Talker:          r.Talker(),
		DescriptorIndex: r.index,
		Config:          r.stream.cfg,
		State:           r.State(),
		Stream:          r.stream.State(),
		Flow:            r.flow.GetSample(),
	}
}

// Flow 所有流的总流量
func (p *Pipeline) Flow() stats.Flow { return p.flow }

// Start 启动所有流和统计任务
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, r := range p.runners {
		r.Start()
	}

	scheduler.PeriodFunc(sampleInterval, sampleInterval, func() {
		for _, info := range p.Infos() {
			p.events.Publish(events.TopicStream, info)
		}
	}, p.jobTag)
}

// Stop 停止所有流
func (p *Pipeline) Stop() {
	p.mu.Lock()
	runners := make([]*Runner, 0, len(p.runners))
	for _, r := range p.runners {
		runners = append(runners, r)
	}
	p.runners = make(map[streamKey]*Runner)
	p.byName = make(map[string]*Runner)
	p.started = false
	p.mu.Unlock()

	for _, job := range scheduler.Jobs() {
		if job.Tag() == p.jobTag {
			job.Cancel()
		}
	}

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *Runner) {
			defer wg.Done()
			r.Stop()
		}(r)
	}
	wg.Wait()
}

func (p *Pipeline) lookup(t aem.DescriptorType, index uint16) *Runner {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.runners[streamKey{t, index}]
}

// Pause START_STREAMING/STOP_STREAMING
func (p *Pipeline) Pause(t aem.DescriptorType, index uint16, pause bool) error {
	r := p.lookup(t, index)
	if r == nil {
		return ErrNotFound
	}
	r.Pause(pause)
	return nil
}

// PauseByName 按名称暂停或恢复
func (p *Pipeline) PauseByName(name string, pause bool) error {
	r := p.Get(name)
	if r == nil {
		return ErrNotFound
	}
	r.Pause(pause)
	return nil
}

// StreamState 流的运行时状态；没有对应的流时返回 aem.ErrNotAvailable
func (p *Pipeline) StreamState(t aem.DescriptorType, index uint16) (aem.StreamState, error) {
	r := p.lookup(t, index)
	if r == nil {
		return aem.StreamState{}, aem.ErrNotAvailable
	}
	return r.State(), nil
}

// SetGrandmaster 设置 gPTP 主时钟
func (p *Pipeline) SetGrandmaster(gm avtp.EUI64, domain uint8) {
	p.mu.Lock()
	p.gm, p.domain, p.gmValid = gm, domain, true
	p.mu.Unlock()
}

// Grandmaster gPTP 主时钟；未设置时返回 aem.ErrNotAvailable
func (p *Pipeline) Grandmaster() (avtp.EUI64, uint8, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.gmValid {
		return avtp.EUI64{}, 0, aem.ErrNotAvailable
	}
	return p.gm, p.domain, nil
}

// FastConnect 发现带 talker 的实体时，标记等待中的 listener
func (p *Pipeline) FastConnect(peer *adppdu.PDU) {
	for _, r := range p.Runners() {
		if r.Talker() || !r.stream.Paused() {
			continue
		}
		r.SetFastConnect(true)
		r.logger.Infof("fast connect with talker %s", peer.EntityID)
	}
}
