// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package aem IEEE 1722.1 实体模型：描述符存储、编解码和实体的获取/锁定状态。
package aem

import (
	"fmt"
	"sync"

	"github.com/cnotch/avbhub/protos/avtp"
)

type configuration struct {
	desc        *Configuration
	descriptors map[DescriptorType][]Descriptor
}

// Ownership 实体的获取和锁定状态
type Ownership struct {
	Acquired   bool       `json:"acquired"`
	AcquiredBy avtp.EUI64 `json:"acquired_by"`
	Locked     bool       `json:"locked"`
	LockedBy   avtp.EUI64 `json:"locked_by"`
}

// Model 实体模型。
// 顶层描述符按配置存储；非顶层描述符全局存储一份，对所有配置可见。
type Model struct {
	mu      sync.Mutex
	entity  *Entity
	configs []*configuration
	global  map[DescriptorType][]Descriptor
	added   map[Descriptor]struct{}
	owner   Ownership
	live    Live
}

// New 创建实体模型
func New(entity *Entity) (*Model, error) {
	if entity == nil {
		return nil, ErrInvalidArgument
	}
	entity.Type = TypeEntity
	entity.Index = 0
	return &Model{
		entity: entity,
		global: make(map[DescriptorType][]Descriptor),
		added:  make(map[Descriptor]struct{}),
	}, nil
}

// SetEntity 重新指定 ENTITY 描述符，配置计数保持与模型一致
func (m *Model) SetEntity(entity *Entity) error {
	if entity == nil {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entity.Type = TypeEntity
	entity.Index = 0
	entity.ConfigurationsCount = uint16(len(m.configs))
	entity.CurrentConfiguration = m.entity.CurrentConfiguration
	m.entity = entity
	return nil
}

// Entity 返回 ENTITY 描述符
func (m *Model) Entity() *Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity
}

// SetLive 安装运行时状态访问器
func (m *Model) SetLive(live Live) {
	m.mu.Lock()
	m.live = live
	m.mu.Unlock()
}

// Live 返回运行时状态访问器，可能为 nil
func (m *Model) Live() Live {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// AddConfiguration 加入配置，返回配置索引
func (m *Model) AddConfiguration(c *Configuration) (uint16, error) {
	if c == nil {
		return 0, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.added[c]; ok {
		return 0, ErrDuplicate
	}
	index := uint16(len(m.configs))
	c.Type = TypeConfiguration
	c.Index = index
	m.configs = append(m.configs, &configuration{
		desc:        c,
		descriptors: make(map[DescriptorType][]Descriptor),
	})
	m.added[c] = struct{}{}
	m.entity.ConfigurationsCount = uint16(len(m.configs))
	return index, nil
}

// AddDescriptor 加入描述符并分配 descriptor_index。
// ENTITY 和 CONFIGURATION 分别通过 SetEntity 和 AddConfiguration 加入。
func (m *Model) AddDescriptor(d Descriptor, config uint16) (uint16, error) {
	if d == nil {
		return 0, ErrInvalidArgument
	}
	t := d.DescriptorType()
	if t == TypeEntity || t == TypeConfiguration || !t.Known() {
		return 0, ErrInvalidArgument
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.added[d]; ok {
		return 0, ErrDuplicate
	}

	var index uint16
	if t.TopLevel() {
		if int(config) >= len(m.configs) {
			return 0, ErrNoConfiguration
		}
		c := m.configs[config]
		index = uint16(len(c.descriptors[t]))
		c.descriptors[t] = append(c.descriptors[t], d)
		c.desc.increment(t)
	} else {
		index = uint16(len(m.global[t]))
		m.global[t] = append(m.global[t], d)
	}
	d.header().Index = index
	m.added[d] = struct{}{}
	return index, nil
}

func (m *Model) lookup(config uint16, t DescriptorType, index uint16) Descriptor {
	switch t {
	case TypeEntity:
		if index == 0 {
			return m.entity
		}
		return nil
	case TypeConfiguration:
		if int(index) < len(m.configs) {
			return m.configs[index].desc
		}
		return nil
	}

	if int(config) < len(m.configs) {
		if list := m.configs[config].descriptors[t]; int(index) < len(list) {
			return list[index]
		}
	}
	if list := m.global[t]; int(index) < len(list) {
		return list[index]
	}
	return nil
}

// GetDescriptor 按 (配置, 类型, 索引) 查找描述符，不存在返回 nil
func (m *Model) GetDescriptor(config uint16, t DescriptorType, index uint16) Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(config, t, index)
}

// Descriptors 返回配置中 t 类描述符(含全局非顶层描述符)的快照
func (m *Model) Descriptors(config uint16, t DescriptorType) []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []Descriptor
	switch t {
	case TypeEntity:
		return []Descriptor{m.entity}
	case TypeConfiguration:
		for _, c := range m.configs {
			list = append(list, c.desc)
		}
		return list
	}
	if int(config) < len(m.configs) {
		list = append(list, m.configs[config].descriptors[t]...)
	}
	if len(list) == 0 {
		list = append(list, m.global[t]...)
	}
	return list
}

// SerializeDescriptor 刷新并编码描述符
func (m *Model) SerializeDescriptor(config uint16, t DescriptorType, index uint16, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.lookup(config, t, index)
	if d == nil {
		return 0, ErrUnknownDescriptor
	}
	if err := Update(d, m.live); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStaleData, err)
	}
	n, err := Encode(d, buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return n, nil
}

// With 在模型锁内访问当前配置中的描述符，描述符不存在时返回 false。
// fn 中不能再调用 Model 的方法
func (m *Model) With(t DescriptorType, index uint16, fn func(d Descriptor)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.lookup(m.entity.CurrentConfiguration, t, index)
	if d == nil {
		return false
	}
	fn(d)
	return true
}

// Modify 在模型锁内修改描述符。fn 中不能再调用 Model 的方法
func (m *Model) Modify(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// CurrentConfig 当前配置索引
func (m *Model) CurrentConfig() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity.CurrentConfiguration
}

// SetCurrentConfig 切换当前配置
func (m *Model) SetCurrentConfig(config uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(config) >= len(m.configs) {
		return ErrNoConfiguration
	}
	m.entity.CurrentConfiguration = config
	return nil
}

// SetAvailableIndex 同步 ADP 通告的 available_index
func (m *Model) SetAvailableIndex(idx uint32) {
	m.mu.Lock()
	m.entity.AvailableIndex = idx
	m.mu.Unlock()
}

// Acquire 获取实体。
// 未被获取或已被同一控制器获取时成功；否则返回 false 和原持有者。
func (m *Model) Acquire(controller avtp.EUI64) (owner avtp.EUI64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner.Acquired && m.owner.AcquiredBy != controller {
		return m.owner.AcquiredBy, false
	}
	m.owner.Acquired = true
	m.owner.AcquiredBy = controller
	return controller, true
}

// Release 释放获取
func (m *Model) Release() {
	m.mu.Lock()
	m.owner.Acquired = false
	m.owner.AcquiredBy = avtp.EUI64{}
	m.mu.Unlock()
}

// Lock 锁定实体，规则与 Acquire 相同
func (m *Model) Lock(controller avtp.EUI64) (owner avtp.EUI64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner.Locked && m.owner.LockedBy != controller {
		return m.owner.LockedBy, false
	}
	m.owner.Locked = true
	m.owner.LockedBy = controller
	return controller, true
}

// Unlock 解除锁定
func (m *Model) Unlock() {
	m.mu.Lock()
	m.owner.Locked = false
	m.owner.LockedBy = avtp.EUI64{}
	m.mu.Unlock()
}

// Ownership 当前的获取/锁定状态
func (m *Model) Ownership() Ownership {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// CorrectController 控制器是否有权修改实体。
// 获取优先于锁定；两者都未持有时任何控制器都可修改。
func (m *Model) CorrectController(controller avtp.EUI64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.owner.Acquired:
		return m.owner.AcquiredBy == controller
	case m.owner.Locked:
		return m.owner.LockedBy == controller
	}
	return true
}
