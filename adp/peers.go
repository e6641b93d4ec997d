// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adp

import (
	"net"
	"sort"
	"sync"
	"time"

	pdu "github.com/cnotch/avbhub/protos/adp"
	"github.com/cnotch/avbhub/protos/avtp"
)

// Peer 已发现的远端实体
type Peer struct {
	pdu.PDU
	MAC       string    `json:"mac"`
	FirstSeen time.Time `json:"first_seen"`
	Expires   time.Time `json:"expires"`
	Departed  bool      `json:"departed,omitempty"`
	Expired   bool      `json:"expired,omitempty"`
}

// Peers 远端实体表，条目在 valid_time 后过期
type Peers struct {
	mu sync.RWMutex
	m  map[avtp.EUI64]*Peer
}

// NewPeers 创建实体表
func NewPeers() *Peers {
	return &Peers{m: make(map[avtp.EUI64]*Peer)}
}

// Update 记录一次 ENTITY_AVAILABLE，返回条目副本以及是否为新实体
func (ps *Peers) Update(p *pdu.PDU, src net.HardwareAddr, now time.Time) (Peer, bool) {
	valid := time.Duration(p.ValidTime) * 2 * time.Second
	if valid == 0 {
		valid = 2 * time.Second
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	peer, ok := ps.m[p.EntityID]
	if !ok {
		peer = &Peer{FirstSeen: now}
		ps.m[p.EntityID] = peer
	} else if p.AvailableIndex < peer.AvailableIndex {
		// available_index 回退说明对端重启
		peer.FirstSeen = now
		ok = false
	}
	peer.PDU = *p
	peer.MAC = src.String()
	peer.Expires = now.Add(valid)
	return *peer, !ok
}

// Remove 删除实体
func (ps *Peers) Remove(id avtp.EUI64) *Peer {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	peer, ok := ps.m[id]
	if !ok {
		return nil
	}
	delete(ps.m, id)
	cp := *peer
	cp.Departed = true
	return &cp
}

// Expire 删除过期的实体并返回它们
func (ps *Peers) Expire(now time.Time) []*Peer {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	var expired []*Peer
	for id, peer := range ps.m {
		if now.After(peer.Expires) {
			delete(ps.m, id)
			cp := *peer
			cp.Expired = true
			expired = append(expired, &cp)
		}
	}
	return expired
}

// Get 查找实体
func (ps *Peers) Get(id avtp.EUI64) (Peer, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	peer, ok := ps.m[id]
	if !ok {
		return Peer{}, false
	}
	return *peer, true
}

// List 按 entity_id 排序的实体列表
func (ps *Peers) List() []Peer {
	ps.mu.RLock()
	list := make([]Peer, 0, len(ps.m))
	for _, peer := range ps.m {
		list = append(list, *peer)
	}
	ps.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].EntityID.Uint64() < list[j].EntityID.Uint64()
	})
	return list
}

// Count 实体数量
func (ps *Peers) Count() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.m)
}
