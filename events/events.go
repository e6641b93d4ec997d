// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package events 进程内事件总线，供 websocket 事件推送等订阅者使用。
package events

import (
	"sync"
	"time"

	"github.com/cnotch/queue"
)

// 事件主题
const (
	TopicADP    = "adp"
	TopicAECP   = "aecp"
	TopicStream = "stream"
	TopicPeer   = "peer"
)

// Event 事件
type Event struct {
	Topic string      `json:"topic"`
	Time  time.Time   `json:"time"`
	Data  interface{} `json:"data"`
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(topic string, data interface{})
}

type discard struct{}

func (discard) Publish(string, interface{}) {}

// Discard 丢弃所有事件
var Discard Publisher = discard{}

// Bus 事件总线，每个订阅者有独立的接收队列
type Bus struct {
	mu   sync.RWMutex
	seq  int
	subs map[int]*Subscription
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Publish 向所有订阅者发布事件，不阻塞
func (b *Bus) Publish(topic string, data interface{}) {
	e := Event{Topic: topic, Time: time.Now(), Data: data}
	b.mu.RLock()
	for _, s := range b.subs {
		if s.match(topic) {
			s.recvQueue.Push(e)
		}
	}
	b.mu.RUnlock()
}

// Subscribe 订阅事件，topics 为空时订阅全部主题
func (b *Bus) Subscribe(topics ...string) *Subscription {
	s := &Subscription{
		bus:       b,
		recvQueue: queue.NewSyncQueue(),
	}
	if len(topics) > 0 {
		s.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			s.topics[t] = true
		}
	}

	b.mu.Lock()
	b.seq++
	s.id = b.seq
	b.subs[s.id] = s
	b.mu.Unlock()
	return s
}

// Count 当前订阅者数量
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription 订阅
type Subscription struct {
	id        int
	bus       *Bus
	topics    map[string]bool
	recvQueue *queue.SyncQueue
	mu        sync.Mutex
	closed    bool
}

func (s *Subscription) match(topic string) bool {
	return s.topics == nil || s.topics[topic]
}

// Next 阻塞等待下一个事件，订阅关闭后返回 false
func (s *Subscription) Next() (Event, bool) {
	for {
		if s.isClosed() {
			return Event{}, false
		}
		switch e := s.recvQueue.Pop().(type) {
		case Event:
			return e, true
		case closedMark:
			return Event{}, false
		}
	}
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close 取消订阅，唤醒阻塞的 Next
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.bus.remove(s.id)
	s.recvQueue.Push(closedMark{})
	return nil
}

type closedMark struct{}
