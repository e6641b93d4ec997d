// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package media AVTP 流的媒体队列、格式映射和接口模块。
// 映射模块在 AVTP 数据单元和媒体队列之间转换，接口模块在媒体队列和外部源/目的之间转换。
package media

import (
	"sync"
	"time"
)

// DefaultQueueLen 媒体队列的默认容量
const DefaultQueueLen = 64

// Item 媒体队列中的单元
type Item struct {
	Data      []byte    // 负载
	Time      time.Time // 呈现时间(本地时钟)
	Timestamp uint32    // AVTP 时间戳
	TSValid   bool      // Timestamp 是否有效
}

// Queue 媒体单元的有界队列，它并发安全
type Queue struct {
	cond   *sync.Cond
	items  itemBuffer
	max    int
	closed bool
}

// NewQueue 创建媒体队列，max<=0 使用默认容量
func NewQueue(max int) *Queue {
	if max <= 0 {
		max = DefaultQueueLen
	}
	return &Queue{
		cond: sync.NewCond(&sync.Mutex{}),
		max:  max,
	}
}

// Push 入列单元并发送信号，队列满时返回 false
func (q *Queue) Push(it *Item) bool {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	if q.closed || q.items.Len() >= q.max {
		return false
	}
	q.items.Write(it)
	q.cond.Signal()
	return true
}

// Tail 查看最早入列的单元，不出列
func (q *Queue) Tail() *Item {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return q.items.Peek()
}

// Pop 出列最早的单元，队列空时返回 nil
func (q *Queue) Pop() *Item {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return q.items.Read()
}

// PopDue 出列呈现时间不晚于 now 的最早单元
func (q *Queue) PopDue(now time.Time) *Item {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	it := q.items.Peek()
	if it == nil || it.Time.After(now) {
		return nil
	}
	return q.items.Read()
}

// TillTail 距离最早单元呈现时间的时长，已到期返回 0；队列空时 ok 为 false
func (q *Queue) TillTail(now time.Time) (d time.Duration, ok bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	it := q.items.Peek()
	if it == nil {
		return 0, false
	}
	if d = it.Time.Sub(now); d < 0 {
		d = 0
	}
	return d, true
}

// Wait 等待队列非空，最多 timeout；返回队列是否非空
func (q *Queue) Wait(timeout time.Duration) bool {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	if q.items.Len() > 0 || q.closed {
		return q.items.Len() > 0
	}

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		q.cond.L.Lock()
		q.cond.Broadcast()
		q.cond.L.Unlock()
	})
	defer timer.Stop()

	for q.items.Len() == 0 && !q.closed && time.Now().Before(deadline) {
		q.cond.Wait()
	}
	return q.items.Len() > 0
}

// Len 队列长度
func (q *Queue) Len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return q.items.Len()
}

// Cap 队列容量
func (q *Queue) Cap() int { return q.max }

// Reset 清空队列
func (q *Queue) Reset() {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	q.items.Reset()
}

// Close 关闭队列并释放所有等待
func (q *Queue) Close() {
	q.cond.L.Lock()
	q.closed = true
	q.items.Reset()
	q.cond.Broadcast()
	q.cond.L.Unlock()
}
