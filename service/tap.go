// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cnotch/avbhub/config"
	"github.com/cnotch/avbhub/network/rawsock"
	"github.com/cnotch/avbhub/network/socket/buffered"
	"github.com/cnotch/avbhub/stats"
	"github.com/cnotch/queue"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/kelindar/tcp"
)

const (
	tapSnapLen       = 65536
	tapFlushInterval = 200 * time.Millisecond
)

type tapFrame struct {
	ts   time.Time
	data []byte
}

// tapServer 帧监听服务。
// 以 pcap 流格式向每个 TCP 客户端推送网口收发的 AVDECC 帧，可直接用 wireshark -k -i - 查看。
type tapServer struct {
	tcp     *tcp.Server
	mu      sync.RWMutex
	clients map[*tapClient]struct{}
	jobTag  string
	logger  *xlog.Logger
}

func newTapServer(logger *xlog.Logger) *tapServer {
	t := &tapServer{
		clients: make(map[*tapClient]struct{}),
		jobTag:  "tap flush",
		logger:  logger,
	}
	t.tcp = &tcp.Server{OnAccept: t.onAccept}
	return t
}

// Publish 满足 rawsock.TapFunc，帧被拷贝后分发给所有客户端
func (t *tapServer) Publish(dir rawsock.Direction, frame []byte) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.clients) == 0 {
		return
	}

	f := &tapFrame{ts: time.Now(), data: append([]byte(nil), frame...)}
	for c := range t.clients {
		c.recvQueue.Push(f)
	}
}

// Count 当前客户端数
func (t *tapServer) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// Start 启动定时刷新
func (t *tapServer) Start() {
	scheduler.PeriodFunc(tapFlushInterval, tapFlushInterval, t.signal, t.jobTag)
}

// Serve 在 l 上接受客户端，阻塞直到 l 关闭
func (t *tapServer) Serve(l net.Listener) error {
	return t.tcp.Serve(l)
}

// Close 停止刷新并断开所有客户端
func (t *tapServer) Close() {
	for _, job := range scheduler.Jobs() {
		if job.Tag() == t.jobTag {
			job.Cancel()
		}
	}

	t.mu.RLock()
	for c := range t.clients {
		c.Close()
	}
	t.mu.RUnlock()
}

// signal 唤醒所有客户端刷新缓冲
func (t *tapServer) signal() {
	t.mu.RLock()
	for c := range t.clients {
		c.recvQueue.Signal()
	}
	t.mu.RUnlock()
}

func (t *tapServer) onAccept(conn net.Conn) {
	c := &tapClient{
		server: t,
		conn: buffered.NewConn(conn,
			buffered.FlushRate(config.NetFlushRate()),
			buffered.BufferSize(config.NetBufferSize()),
			buffered.WriteTimeout(config.NetTimeout())),
		recvQueue: queue.NewSyncQueue(),
		logger:    t.logger.With(xlog.Fields(xlog.F("tap", conn.RemoteAddr().String()))),
	}

	t.mu.Lock()
	t.clients[c] = struct{}{}
	t.mu.Unlock()
	stats.TapConns.Add()
	c.logger.Info("tap client connected")

	go c.drain()
	go c.consume()
}

func (t *tapServer) remove(c *tapClient) {
	t.mu.Lock()
	delete(t.clients, c)
	t.mu.Unlock()
}

// tapClient 一个帧监听客户端
type tapClient struct {
	server    *tapServer
	conn      *buffered.Conn
	recvQueue *queue.SyncQueue
	closed    atomic.Bool
	logger    *xlog.Logger
}

// Close 通知消费协程退出
func (c *tapClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.recvQueue.Signal()
	return nil
}

// drain 客户端不发送数据，读失败即表示断开
func (c *tapClient) drain() {
	io.Copy(io.Discard, c.conn)
	c.Close()
}

func (c *tapClient) consume() {
	defer func() {
		defer func() { // 避免 handler 再 panic
			recover()
		}()

		if r := recover(); r != nil {
			c.logger.Errorf("tap routine panic；r = %v \n %s", r, debug.Stack())
		}

		c.server.remove(c)
		c.conn.Close()
		c.recvQueue.Reset()
		stats.TapConns.Release()
		c.logger.Info("tap client disconnected")
	}()

	w := pcapgo.NewWriter(c.conn)
	if err := w.WriteFileHeader(tapSnapLen, layers.LinkTypeEthernet); err != nil {
		c.logger.Warnf("write pcap header: %v", err)
		return
	}

	for !c.closed.Load() {
		p := c.recvQueue.Pop()
		if p == nil { // 定时刷新或关闭
			if err := c.conn.Flush(); err != nil {
				c.logger.Warnf("flush: %v", err)
				return
			}
			continue
		}

		f := p.(*tapFrame)
		ci := gopacket.CaptureInfo{
			Timestamp:     f.ts,
			CaptureLength: len(f.data),
			Length:        len(f.data),
		}
		if err := w.WritePacket(ci, f.data); err != nil {
			c.logger.Warnf("write frame: %v", err)
			return
		}
	}
	c.conn.Flush()
}
